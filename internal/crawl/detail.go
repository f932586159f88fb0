package crawl

import (
	"github.com/PuerkitoBio/goquery"
)

// privateContractCommon lists the positional cells of the apartment info row.
var privateContractCommon = []Field{
	FieldManager, FieldApartmentName, FieldOfficeAddress, FieldPhone, FieldFax,
	FieldBuildings, FieldHouseholds,
}

// ParseDetail extracts the detail schema of t from a detail page. Every schema
// field is present in the result; fields not found on the page stay empty.
func ParseDetail(doc *goquery.Document, t ListingType) Record {
	schema := SchemaFor(t)
	rec := make(Record, len(schema.Detail))
	for _, f := range schema.Detail {
		rec[f] = ""
	}

	if t == PrivateContract {
		parsePrivateContractDetail(doc, schema, rec)
	} else {
		parseBidDetail(doc, rec)
	}
	return rec
}

func parsePrivateContractDetail(doc *goquery.Document, schema *Schema, rec Record) {
	common := doc.Find("table.contTbl.txtC").First().Find("tbody").First().Find("tr").First()
	if cells := common.Find("td"); cells.Length() >= len(privateContractCommon) {
		for i, f := range privateContractCommon {
			rec[f] = strippedText(cells.Eq(i))
		}
	}

	contract := doc.Find("table.contTbl").Not(".txtC").First()
	tbody := contract.Find("tbody").First()
	if tbody.Length() == 0 {
		return
	}
	eachPair(tbody, func(label, value string) {
		// Labels vary in spacing between page revisions ("분 류").
		if f, ok := schema.Labels[normalizeSpace(label)]; ok {
			rec[f] = value
		}
	})
}

// parseBidDetail matches labels exactly, without the whitespace normalisation
// the private contract layout gets.
func parseBidDetail(doc *goquery.Document, rec Record) {
	doc.Find("table.contTbl").Each(func(_ int, table *goquery.Selection) {
		tbody := table.Find("tbody").First()
		if tbody.Length() == 0 {
			return
		}
		eachPair(tbody, func(label, value string) {
			if label == attachmentLabel {
				return
			}
			if _, ok := rec[Field(label)]; ok {
				rec[Field(label)] = value
			}
		})
	})
}

// eachPair walks each row's th/td cells as (label, value) pairs: 0&1, 2&3, ...
func eachPair(tbody *goquery.Selection, fn func(label, value string)) {
	tbody.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("th, td")
		if cells.Length() < 2 {
			return
		}
		for i := 0; i+1 < cells.Length(); i += 2 {
			fn(strippedText(cells.Eq(i)), strippedText(cells.Eq(i+1)))
		}
	})
}
