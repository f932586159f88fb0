package sheet

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/david/kapt-crawler/internal/crawl"
	"github.com/xuri/excelize/v2"
)

func TestUniquePath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "추출데이터")
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)

	want := []string{
		"추출데이터_20240102_030405.xlsx",
		"추출데이터_20240102_030405_1.xlsx",
		"추출데이터_20240102_030405_2.xlsx",
	}
	for _, name := range want {
		path, err := UniquePath(dir, "추출데이터", now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if filepath.Base(path) != name {
			t.Fatalf("expected %s, got %s", name, filepath.Base(path))
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	columns := []crawl.Field{crawl.FieldSeq, crawl.FieldComplexName, crawl.FieldDetailLink}
	records := []crawl.Record{
		{crawl.FieldSeq: "1", crawl.FieldComplexName: "Sample Apt", crawl.FieldDetailLink: "https://x/1"},
		{crawl.FieldSeq: "2", crawl.FieldComplexName: "Other Apt"},
	}

	if err := Write(path, "수의계약", columns, records); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != "수의계약" {
		t.Errorf("unexpected sheets %v", sheets)
	}
	f.Close()

	gotCols, got, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(gotCols) != 3 || gotCols[2] != crawl.FieldDetailLink {
		t.Errorf("unexpected columns %v", gotCols)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0][crawl.FieldDetailLink] != "https://x/1" || got[1][crawl.FieldComplexName] != "Other Apt" {
		t.Errorf("unexpected records %v", got)
	}
	if v, ok := got[1][crawl.FieldDetailLink]; !ok || v != "" {
		t.Errorf("missing trailing cell must read as empty, got %q (present=%v)", v, ok)
	}
}

func TestWrite_SaveFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "out.xlsx")
	if err := Write(path, MergedSheet, []crawl.Field{crawl.FieldSeq}, nil); err == nil {
		t.Fatal("expected save error")
	}
}

func TestRead_MissingFile(t *testing.T) {
	if _, _, err := Read(filepath.Join(t.TempDir(), "none.xlsx")); err == nil {
		t.Fatal("expected open error")
	}
}
