package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/david/kapt-crawler/internal/config"
	"github.com/david/kapt-crawler/internal/db"
	"github.com/david/kapt-crawler/internal/logging"
	"github.com/david/kapt-crawler/internal/runner"
)

const usage = `K-APT procurement listing crawler.

Usage:
  kaptcrawl                 start the interactive console
  kaptcrawl <job>.json      run one saved job configuration and exit
  kaptcrawl batch <folder>  run every *.json job in folder, one after another
  kaptcrawl runs            list recent runs (requires database.url or DATABASE_URL)
  kaptcrawl help            show this text

Job configuration keys (JSON, UTF-8 or EUC-KR):
  url                      listing URL; empty or mismatched uses the default for the type
  extraction_count         item cap, default 50 (0 = no cap)
  mode                     1 summary + detail, 2 summary only, 3 detail from an existing workbook
  page_type_index          0 private contracts, 1 competitive bids, 2 national bid notices
  selected_excel_path      summary workbook for mode 3
  selected_detail_columns  detail fields to keep in the merged workbook
  auto_exit                stop the console once the job (or batch) succeeds
`

type app struct {
	settingsPath string
	verbose      bool

	settings *config.Settings
	log      *logrus.Logger
	store    *db.Store
}

// NewRootCmd returns the root command for kaptcrawl.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "kaptcrawl [job.json]",
		Short:         "K-APT procurement listing crawler",
		Long:          usage,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || (!cmd.HasParent() && isHelpArg(args)) {
				return nil
			}
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return a.runConsole(cmd)
			}
			if isHelpArg(args) {
				return cmd.Help()
			}
			if !strings.EqualFold(filepath.Ext(args[0]), ".json") {
				return fmt.Errorf("unknown argument %q (see 'kaptcrawl help')", args[0])
			}
			return a.runJobFile(cmd, args[0])
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.store != nil {
				a.store.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.settingsPath, "settings", "", "settings file (default: embedded, or $"+config.SettingsEnv+")")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newBatchCmd(a))
	rootCmd.AddCommand(newRunsCmd(a))

	return rootCmd
}

// isHelpArg matches the help token in any letter case, e.g. HELP or Help.
func isHelpArg(args []string) bool {
	return len(args) == 1 && strings.EqualFold(args[0], "help")
}

func (a *app) setup() error {
	a.log = logging.New(a.verbose)

	settings, err := config.LoadSettings(a.settingsPath)
	if err != nil {
		return err
	}
	a.settings = settings
	return nil
}

// openStore connects to the run history database when one is configured.
func (a *app) openStore(ctx context.Context) (*db.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := db.Open(ctx, a.settings.Database.URL, a.log)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

// newRunner builds a runner that records history if the database is reachable.
// A configured but unreachable database only costs the history.
func (a *app) newRunner(ctx context.Context) *runner.Runner {
	var recorder runner.RunRecorder
	if a.settings.Database.URL != "" {
		store, err := a.openStore(ctx)
		if err != nil {
			a.log.WithError(err).Warn("Run history disabled")
		} else {
			recorder = store
		}
	}
	return runner.New(a.settings, recorder, a.log)
}
