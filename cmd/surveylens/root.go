package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/surveylens/internal/app"
	"github.com/bobmcallan/surveylens/internal/common"
)

// cli carries the global flags and the lazily built App.
type cli struct {
	opts app.Options
	app  *app.App
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "surveylens",
		Short: "Analyze survey responses with the surveylens backend",
		Long: `surveylens uploads survey responses to the analysis backend, follows
analysis runs, and renders the results as reports and charts.

Examples:
  surveylens login --email me@example.com
  surveylens upload file responses.csv --title "Q3 feedback"
  surveylens analyze <survey-id>
  surveylens export <survey-id> --format pdf,csv
  surveylens serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["offline"] == "true" {
				return nil
			}
			a, err := app.NewApp(c.opts)
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.opts.ConfigPath, "config", "", "path to surveylens.toml (default: $SURVEYLENS_CONFIG or ./surveylens.toml)")
	flags.StringVar(&c.opts.EnvFile, "env-file", ".env", "dotenv file loaded before configuration")
	flags.StringVar(&c.opts.LogLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	root.AddCommand(
		c.loginCmd(),
		c.registerCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.surveysCmd(),
		c.uploadCmd(),
		c.analyzeCmd(),
		c.watchCmd(),
		c.resultsCmd(),
		c.exportCmd(),
		c.serveCmd(),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"offline": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "surveylens %s\n", common.GetFullVersion())
			return nil
		},
	}
}
