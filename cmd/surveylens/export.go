package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/surveylens/internal/common"
	"github.com/bobmcallan/surveylens/internal/server"
)

func (c *cli) exportCmd() *cobra.Command {
	var formats []string
	var publish bool
	cmd := &cobra.Command{
		Use:   "export <survey-id>",
		Short: "Export analysis results to files or S3",
		Long: `Export the latest analysis results of a survey.

Formats: json, csv, pdf, txt, md, html, png. csv writes one file per table
(topics, problems, questions) and png one file per chart. Files go to
export.dir unless --publish (or export.sink = "s3") sends them to S3.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sink, err := c.app.NewSink(cmd.Context(), publish)
			if err != nil {
				return err
			}
			artifacts, err := c.app.Reports.Export(cmd.Context(), args[0], formats, sink)
			for _, a := range artifacts {
				fmt.Fprintf(cmd.OutOrStdout(), "%-5s %s (%d bytes)\n", a.Format, a.Location, a.Size)
			}
			return err
		},
	}
	cmd.Flags().StringSliceVar(&formats, "format", []string{"json"}, "export formats, comma-separated")
	cmd.Flags().BoolVar(&publish, "publish", false, "write to the configured S3 bucket")
	return cmd
}

func (c *cli) serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			if port > 0 {
				a.Config.Server.Port = port
			}

			common.PrintBanner(os.Stderr, a.Config, a.Logger)
			srv := server.NewServer(a)

			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("dashboard server failed: %w", err)
				}
			case <-cmd.Context().Done():
				a.Logger.Info().Msg("Shutdown signal received")
			}

			common.PrintShutdownBanner(os.Stderr, a.Logger)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				a.Logger.Error().Err(err).Msg("Dashboard shutdown failed")
			}
			a.Logger.Info().Msg("Dashboard stopped")
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default server.port)")
	return cmd
}
