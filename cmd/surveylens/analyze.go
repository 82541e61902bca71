package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/surveylens/internal/common"
	"github.com/bobmcallan/surveylens/internal/models"
	"github.com/bobmcallan/surveylens/internal/services/insights"
	"github.com/bobmcallan/surveylens/internal/services/monitor"
	"github.com/bobmcallan/surveylens/internal/services/report"
)

// ErrAnalysisFailed is returned when the backend reports a failed run.
var ErrAnalysisFailed = errors.New("analysis failed on the backend")

func (c *cli) analyzeCmd() *cobra.Command {
	var types []string
	var noWatch bool
	cmd := &cobra.Command{
		Use:   "analyze <survey-id>",
		Short: "Start an analysis run and follow its progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			out := cmd.OutOrStdout()
			if noWatch {
				resp, err := c.app.Client.StartAnalysis(cmd.Context(), models.AnalysisRequest{SurveyID: id, AnalysisTypes: types})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Analysis started for %s (status: %s)\n", id, resp.Status)
				return nil
			}
			return c.follow(cmd.Context(), out, id, func(ctl *monitor.Controller) (*monitor.Snapshot, error) {
				fmt.Fprintf(out, "Starting analysis for %s...\n", id)
				return ctl.StartAnalysis(cmd.Context(), types)
			})
		},
	}
	cmd.Flags().StringSliceVar(&types, "type", nil,
		"analysis types: summarization, sentiment, topic_detection, open_problems, full_analysis (default full_analysis)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "return once the run is queued")
	return cmd
}

func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <survey-id>",
		Short: "Follow a running analysis until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.follow(cmd.Context(), cmd.OutOrStdout(), args[0], func(ctl *monitor.Controller) (*monitor.Snapshot, error) {
				return ctl.Load(cmd.Context())
			})
		},
	}
}

// follow drives a controller: begin loads or starts the run, then progress is
// printed until the run reaches a terminal status or ctx ends.
func (c *cli) follow(ctx context.Context, out io.Writer, id string, begin func(*monitor.Controller) (*monitor.Snapshot, error)) error {
	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}

	var result *models.Analysis
	ctl := c.app.NewController(id, monitor.ObserverFuncs{
		Progress: func(p models.Progress) {
			fmt.Fprintln(out, progressLine(p))
		},
		Completed: func(_ *models.Survey, a *models.Analysis) {
			result = a
			finish(nil)
		},
		Failed: func(*models.Survey) {
			finish(ErrAnalysisFailed)
		},
		Error: func(err error) {
			finish(err)
		},
	})
	defer ctl.Close()

	snap, err := begin(ctl)
	if err != nil {
		return err
	}

	if !snap.Polling {
		switch snap.Survey.Status {
		case models.StatusCompleted:
			printSummary(out, snap.Survey, snap.Analysis)
			return nil
		case models.StatusFailed:
			return ErrAnalysisFailed
		default:
			return fmt.Errorf("survey %s is %s; start a run with `surveylens analyze %s`", id, snap.Survey.Status, id)
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return err
		}
	}
	final := ctl.Snapshot()
	if result == nil {
		result = final.Analysis
	}
	printSummary(out, final.Survey, result)
	return nil
}

func progressLine(p models.Progress) string {
	line := fmt.Sprintf("[%3.0f%%] %s", p.Percentage, p.Step)
	if p.TotalQuestions > 0 {
		line += fmt.Sprintf(" (%d/%d)", p.CurrentQuestion, p.TotalQuestions)
	}
	if p.Message != "" {
		line += " " + p.Message
	}
	return line
}

func printSummary(out io.Writer, s *models.Survey, a *models.Analysis) {
	title := ""
	if s != nil {
		title = s.Title
	}
	v := insights.Build(a)
	m := v.Metrics
	fmt.Fprintf(out, "Analysis completed: %s\n", title)
	fmt.Fprintf(out, "  Responses:       %s\n", common.FormatNumber(m.TotalResponses))
	fmt.Fprintf(out, "  Topics:          %d\n", m.TopicsDetected)
	fmt.Fprintf(out, "  Open problems:   %d\n", m.OpenProblems)
	fmt.Fprintf(out, "  Key findings:    %d\n", m.KeyFindings)
	fmt.Fprintf(out, "  Sentiment:       %s\n", m.OverallSentiment)
}

func (c *cli) resultsCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "results <survey-id>",
		Short: "Print the latest analysis results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case report.FormatText, report.FormatMarkdown, report.FormatJSON:
			default:
				return fmt.Errorf("unsupported results format %q (want txt, md or json)", format)
			}
			survey, analysis, err := c.app.Reports.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			files, err := report.Render(format, survey, analysis, c.app.TextLayout())
			if err != nil {
				return err
			}
			for _, f := range files {
				cmd.OutOrStdout().Write(f.Data)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", report.FormatText, "txt, md or json")
	return cmd
}
