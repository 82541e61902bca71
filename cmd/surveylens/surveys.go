package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/surveylens/internal/common"
	"github.com/bobmcallan/surveylens/internal/services/report"
)

func (c *cli) surveysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "surveys",
		Short: "List, inspect and delete surveys",
	}
	cmd.AddCommand(c.surveysListCmd(), c.surveysShowCmd(), c.surveysDeleteCmd())
	return cmd
}

func (c *cli) surveysListCmd() *cobra.Command {
	var asCSV bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your surveys, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			surveys, err := c.app.Client.ListSurveys(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asCSV {
				if csv := report.ToCSV(report.SurveysTable(surveys)); csv != "" {
					fmt.Fprintln(out, csv)
				}
				return nil
			}
			if len(surveys) == 0 {
				fmt.Fprintln(out, "No surveys yet. Upload one with `surveylens upload`.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tTYPE\tRESPONSES\tCREATED")
			for i := range surveys {
				s := &surveys[i]
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					s.ID(), common.TruncateText(s.Title, 40), s.Status, s.SurveyType,
					common.FormatNumber(s.ResponseCount()), common.FormatDate(s.CreatedAt.Time))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asCSV, "csv", false, "print the list as CSV")
	return cmd
}

func (c *cli) surveysShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <survey-id>",
		Short: "Show a survey and its questions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.app.Client.GetSurvey(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n", s.Title)
			fmt.Fprintf(out, "  ID:         %s\n", s.ID())
			fmt.Fprintf(out, "  Status:     %s\n", s.Status)
			fmt.Fprintf(out, "  Type:       %s\n", s.SurveyType)
			fmt.Fprintf(out, "  Responses:  %s\n", common.FormatNumber(s.ResponseCount()))
			fmt.Fprintf(out, "  Created:    %s\n", common.FormatDate(s.CreatedAt.Time))
			if s.Description != "" {
				fmt.Fprintf(out, "  About:      %s\n", s.Description)
			}
			if len(s.Tags) > 0 {
				fmt.Fprintf(out, "  Tags:       %s\n", strings.Join(s.Tags, ", "))
			}
			if len(s.Questions) > 0 {
				fmt.Fprintln(out, "\nQuestions:")
				for i, q := range s.Questions {
					fmt.Fprintf(out, "  %d. %s", i+1, q.QuestionText)
					if q.QuestionType != "" {
						fmt.Fprintf(out, " (%s)", q.QuestionType)
					}
					fmt.Fprintln(out)
				}
			}
			return nil
		},
	}
}

func (c *cli) surveysDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <survey-id>",
		Short: "Delete a survey and its analyses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Client.DeleteSurvey(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted survey %s\n", args[0])
			return nil
		},
	}
}
