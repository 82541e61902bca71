package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/surveylens/internal/common"
	"github.com/bobmcallan/surveylens/internal/services/upload"
)

func (c *cli) uploadCmd() *cobra.Command {
	var meta upload.Metadata
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload survey responses",
		Long: `Upload survey responses for analysis.

  file       one .csv, .txt or .json file of responses
  two-file   a question schema plus a responses file (structured survey)
  manual     responses typed or piped in, one per line`,
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&meta.Title, "title", "", "survey title")
	flags.StringVar(&meta.Description, "description", "", "survey description")
	flags.StringVar(&meta.Tags, "tags", "", "comma-separated tags")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "file <path>",
			Short: "Upload a single responses file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				res, err := c.app.Uploads.UploadFile(cmd.Context(), args[0], meta)
				if err != nil {
					return err
				}
				printUpload(cmd.OutOrStdout(), res)
				return nil
			},
		},
		&cobra.Command{
			Use:   "two-file <schema> <responses>",
			Short: "Upload a question schema and its responses",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				res, err := c.app.Uploads.UploadTwoFile(cmd.Context(), args[0], args[1], meta)
				if err != nil {
					return err
				}
				printUpload(cmd.OutOrStdout(), res)
				return nil
			},
		},
		c.uploadManualCmd(&meta),
	)
	return cmd
}

func (c *cli) uploadManualCmd(meta *upload.Metadata) *cobra.Command {
	var text, file string
	cmd := &cobra.Command{
		Use:   "manual",
		Short: "Upload responses given inline, from a file, or on stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if text == "" {
				var r io.Reader = cmd.InOrStdin()
				if file != "" && file != "-" {
					f, err := os.Open(file)
					if err != nil {
						return err
					}
					defer f.Close()
					r = f
				}
				data, err := io.ReadAll(r)
				if err != nil {
					return fmt.Errorf("failed to read responses: %w", err)
				}
				text = string(data)
			}

			res, err := c.app.Uploads.UploadManual(cmd.Context(), upload.ManualEntry{
				Title:       meta.Title,
				Description: meta.Description,
				Tags:        meta.Tags,
				Text:        text,
			})
			if err != nil {
				return err
			}
			printUpload(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "responses, one per line")
	cmd.Flags().StringVar(&file, "file", "", "read responses from a file (- for stdin)")
	return cmd
}

func printUpload(w io.Writer, res *upload.Result) {
	fmt.Fprintf(w, "Uploaded %q (%s responses)\n", res.Title, common.FormatNumber(res.TotalResponses))
	fmt.Fprintf(w, "Survey ID: %s\n", res.SurveyID)
	fmt.Fprintf(w, "Next: surveylens analyze %s\n", res.SurveyID)
}
