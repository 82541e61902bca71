// Package report renders survey analyses into exportable documents
package report

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bobmcallan/surveylens/internal/common"
	"github.com/bobmcallan/surveylens/internal/interfaces"
	"github.com/bobmcallan/surveylens/internal/models"
	"github.com/bobmcallan/surveylens/internal/services/insights"
)

// Export formats
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatPDF      = "pdf"
	FormatText     = "txt"
	FormatMarkdown = "md"
	FormatHTML     = "html"
	FormatCharts   = "png"
)

// Formats lists every supported export format.
var Formats = []string{FormatJSON, FormatCSV, FormatPDF, FormatText, FormatMarkdown, FormatHTML, FormatCharts}

// File is one rendered export. Part names the table or chart for formats
// that produce several files.
type File struct {
	Format      string
	Part        string
	Name        string
	ContentType string
	Data        []byte
}

// Artifact is a file written to a sink.
type Artifact struct {
	Format   string
	Part     string
	Name     string
	Location string
	Size     int
}

// Service implements report export
type Service struct {
	client interfaces.AnalysisClient
	decode models.DecodeOptions
	layout TextLayout
	logger *common.Logger
}

// NewService creates a new report service
func NewService(client interfaces.AnalysisClient, cfg *common.ExportConfig, logger *common.Logger) *Service {
	s := &Service{client: client, logger: logger}
	if cfg != nil {
		s.decode = models.DecodeOptions{Legacy: cfg.LegacyParsing}
		s.layout = TextLayout{Width: cfg.TextWidth, LinesPerPage: cfg.LinesPerPage}
	}
	return s
}

// Load fetches a survey and its decoded analysis.
func (s *Service) Load(ctx context.Context, surveyID string) (*models.Survey, *models.Analysis, error) {
	survey, err := s.client.GetSurvey(ctx, surveyID)
	if err != nil {
		return nil, nil, fmt.Errorf("get survey: %w", err)
	}
	raw, err := s.client.GetAnalysisResults(ctx, surveyID)
	if err != nil {
		return nil, nil, fmt.Errorf("get results: %w", err)
	}
	analysis, err := models.DecodeAnalysis(raw, s.decode)
	if err != nil {
		return nil, nil, fmt.Errorf("decode results: %w", err)
	}
	return survey, analysis, nil
}

// Export renders each format for the survey and writes every file to sink.
func (s *Service) Export(ctx context.Context, surveyID string, formats []string, sink interfaces.ExportSink) ([]Artifact, error) {
	if len(formats) == 0 {
		formats = []string{FormatJSON}
	}
	for _, f := range formats {
		if !slices.Contains(Formats, f) {
			return nil, fmt.Errorf("unsupported export format %q (want one of %s)", f, strings.Join(Formats, ", "))
		}
	}

	survey, analysis, err := s.Load(ctx, surveyID)
	if err != nil {
		return nil, err
	}

	var artifacts []Artifact
	for _, format := range formats {
		files, err := Render(format, survey, analysis, s.layout)
		if err != nil {
			return artifacts, err
		}
		for _, f := range files {
			loc, err := sink.Put(ctx, f.Name, f.ContentType, f.Data)
			if err != nil {
				return artifacts, fmt.Errorf("write %s: %w", f.Name, err)
			}
			artifacts = append(artifacts, Artifact{Format: f.Format, Part: f.Part, Name: f.Name, Location: loc, Size: len(f.Data)})
			s.logger.Info().Str("survey_id", surveyID).Str("format", format).Str("location", loc).Msg("Export written")
		}
	}
	return artifacts, nil
}

// Render produces the files of one format. Formats with nothing to show
// (an empty table, a suppressed chart) yield no file for that part.
func Render(format string, survey *models.Survey, a *models.Analysis, layout TextLayout) ([]File, error) {
	if survey == nil {
		survey = &models.Survey{}
		if a != nil {
			survey.SurveyID = a.Meta.SurveyID
		}
	}
	title, id := survey.Title, survey.ID()
	view := insights.Build(a)
	one := func(ext, contentType string, data []byte) []File {
		return []File{{Format: format, Name: Filename(title, id, ext), ContentType: contentType, Data: data}}
	}

	switch format {
	case FormatJSON:
		data, err := ExportJSON(a)
		if err != nil {
			return nil, err
		}
		return one("json", "application/json", data), nil

	case FormatCSV:
		tables := []struct {
			part  string
			table Table
		}{
			{"topics", TopicsTable(view)},
			{"problems", ProblemsTable(view)},
			{"questions", QuestionsTable(view)},
		}
		var files []File
		for _, t := range tables {
			csv := ToCSV(t.table)
			if csv == "" {
				continue
			}
			files = append(files, File{
				Format:      format,
				Part:        t.part,
				Name:        Filename(title, id, t.part+".csv"),
				ContentType: "text/csv",
				Data:        []byte(csv),
			})
		}
		return files, nil

	case FormatPDF:
		data, err := RenderPDF(BuildDocument(survey, view))
		if err != nil {
			return nil, err
		}
		return one("pdf", "application/pdf", data), nil

	case FormatText:
		return one("txt", "text/plain; charset=utf-8", []byte(RenderText(BuildDocument(survey, view), layout))), nil

	case FormatMarkdown:
		return one("md", "text/markdown; charset=utf-8", []byte(RenderMarkdown(BuildDocument(survey, view)))), nil

	case FormatHTML:
		return one("html", "text/html; charset=utf-8", RenderHTML(BuildDocument(survey, view))), nil

	case FormatCharts:
		var files []File
		for _, name := range ChartNames {
			data, err := RenderChart(name, view)
			if errors.Is(err, ErrNoChartData) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("%s chart: %w", name, err)
			}
			files = append(files, File{
				Format:      format,
				Part:        name,
				Name:        Filename(title, id, name+".png"),
				ContentType: "image/png",
				Data:        data,
			})
		}
		return files, nil

	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
