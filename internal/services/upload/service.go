// Package upload validates survey inputs and submits them to the backend
package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bobmcallan/surveylens/internal/common"
	"github.com/bobmcallan/surveylens/internal/interfaces"
	"github.com/bobmcallan/surveylens/internal/models"
)

// MaxFileSize is the largest file accepted for upload (10 MiB).
const MaxFileSize = 10 << 20

// ErrInvalidFile is returned for files rejected before any request is made.
var ErrInvalidFile = errors.New("invalid upload file")

// contentTypes maps accepted extensions to the MIME type sent with the part.
var contentTypes = map[string]string{
	".csv":  "text/csv",
	".txt":  "text/plain",
	".json": "application/json",
}

// Metadata is the optional title, description and raw comma-separated tags.
type Metadata struct {
	Title       string
	Description string
	Tags        string
}

// ManualEntry is a simple survey typed in directly, one response per line.
type ManualEntry struct {
	Title       string
	Description string
	Tags        string
	Text        string
}

// Result identifies the created survey.
type Result struct {
	SurveyID       string
	Title          string
	SurveyType     string
	TotalResponses int
}

// Service implements the upload flows
type Service struct {
	client interfaces.SurveyClient
	logger *common.Logger
}

// NewService creates a new upload service
func NewService(client interfaces.SurveyClient, logger *common.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// UploadFile validates and uploads one CSV, TXT or JSON file. The file is not parsed.
func (s *Service) UploadFile(ctx context.Context, path string, meta Metadata) (*Result, error) {
	part, err := readPart(path)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("file", part.Name).Int("bytes", len(part.Data)).Msg("Uploading survey file")
	resp, err := s.client.UploadSurveyFile(ctx, *part, meta.toModel())
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", part.Name, err)
	}
	return newResult(resp, meta.Title), nil
}

// UploadTwoFile uploads a question schema plus a responses file.
func (s *Service) UploadTwoFile(ctx context.Context, schemaPath, responsesPath string, meta Metadata) (*Result, error) {
	schema, err := readPart(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("schema file: %w", err)
	}
	responses, err := readPart(responsesPath)
	if err != nil {
		return nil, fmt.Errorf("responses file: %w", err)
	}

	s.logger.Info().Str("schema", schema.Name).Str("responses", responses.Name).Msg("Uploading two-file survey")
	resp, err := s.client.UploadTwoFileSurvey(ctx, *schema, *responses, meta.toModel())
	if err != nil {
		return nil, fmt.Errorf("upload %s + %s: %w", schema.Name, responses.Name, err)
	}
	return newResult(resp, meta.Title), nil
}

// UploadManual submits typed responses. The title is sent as entered.
func (s *Service) UploadManual(ctx context.Context, entry ManualEntry) (*Result, error) {
	if strings.TrimSpace(entry.Title) == "" {
		return nil, errors.New("title is required")
	}
	responses := SplitResponses(entry.Text)
	if len(responses) == 0 {
		return nil, errors.New("at least one response is required")
	}

	s.logger.Info().Str("title", entry.Title).Int("responses", len(responses)).Msg("Uploading manual survey")
	resp, err := s.client.UploadSurvey(ctx, models.UploadRequest{
		Title:       entry.Title,
		Description: entry.Description,
		Tags:        ParseTags(entry.Tags),
		Responses:   responses,
	})
	if err != nil {
		return nil, err
	}
	return newResult(resp, entry.Title), nil
}

// SplitResponses splits on newlines, trims each line and drops blank lines.
func SplitResponses(text string) []string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// ParseTags splits a comma-separated tag string, dropping empty entries.
func ParseTags(raw string) []string {
	tags := []string{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// ValidateFile checks extension and size without reading the file.
func ValidateFile(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := contentTypes[ext]; !ok {
		return fmt.Errorf("%w: %s must be .csv, .txt or .json", ErrInvalidFile, filepath.Base(path))
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInvalidFile, path)
	}
	if info.Size() > MaxFileSize {
		return fmt.Errorf("%w: %s is %s bytes, limit is %s", ErrInvalidFile, filepath.Base(path),
			common.FormatNumber(int(info.Size())), common.FormatNumber(MaxFileSize))
	}
	return nil
}

func readPart(path string) (*models.FilePart, error) {
	if err := ValidateFile(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &models.FilePart{
		Name:        filepath.Base(path),
		ContentType: contentTypes[strings.ToLower(filepath.Ext(path))],
		Data:        data,
	}, nil
}

func (m Metadata) toModel() models.UploadMetadata {
	return models.UploadMetadata{Title: m.Title, Description: m.Description, Tags: m.Tags}
}

func newResult(resp *models.UploadResponse, title string) *Result {
	r := &Result{
		SurveyID:       resp.SurveyID,
		Title:          resp.Title,
		SurveyType:     resp.SurveyType,
		TotalResponses: resp.TotalResponses,
	}
	if r.Title == "" {
		r.Title = title
	}
	return r
}
