package backend

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/bobmcallan/surveylens/internal/models"
)

const surveysPath = "/api/v1/surveys"

// ListSurveys retrieves all surveys of the current user, newest first
func (c *Client) ListSurveys(ctx context.Context) ([]models.Survey, error) {
	var resp models.SurveyList
	if err := c.getJSON(ctx, surveysPath+"/", &resp); err != nil {
		return nil, err
	}
	return resp.Surveys, nil
}

// GetSurvey retrieves a survey with its questions and responses
func (c *Client) GetSurvey(ctx context.Context, surveyID string) (*models.Survey, error) {
	var survey models.Survey
	if err := c.getJSON(ctx, surveysPath+"/"+url.PathEscape(surveyID), &survey); err != nil {
		return nil, err
	}
	if survey.ID() == "" {
		survey.SurveyID = surveyID
	}
	return &survey, nil
}

// DeleteSurvey removes a survey and its analyses
func (c *Client) DeleteSurvey(ctx context.Context, surveyID string) error {
	return c.delete(ctx, surveysPath+"/"+url.PathEscape(surveyID))
}

// UploadSurvey creates a simple survey from a JSON body
func (c *Client) UploadSurvey(ctx context.Context, req models.UploadRequest) (*models.UploadResponse, error) {
	if req.Tags == nil {
		req.Tags = []string{}
	}
	var resp models.UploadResponse
	if err := c.postJSON(ctx, surveysPath+"/upload", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadSurveyFile uploads one file as multipart field "file"
func (c *Client) UploadSurveyFile(ctx context.Context, file models.FilePart, meta models.UploadMetadata) (*models.UploadResponse, error) {
	body, err := multipartPayload(meta, namedPart{field: "file", part: file})
	if err != nil {
		return nil, err
	}
	return c.upload(ctx, surveysPath+"/upload-file", body)
}

// UploadTwoFileSurvey uploads a schema file and a responses file
func (c *Client) UploadTwoFileSurvey(ctx context.Context, schema, responses models.FilePart, meta models.UploadMetadata) (*models.UploadResponse, error) {
	body, err := multipartPayload(meta,
		namedPart{field: "schema_file", part: schema},
		namedPart{field: "responses_file", part: responses},
	)
	if err != nil {
		return nil, err
	}
	return c.upload(ctx, surveysPath+"/upload-two-file", body)
}

func (c *Client) upload(ctx context.Context, path string, body *payload) (*models.UploadResponse, error) {
	data, err := c.send(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	var resp models.UploadResponse
	if err := decode(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type namedPart struct {
	field string
	part  models.FilePart
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// multipartPayload builds a replayable multipart body. Metadata fields are
// always sent; the backend applies its own defaults to empty values.
func multipartPayload(meta models.UploadMetadata, files ...namedPart) (*payload, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(f.field), quoteEscaper.Replace(f.part.Name)))
		contentType := f.part.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)

		pw, err := w.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("failed to create form part %s: %w", f.field, err)
		}
		if _, err := pw.Write(f.part.Data); err != nil {
			return nil, fmt.Errorf("failed to write form part %s: %w", f.field, err)
		}
	}

	for _, field := range []struct{ name, value string }{
		{"title", meta.Title},
		{"description", meta.Description},
		{"tags", meta.Tags},
	} {
		if err := w.WriteField(field.name, field.value); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", field.name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalise multipart body: %w", err)
	}
	return &payload{data: buf.Bytes(), contentType: w.FormDataContentType()}, nil
}
