package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/bobmcallan/surveylens/internal/models"
)

const analysisPath = "/api/v1/analysis"

// StartAnalysis queues an analysis run. Empty AnalysisTypes defaults to full_analysis.
func (c *Client) StartAnalysis(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisStarted, error) {
	if len(req.AnalysisTypes) == 0 {
		req.AnalysisTypes = []string{models.AnalysisFull}
	}
	if req.Options == nil {
		req.Options = map[string]any{}
	}
	var resp models.AnalysisStarted
	if err := c.postJSON(ctx, analysisPath+"/analyze", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetAnalysisStatus returns the survey status and in-flight progress
func (c *Client) GetAnalysisStatus(ctx context.Context, surveyID string) (*models.StatusResponse, error) {
	var resp models.StatusResponse
	if err := c.getJSON(ctx, analysisPath+"/"+url.PathEscape(surveyID)+"/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetAnalysisResults returns the latest analysis payload as received
func (c *Client) GetAnalysisResults(ctx context.Context, surveyID string) ([]byte, error) {
	return c.send(ctx, http.MethodGet, analysisPath+"/"+url.PathEscape(surveyID)+"/results", nil)
}

// GetAllAnalysisResults returns the {analyses, total} envelope of every run
func (c *Client) GetAllAnalysisResults(ctx context.Context, surveyID string) ([]byte, error) {
	return c.send(ctx, http.MethodGet, analysisPath+"/"+url.PathEscape(surveyID)+"/all-results", nil)
}

// DeleteAnalysis removes a single analysis result by its own ID
func (c *Client) DeleteAnalysis(ctx context.Context, analysisID string) error {
	return c.delete(ctx, analysisPath+"/"+url.PathEscape(analysisID))
}

// Health probes the backend
func (c *Client) Health(ctx context.Context) (*models.HealthStatus, error) {
	var resp models.HealthStatus
	if err := c.getJSON(ctx, "/api/v1/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
