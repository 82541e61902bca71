package server

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"slices"
	"strings"

	"github.com/bobmcallan/surveylens/internal/common"
	"github.com/bobmcallan/surveylens/internal/models"
	"github.com/bobmcallan/surveylens/internal/services/insights"
	"github.com/bobmcallan/surveylens/internal/services/monitor"
	"github.com/bobmcallan/surveylens/internal/services/report"
)

// handleSurveyList handles GET /. ?format=csv returns the list as CSV.
func (s *Server) handleSurveyList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	surveys, err := s.app.Client.ListSurveys(r.Context())
	if err != nil {
		WriteBackendError(w, err)
		return
	}

	if r.URL.Query().Get("format") == report.FormatCSV {
		WriteFile(w, report.File{
			Format:      report.FormatCSV,
			Name:        "surveys.csv",
			ContentType: "text/csv",
			Data:        []byte(report.ToCSV(report.SurveysTable(surveys))),
		}, true)
		return
	}

	page := listPage{Surveys: make([]surveyRow, 0, len(surveys))}
	for i := range surveys {
		sv := &surveys[i]
		row := surveyRow{
			ID:        sv.ID(),
			Title:     sv.Title,
			Status:    string(sv.Status),
			Type:      sv.SurveyType,
			Responses: sv.ResponseCount(),
		}
		if !sv.CreatedAt.IsZero() {
			row.Created = common.FormatDate(sv.CreatedAt.Time)
		}
		page.Surveys = append(page.Surveys, row)
	}
	renderTemplate(w, listTemplate, page)
}

// load refreshes the survey through its controller. A processing survey
// starts polling, so connected dashboards receive progress.
func (s *Server) load(w http.ResponseWriter, r *http.Request) (*monitor.Snapshot, bool) {
	c := s.controller(r.PathValue("id"))
	if c == nil {
		WriteError(w, http.StatusServiceUnavailable, "Server is shutting down")
		return nil, false
	}
	snap, err := c.Load(r.Context())
	if err != nil {
		WriteBackendError(w, err)
		return nil, false
	}
	return snap, true
}

// loadAnalysis is load for handlers that need finished results.
func (s *Server) loadAnalysis(w http.ResponseWriter, r *http.Request) (*monitor.Snapshot, bool) {
	snap, ok := s.load(w, r)
	if !ok {
		return nil, false
	}
	if snap.Analysis == nil {
		WriteErrorWithCode(w, http.StatusConflict,
			fmt.Sprintf("Survey is %s; no analysis results yet", snap.Survey.Status), "not_analyzed")
		return nil, false
	}
	return snap, true
}

// handleSurveyReport handles GET /surveys/{id}.
func (s *Server) handleSurveyReport(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	snap, ok := s.load(w, r)
	if !ok {
		return
	}

	sv := snap.Survey
	page := reportPage{
		ID:      sv.ID(),
		Title:   sv.Title,
		Status:  string(sv.Status),
		Polling: snap.Polling,
		Formats: report.Formats,
	}

	switch {
	case snap.Analysis != nil:
		view := insights.Build(snap.Analysis)
		page.Analyzed = true
		page.Charts = visibleCharts(view)
		page.Report = template.HTML(report.RenderHTML(report.BuildDocument(sv, view)))
	case sv.Status == models.StatusProcessing:
		page.Message = "Analysis in progress..."
	case sv.Status == models.StatusFailed:
		page.Message = "The last analysis failed. Start it again to retry."
	default:
		page.Message = "This survey has not been analyzed yet."
	}
	renderTemplate(w, reportTemplate, page)
}

func visibleCharts(v *insights.View) []string {
	var names []string
	if v.ShowSentimentChart() {
		names = append(names, report.ChartSentiment)
	}
	if v.ShowTopicsChart() {
		names = append(names, report.ChartTopics)
	}
	if v.ShowPriorityChart() {
		names = append(names, report.ChartPriority)
	}
	return names
}

// handleChart handles GET /surveys/{id}/charts/{chart}.png. A suppressed
// chart answers 204.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	name := strings.TrimSuffix(r.PathValue("chart"), ".png")
	if !slices.Contains(report.ChartNames, name) {
		WriteError(w, http.StatusNotFound, "Unknown chart: "+name)
		return
	}

	snap, ok := s.loadAnalysis(w, r)
	if !ok {
		return
	}

	data, err := report.RenderChart(name, insights.Build(snap.Analysis))
	if errors.Is(err, report.ErrNoChartData) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("chart", name).Msg("Chart render failed")
		WriteError(w, http.StatusInternalServerError, "Chart render failed")
		return
	}
	WriteFile(w, report.File{Format: report.FormatCharts, Part: name, ContentType: "image/png", Data: data}, false)
}

// handleExportDownload handles GET /surveys/{id}/export/{format}. Formats
// with several files take ?table= (csv) or ?chart= (png).
func (s *Server) handleExportDownload(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	format := r.PathValue("format")
	if !slices.Contains(report.Formats, format) {
		WriteError(w, http.StatusBadRequest, "Unsupported export format: "+format)
		return
	}

	snap, ok := s.loadAnalysis(w, r)
	if !ok {
		return
	}

	files, err := report.Render(format, snap.Survey, snap.Analysis, s.app.TextLayout())
	if err != nil {
		s.logger.Error().Err(err).Str("format", format).Msg("Export render failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	part := ""
	switch format {
	case report.FormatCSV:
		part = queryOr(r, "table", "topics")
	case report.FormatCharts:
		part = queryOr(r, "chart", report.ChartSentiment)
	}
	for _, f := range files {
		if f.Part == part {
			WriteFile(w, f, true)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryOr(r *http.Request, key, fallback string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return fallback
}

type publishRequest struct {
	Formats []string `json:"formats"`
	Publish bool     `json:"publish"`
}

type publishResponse struct {
	SurveyID  string            `json:"survey_id"`
	Artifacts []report.Artifact `json:"artifacts"`
}

// handleExportPublish handles POST /surveys/{id}/export: renders the
// requested formats into the configured sink (S3 when publish is set).
func (s *Server) handleExportPublish(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req publishRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	for _, f := range req.Formats {
		if !slices.Contains(report.Formats, f) {
			WriteError(w, http.StatusBadRequest, "Unsupported export format: "+f)
			return
		}
	}

	sink, err := s.app.NewSink(r.Context(), req.Publish)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	id := r.PathValue("id")
	artifacts, err := s.app.Reports.Export(r.Context(), id, req.Formats, sink)
	if err != nil {
		WriteBackendError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, publishResponse{SurveyID: id, Artifacts: artifacts})
}

type analyzeRequest struct {
	AnalysisTypes []string `json:"analysis_types"`
}

// handleAnalyze handles POST /surveys/{id}/analyze. The run proceeds in the
// background; progress arrives over /ws.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req analyzeRequest
	if r.ContentLength > 0 && !DecodeJSON(w, r, &req) {
		return
	}

	id := r.PathValue("id")
	c := s.controller(id)
	if c == nil {
		WriteError(w, http.StatusServiceUnavailable, "Server is shutting down")
		return
	}

	s.hub.Broadcast(ProgressEvent{SurveyID: id, Type: EventStarted, Status: models.StatusProcessing, Message: "Analysis started"})
	go func() {
		if _, err := c.StartAnalysis(s.ctx, req.AnalysisTypes); err != nil {
			s.logger.Warn().Err(err).Str("survey_id", id).Msg("Analysis start failed")
			s.hub.Broadcast(ProgressEvent{SurveyID: id, Type: EventError, Message: err.Error()})
		}
	}()

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"survey_id": id,
		"status":    string(models.StatusProcessing),
	})
}
