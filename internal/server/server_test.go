package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/surveylens/internal/app"
	"github.com/bobmcallan/surveylens/internal/common"
	"github.com/bobmcallan/surveylens/internal/credentials"
	"github.com/bobmcallan/surveylens/internal/models"
)

const resultsPayload = `{"survey_id":"s1","analysis_type":"full_analysis","total_responses_analyzed":10,
"summary":"Customers value speed","key_findings":["Fast checkout"],
"overall_sentiment":{"label":"positive","score":0.6,"confidence":0.8},
"sentiment_distribution":{"positive":6,"negative":2,"neutral":2},
"topics":[{"topic":"Checkout speed","frequency":"high","keywords":["fast"]}],
"open_problems":[{"title":"Slow support","description":"Tickets wait days","priority":"high"}]}`

// Nothing to chart: no sentiment, no topics, no problems.
const emptyPayload = `{"survey_id":"s3","summary":"Nothing notable","key_findings":[]}`

// fakeBackend serves the subset of the analysis API the dashboard uses.
type fakeBackend struct {
	mu       sync.Mutex
	surveys  map[string]*models.Survey
	results  map[string]string
	statuses []models.StatusResponse

	healthy     atomic.Bool
	startCalls  atomic.Int32
	statusCalls atomic.Int32
}

func newFakeBackend() *fakeBackend {
	fb := &fakeBackend{
		surveys: map[string]*models.Survey{
			"s1": {SurveyID: "s1", Title: "Customer Feedback", Status: models.StatusCompleted, SurveyType: models.SurveyTypeSimple, TotalResponses: 10},
			"s2": {SurveyID: "s2", Title: "Onboarding", Status: models.StatusPending, SurveyType: models.SurveyTypeSimple, TotalResponses: 3},
			"s3": {SurveyID: "s3", Title: "Quiet", Status: models.StatusCompleted, SurveyType: models.SurveyTypeSimple},
		},
		results: map[string]string{"s1": resultsPayload, "s3": emptyPayload},
	}
	fb.healthy.Store(true)
	return fb
}

func (fb *fakeBackend) setStatus(id string, st models.SurveyStatus) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.surveys[id].Status = st
}

func (fb *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	path := r.URL.Path
	switch {
	case path == "/api/v1/health":
		if !fb.healthy.Load() {
			writeTestJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "database down"})
			return
		}
		writeTestJSON(w, http.StatusOK, map[string]string{"status": "healthy"})

	case path == "/api/v1/surveys/":
		list := models.SurveyList{}
		for _, id := range []string{"s1", "s2", "s3"} {
			list.Surveys = append(list.Surveys, *fb.surveys[id])
		}
		writeTestJSON(w, http.StatusOK, list)

	case strings.HasPrefix(path, "/api/v1/surveys/"):
		sv, ok := fb.surveys[strings.TrimPrefix(path, "/api/v1/surveys/")]
		if !ok {
			writeTestJSON(w, http.StatusNotFound, map[string]string{"detail": "Survey not found"})
			return
		}
		writeTestJSON(w, http.StatusOK, sv)

	case path == "/api/v1/analysis/analyze" && r.Method == http.MethodPost:
		fb.startCalls.Add(1)
		var req models.AnalysisRequest
		json.NewDecoder(r.Body).Decode(&req)
		fb.surveys[req.SurveyID].Status = models.StatusProcessing
		writeTestJSON(w, http.StatusOK, models.AnalysisStarted{SurveyID: req.SurveyID, AnalysisTypes: req.AnalysisTypes, Status: models.StatusProcessing})

	case strings.HasSuffix(path, "/status"):
		fb.statusCalls.Add(1)
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/api/v1/analysis/"), "/status")
		resp := models.StatusResponse{SurveyID: id, Status: fb.surveys[id].Status}
		if len(fb.statuses) > 0 {
			resp = fb.statuses[0]
			fb.statuses = fb.statuses[1:]
			fb.surveys[id].Status = resp.Status
		}
		writeTestJSON(w, http.StatusOK, resp)

	case strings.HasSuffix(path, "/results"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/api/v1/analysis/"), "/results")
		payload, ok := fb.results[id]
		if !ok {
			writeTestJSON(w, http.StatusNotFound, map[string]string{"detail": "No analysis results found"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, payload)

	default:
		writeTestJSON(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
	}
}

func writeTestJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func newTestServer(t *testing.T, fb *fakeBackend) *Server {
	t.Helper()
	backendSrv := httptest.NewServer(fb)
	t.Cleanup(backendSrv.Close)

	cfg := common.NewDefaultConfig()
	cfg.API.BaseURL = backendSrv.URL
	cfg.API.RateLimit = 0
	cfg.Poll.Interval = "10ms"
	cfg.Poll.StartDelay = "0s"
	cfg.Export.Dir = t.TempDir()

	s := NewServer(app.New(cfg, common.NewSilentLogger(), credentials.NewMemoryStore("", "")))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})
	return s
}

func serve(s *Server, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	fb := newFakeBackend()
	s := newTestServer(t, fb)

	rr := serve(s, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "healthy", resp.BackendStatus)

	fb.healthy.Store(false)
	rr = serve(s, http.MethodGet, "/api/health", nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Contains(t, resp.BackendError, "database down")
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, newFakeBackend())
	rr := serve(s, http.MethodPost, "/api/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "GET, HEAD", rr.Header().Get("Allow"))
}

func TestSurveyList(t *testing.T) {
	s := newTestServer(t, newFakeBackend())

	rr := serve(s, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	body := rr.Body.String()
	assert.Contains(t, body, `<a href="/surveys/s1">Customer Feedback</a>`)
	assert.Contains(t, body, `class="status pending"`)

	rr = serve(s, http.MethodGet, "/?format=csv", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="surveys.csv"`, rr.Header().Get("Content-Disposition"))
	lines := strings.Split(rr.Body.String(), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "survey_id,title,status,survey_type,total_responses,created_at", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], `"s1","Customer Feedback","completed"`))
}

func TestSurveyReport_Completed(t *testing.T) {
	s := newTestServer(t, newFakeBackend())

	rr := serve(s, http.MethodGet, "/surveys/s1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Survey Analysis Report")
	assert.Contains(t, body, `src="/surveys/s1/charts/sentiment.png"`)
	assert.Contains(t, body, `src="/surveys/s1/charts/priority.png"`)
	assert.Contains(t, body, `href="/surveys/s1/export/pdf"`)
	assert.Contains(t, body, "Customers value speed")
}

func TestSurveyReport_NotAnalyzed(t *testing.T) {
	s := newTestServer(t, newFakeBackend())

	rr := serve(s, http.MethodGet, "/surveys/s2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "has not been analyzed yet")
	assert.NotContains(t, rr.Body.String(), "/charts/")
}

func TestSurveyReport_NotFound(t *testing.T) {
	s := newTestServer(t, newFakeBackend())

	rr := serve(s, http.MethodGet, "/surveys/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &er))
	assert.Equal(t, "Survey not found", er.Error)
}

func TestChart(t *testing.T) {
	s := newTestServer(t, newFakeBackend())

	rr := serve(s, http.MethodGet, "/surveys/s1/charts/sentiment.png", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG", rr.Body.String()[:4])
	assert.Empty(t, rr.Header().Get("Content-Disposition"))

	rr = serve(s, http.MethodGet, "/surveys/s3/charts/sentiment.png", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code, "zero distribution suppresses the chart")

	rr = serve(s, http.MethodGet, "/surveys/s1/charts/radar.png", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(s, http.MethodGet, "/surveys/s2/charts/topics.png", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestExportDownload(t *testing.T) {
	s := newTestServer(t, newFakeBackend())

	rr := serve(s, http.MethodGet, "/surveys/s1/export/pdf", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="CustomerFeedback-analysis.pdf"`, rr.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rr.Body.String(), "%PDF"))

	rr = serve(s, http.MethodGet, "/surveys/s1/export/csv?table=problems", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="CustomerFeedback-analysis.problems.csv"`, rr.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rr.Body.String(), "title,description,category,priority,question\n"))

	rr = serve(s, http.MethodGet, "/surveys/s1/export/json", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "s1", got["survey_id"])

	rr = serve(s, http.MethodGet, "/surveys/s3/export/csv?table=topics", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code, "empty table yields no file")

	rr = serve(s, http.MethodGet, "/surveys/s1/export/docx", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(s, http.MethodGet, "/surveys/s2/export/json", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestExportPublish_FileSink(t *testing.T) {
	s := newTestServer(t, newFakeBackend())

	rr := serve(s, http.MethodPost, "/surveys/s1/export", strings.NewReader(`{"formats":["json","md"]}`))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp publishResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Artifacts, 2)
	for _, a := range resp.Artifacts {
		_, err := os.Stat(a.Location)
		assert.NoError(t, err, a.Location)
		assert.Equal(t, s.app.Config.Export.Dir, filepath.Dir(a.Location))
	}

	rr = serve(s, http.MethodPost, "/surveys/s1/export", strings.NewReader(`{"formats":["exe"]}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(s, http.MethodPost, "/surveys/s1/export", strings.NewReader(`{"formats":["json"],"publish":true}`))
	assert.Equal(t, http.StatusInternalServerError, rr.Code, "publishing without a bucket fails")
}

func TestAnalyze_StreamsProgressOverWebsocket(t *testing.T) {
	fb := newFakeBackend()
	fb.statuses = []models.StatusResponse{
		{SurveyID: "s2", Status: models.StatusProcessing, Progress: &models.Progress{Percentage: 50, Step: models.StepAnalyzingQuestions, Message: "Halfway"}},
		{SurveyID: "s2", Status: models.StatusCompleted},
	}
	fb.results["s2"] = strings.Replace(resultsPayload, `"s1"`, `"s2"`, 1)
	s := newTestServer(t, fb)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.Hub().ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(ts.URL+"/surveys/s2/analyze", "application/json", strings.NewReader(`{"analysis_types":["sentiment"]}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var seen []ProgressEvent
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var ev ProgressEvent
		require.NoError(t, conn.ReadJSON(&ev))
		seen = append(seen, ev)
		if ev.Type == EventCompleted || ev.Type == EventFailed || ev.Type == EventError {
			break
		}
	}

	require.GreaterOrEqual(t, len(seen), 3)
	assert.Equal(t, EventStarted, seen[0].Type)
	last := seen[len(seen)-1]
	assert.Equal(t, EventCompleted, last.Type)
	assert.Equal(t, "s2", last.SurveyID)
	assert.Equal(t, "Onboarding", last.Message)

	var progress *ProgressEvent
	for i := range seen {
		if seen[i].Type == EventProgress {
			progress = &seen[i]
		}
	}
	require.NotNil(t, progress)
	assert.Equal(t, 50.0, progress.Progress.Percentage)
	assert.Equal(t, "Halfway", progress.Message)
	assert.Equal(t, int32(1), fb.startCalls.Load())

	// Completed results are cached by the survey's controller.
	snap := s.controller("s2").Snapshot()
	require.NotNil(t, snap.Analysis)
	assert.False(t, snap.Polling)
}

func TestShutdown_ClosesControllers(t *testing.T) {
	fb := newFakeBackend()
	fb.setStatus("s2", models.StatusProcessing)
	s := newTestServer(t, fb)

	rr := serve(s, http.MethodGet, "/surveys/s2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Analysis in progress")

	c := s.controller("s2")
	require.True(t, c.Polling())
	require.Eventually(t, func() bool { return fb.statusCalls.Load() > 0 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Shutdown(context.Background()))
	assert.False(t, c.Polling())
	assert.Nil(t, s.controller("s2"))

	time.Sleep(30 * time.Millisecond)
	calls := fb.statusCalls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, fb.statusCalls.Load(), "no polling after shutdown")

	rr = serve(s, http.MethodPost, "/surveys/s2/analyze", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestCrossOriginRequestsRejected(t *testing.T) {
	fb := newFakeBackend()
	s := newTestServer(t, fb)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	post := func(path string, header map[string]string) int {
		req, err := http.NewRequest(http.MethodPost, ts.URL+path, nil)
		require.NoError(t, err)
		for k, v := range header {
			req.Header.Set(k, v)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	evil := map[string]string{"Origin": "https://evil.example"}
	assert.Equal(t, http.StatusForbidden, post("/surveys/s2/analyze", evil))
	assert.Equal(t, http.StatusForbidden, post("/surveys/s1/export", evil))
	assert.Equal(t, http.StatusForbidden, post("/surveys/s2/analyze", map[string]string{"Sec-Fetch-Site": "cross-site"}))
	assert.Equal(t, int32(0), fb.startCalls.Load())

	// The dashboard's own page posts with a matching Origin.
	assert.Equal(t, http.StatusAccepted, post("/surveys/s2/analyze", map[string]string{"Origin": ts.URL}))

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://evil.example"}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, s.Hub().ClientCount())

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {ts.URL}})
	require.NoError(t, err)
	conn.Close()
}
