package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/surveylens/internal/models"
)

const resultsJSON = `{"survey_id":"s1","analysis_type":"full_analysis","total_responses_analyzed":12,
"summary":"People like the new flow","key_findings":["Faster","Clearer"],
"overall_sentiment":{"label":"positive","score":0.5,"confidence":0.9},
"sentiment_distribution":{"positive":8,"negative":2,"neutral":2},
"topics":[{"topic":"Speed","frequency":"high"}],
"open_problems":[]}`

type backendStub struct {
	t        *testing.T
	mu       sync.Mutex
	access   string
	surveys  map[string]*models.Survey
	statuses []models.StatusResponse
	uploads  []models.UploadRequest
}

func newBackendStub(t *testing.T) *backendStub {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ada@example.test",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	access, err := tok.SignedString([]byte("stub-secret"))
	require.NoError(t, err)

	return &backendStub{
		t:      t,
		access: access,
		surveys: map[string]*models.Survey{
			"s1": {SurveyID: "s1", Title: "Checkout Feedback", Status: models.StatusCompleted, SurveyType: models.SurveyTypeSimple, TotalResponses: 12},
			"s2": {SurveyID: "s2", Title: "Onboarding", Status: models.StatusPending, SurveyType: models.SurveyTypeSimple, TotalResponses: 3},
		},
	}
}

func (b *backendStub) reply(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (b *backendStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := r.URL.Path
	switch {
	case p == "/api/v1/auth/login":
		var req models.LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			b.reply(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})
			return
		}
		b.reply(w, http.StatusOK, models.TokenPair{AccessToken: b.access, RefreshToken: "refresh-1", TokenType: "bearer"})
	case p == "/api/v1/auth/me":
		b.reply(w, http.StatusOK, models.User{ID: "u1", Email: "ada@example.test", FullName: "Ada Lovelace", IsActive: true})
	case p == "/api/v1/auth/logout":
		b.reply(w, http.StatusOK, map[string]string{"message": "ok"})
	case p == "/api/v1/surveys/":
		b.reply(w, http.StatusOK, models.SurveyList{Surveys: []models.Survey{*b.surveys["s1"], *b.surveys["s2"]}})
	case p == "/api/v1/surveys/upload":
		var req models.UploadRequest
		json.NewDecoder(r.Body).Decode(&req)
		b.uploads = append(b.uploads, req)
		b.reply(w, http.StatusOK, models.UploadResponse{SurveyID: "new1", Title: req.Title, TotalResponses: len(req.Responses)})
	case strings.HasPrefix(p, "/api/v1/surveys/"):
		s, ok := b.surveys[strings.TrimPrefix(p, "/api/v1/surveys/")]
		if !ok {
			b.reply(w, http.StatusNotFound, map[string]string{"detail": "Survey not found"})
			return
		}
		b.reply(w, http.StatusOK, s)
	case p == "/api/v1/analysis/analyze":
		var req models.AnalysisRequest
		json.NewDecoder(r.Body).Decode(&req)
		b.surveys[req.SurveyID].Status = models.StatusProcessing
		b.reply(w, http.StatusOK, models.AnalysisStarted{SurveyID: req.SurveyID, Status: models.StatusProcessing, AnalysisTypes: req.AnalysisTypes})
	case strings.HasSuffix(p, "/status"):
		id := strings.TrimSuffix(strings.TrimPrefix(p, "/api/v1/analysis/"), "/status")
		resp := models.StatusResponse{SurveyID: id, Status: b.surveys[id].Status}
		if len(b.statuses) > 0 {
			resp, b.statuses = b.statuses[0], b.statuses[1:]
			b.surveys[id].Status = resp.Status
		}
		b.reply(w, http.StatusOK, resp)
	case strings.HasSuffix(p, "/results"):
		id := strings.TrimSuffix(strings.TrimPrefix(p, "/api/v1/analysis/"), "/results")
		if b.surveys[id] == nil || b.surveys[id].Status != models.StatusCompleted {
			b.reply(w, http.StatusNotFound, map[string]string{"detail": "No analysis results found"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, strings.Replace(resultsJSON, `"s1"`, fmt.Sprintf("%q", id), 1))
	default:
		b.reply(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
	}
}

type harness struct {
	dir      string
	config   string
	creds    string
	exports  string
	backend  *backendStub
	stdout   bytes.Buffer
	stderr   bytes.Buffer
	exitCode int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := newBackendStub(t)
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	h := &harness{
		dir:     dir,
		config:  filepath.Join(dir, "surveylens.toml"),
		creds:   filepath.Join(dir, "credentials.json"),
		exports: filepath.Join(dir, "exports"),
		backend: b,
	}
	cfg := fmt.Sprintf(`
[api]
base_url = %q
rate_limit = 0

[auth]
credentials_path = %q

[poll]
interval = "10ms"
start_delay = "0s"

[export]
dir = %q

[logging]
level = "error"
`, srv.URL, h.creds, h.exports)
	require.NoError(t, os.WriteFile(h.config, []byte(cfg), 0o644))
	return h
}

// exec runs the CLI with args and an optional stdin.
func (h *harness) exec(stdin string, args ...string) int {
	h.stdout.Reset()
	h.stderr.Reset()
	full := append([]string{"--config", h.config, "--env-file", filepath.Join(h.dir, "none.env")}, args...)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	h.exitCode = run(ctx, full, strings.NewReader(stdin), &h.stdout, &h.stderr)
	return h.exitCode
}

func TestVersion(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run(context.Background(), []string{"version", "--config", "/nonexistent/dir/x.toml"}, strings.NewReader(""), &out, &errOut)
	assert.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(out.String(), "surveylens dev"))
}

func TestLoginWhoamiLogout(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.exec("", "login", "--email", "ada@example.test", "--password", "secret"), h.stderr.String())
	assert.Equal(t, "Logged in as Ada Lovelace <ada@example.test>\n", h.stdout.String())

	raw, err := os.ReadFile(h.creds)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "refresh-1")

	require.Equal(t, 0, h.exec("", "whoami"), h.stderr.String())
	out := h.stdout.String()
	assert.Contains(t, out, "User:     Ada Lovelace <ada@example.test>")
	assert.Contains(t, out, "Session:  valid until")

	require.Equal(t, 0, h.exec("", "logout"))
	assert.Equal(t, "Logged out\n", h.stdout.String())

	assert.Equal(t, 1, h.exec("", "whoami"))
	assert.Equal(t, "Error: not logged in\n", h.stderr.String())
}

func TestLogin_PasswordFromStdin(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, 0, h.exec("secret\n", "login", "--email", "ada@example.test"), h.stderr.String())
	assert.Contains(t, h.stderr.String(), "Password: ")
	assert.Contains(t, h.stdout.String(), "Logged in as")
}

func TestLogin_BackendDetailOnOneLine(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, 1, h.exec("", "login", "--email", "ada@example.test", "--password", "wrong"))
	msg := h.stderr.String()
	assert.True(t, strings.HasPrefix(msg, "Error: Incorrect email or password"), msg)
	assert.Equal(t, 1, strings.Count(msg, "\n"))
}

func TestSurveysList(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.exec("", "surveys", "list"), h.stderr.String())
	lines := strings.Split(strings.TrimSpace(h.stdout.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "Checkout Feedback")
	assert.Contains(t, lines[1], "completed")

	require.Equal(t, 0, h.exec("", "surveys", "list", "--csv"))
	assert.True(t, strings.HasPrefix(h.stdout.String(), "survey_id,title,status,survey_type,total_responses,created_at\n"))
	assert.Contains(t, h.stdout.String(), `"s2","Onboarding","pending","simple",3,`)
}

func TestSurveysShow_NotFound(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, 1, h.exec("", "surveys", "show", "missing"))
	assert.Contains(t, h.stderr.String(), "Error: Survey not found (status: 404")
}

func TestUploadManual(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.exec("", "upload", "manual", "--title", "Ideas", "--tags", "a, b,,c", "--text", "first\n\n  second  \n"), h.stderr.String())
	assert.Contains(t, h.stdout.String(), "Uploaded \"Ideas\" (2 responses)")
	assert.Contains(t, h.stdout.String(), "Survey ID: new1")

	require.Len(t, h.backend.uploads, 1)
	assert.Equal(t, []string{"first", "second"}, h.backend.uploads[0].Responses)
	assert.Equal(t, []string{"a", "b", "c"}, h.backend.uploads[0].Tags)

	require.Equal(t, 0, h.exec("one\ntwo\nthree\n", "upload", "manual", "--title", "Piped", "--file", "-"), h.stderr.String())
	assert.Contains(t, h.stdout.String(), "(3 responses)")
}

func TestUploadFile_RejectsExtension(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(h.dir, "answers.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	assert.Equal(t, 1, h.exec("", "upload", "file", path))
	assert.Contains(t, h.stderr.String(), "Error: ")
	assert.Contains(t, h.stderr.String(), ".xlsx")
}

func TestAnalyze_FollowsToCompletion(t *testing.T) {
	h := newHarness(t)
	h.backend.statuses = []models.StatusResponse{
		{SurveyID: "s2", Status: models.StatusProcessing, Progress: &models.Progress{Percentage: 50, Step: models.StepAnalyzingQuestions, CurrentQuestion: 1, TotalQuestions: 2, Message: "Halfway"}},
		{SurveyID: "s2", Status: models.StatusCompleted},
	}

	require.Equal(t, 0, h.exec("", "analyze", "s2", "--type", "sentiment,topic_detection"), h.stderr.String())
	out := h.stdout.String()
	assert.Contains(t, out, "Starting analysis for s2...")
	assert.Contains(t, out, "[ 50%] analyzing_questions (1/2) Halfway")
	assert.Contains(t, out, "Analysis completed: Onboarding")
	assert.Contains(t, out, "Sentiment:       POSITIVE")
}

func TestAnalyze_NoWatch(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, 0, h.exec("", "analyze", "s2", "--no-watch"), h.stderr.String())
	assert.Equal(t, "Analysis started for s2 (status: processing)\n", h.stdout.String())
}

func TestAnalyze_Failed(t *testing.T) {
	h := newHarness(t)
	h.backend.statuses = []models.StatusResponse{{SurveyID: "s2", Status: models.StatusFailed}}

	assert.Equal(t, 1, h.exec("", "analyze", "s2"))
	assert.Equal(t, "Error: "+ErrAnalysisFailed.Error()+"\n", h.stderr.String())
}

func TestWatch(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.exec("", "watch", "s1"), h.stderr.String())
	assert.Contains(t, h.stdout.String(), "Analysis completed: Checkout Feedback")

	assert.Equal(t, 1, h.exec("", "watch", "s2"))
	assert.Contains(t, h.stderr.String(), "survey s2 is pending")
}

func TestResults(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.exec("", "results", "s1", "--format", "md"), h.stderr.String())
	assert.Contains(t, h.stdout.String(), "Survey Analysis Report")
	assert.Contains(t, h.stdout.String(), "People like the new flow")

	require.Equal(t, 0, h.exec("", "results", "s1", "--format", "json"))
	var got map[string]any
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &got))
	assert.Equal(t, "s1", got["survey_id"])

	assert.Equal(t, 1, h.exec("", "results", "s1", "--format", "pdf"))
	assert.Equal(t, 1, h.exec("", "results", "s2"))
	assert.Contains(t, h.stderr.String(), "No analysis results found")
}

func TestExport_FileSink(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.exec("", "export", "s1", "--format", "json,csv,txt"), h.stderr.String())
	lines := strings.Split(strings.TrimSpace(h.stdout.String()), "\n")
	// A simple analysis with no problems only fills the topics table.
	require.Len(t, lines, 3)

	for _, name := range []string{
		"CheckoutFeedback-analysis.json",
		"CheckoutFeedback-analysis.topics.csv",
		"CheckoutFeedback-analysis.txt",
	} {
		_, err := os.Stat(filepath.Join(h.exports, name))
		assert.NoError(t, err, name)
	}

	assert.Equal(t, 1, h.exec("", "export", "s1", "--format", "docx"))
	assert.Contains(t, h.stderr.String(), "unsupported export format")
}
