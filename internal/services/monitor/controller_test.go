package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/surveylens/internal/models"
)

// --- fake clock ---

type fakeTicker struct {
	c       chan time.Time
	stopped atomic.Bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }
func (t *fakeTicker) Stop()               { t.stopped.Store(true) }

type fakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
	afters  []chan time.Time
	created chan *fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{created: make(chan *fakeTicker, 16)}
}

func (f *fakeClock) NewTicker(d time.Duration) Ticker {
	t := &fakeTicker{c: make(chan time.Time)}
	f.mu.Lock()
	f.tickers = append(f.tickers, t)
	f.mu.Unlock()
	f.created <- t
	return t
}

func (f *fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	f.mu.Lock()
	f.afters = append(f.afters, ch)
	f.mu.Unlock()
	return ch
}

// fireAfters releases every pending After.
func (f *fakeClock) fireAfters() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.afters)
	for _, ch := range f.afters {
		ch <- time.Now()
	}
	f.afters = nil
	return n
}

// waitTicker returns the next ticker the poll loop creates.
func (f *fakeClock) waitTicker(t *testing.T) *fakeTicker {
	t.Helper()
	select {
	case tk := <-f.created:
		return tk
	case <-time.After(time.Second):
		t.Fatal("poll loop never created a ticker")
		return nil
	}
}

// tick delivers one tick and reports whether the loop took it.
func (tk *fakeTicker) tick() bool {
	if tk.stopped.Load() {
		return false
	}
	select {
	case tk.c <- time.Now():
		return true
	case <-time.After(100 * time.Millisecond):
		return false
	}
}

// --- fake backend ---

type fakeAnalysisClient struct {
	mu          sync.Mutex
	surveyState models.SurveyStatus
	statuses    []models.StatusResponse
	statusErrs  []error
	results     []byte
	started     []models.AnalysisRequest

	statusCalls  atomic.Int32
	resultsCalls atomic.Int32
	statusSeen   chan struct{}
}

func newFakeClient(state models.SurveyStatus) *fakeAnalysisClient {
	return &fakeAnalysisClient{
		surveyState: state,
		results:     []byte(`{"survey_id":"s1","summary":"done","sentiment_distribution":{"positive":1,"negative":0,"neutral":0}}`),
		statusSeen:  make(chan struct{}, 16),
	}
}

func (f *fakeAnalysisClient) setState(s models.SurveyStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.surveyState = s
}

func (f *fakeAnalysisClient) GetSurvey(ctx context.Context, id string) (*models.Survey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &models.Survey{SurveyID: id, Title: "Survey", Status: f.surveyState}, nil
}

func (f *fakeAnalysisClient) StartAnalysis(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisStarted, error) {
	f.mu.Lock()
	f.started = append(f.started, req)
	f.surveyState = models.StatusProcessing
	f.mu.Unlock()
	return &models.AnalysisStarted{SurveyID: req.SurveyID, Status: models.StatusProcessing}, nil
}

func (f *fakeAnalysisClient) GetAnalysisStatus(ctx context.Context, id string) (*models.StatusResponse, error) {
	f.statusCalls.Add(1)
	defer func() { f.statusSeen <- struct{}{} }()

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statusErrs) > 0 {
		err := f.statusErrs[0]
		f.statusErrs = f.statusErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(f.statuses) == 0 {
		return &models.StatusResponse{SurveyID: id, Status: models.StatusProcessing}, nil
	}
	s := f.statuses[0]
	f.statuses = f.statuses[1:]
	if s.Status.IsTerminal() {
		f.surveyState = s.Status
	}
	return &s, nil
}

func (f *fakeAnalysisClient) GetAnalysisResults(ctx context.Context, id string) ([]byte, error) {
	f.resultsCalls.Add(1)
	return f.results, nil
}

func (f *fakeAnalysisClient) GetAllAnalysisResults(ctx context.Context, id string) ([]byte, error) {
	return []byte(`{"analyses":[],"total":0}`), nil
}

func (f *fakeAnalysisClient) DeleteAnalysis(ctx context.Context, id string) error { return nil }

func (f *fakeAnalysisClient) waitStatus(t *testing.T) {
	t.Helper()
	select {
	case <-f.statusSeen:
	case <-time.After(time.Second):
		t.Fatal("status request never issued")
	}
}

// --- recording observer ---

type events struct {
	mu        sync.Mutex
	progress  []models.Progress
	completed chan *models.Analysis
	failed    chan *models.Survey
	errs      chan error
}

func newEvents() *events {
	return &events{
		completed: make(chan *models.Analysis, 4),
		failed:    make(chan *models.Survey, 4),
		errs:      make(chan error, 4),
	}
}

func (e *events) observer() ObserverFuncs {
	return ObserverFuncs{
		Progress: func(p models.Progress) {
			e.mu.Lock()
			e.progress = append(e.progress, p)
			e.mu.Unlock()
		},
		Completed: func(s *models.Survey, a *models.Analysis) { e.completed <- a },
		Failed:    func(s *models.Survey) { e.failed <- s },
		Error:     func(err error) { e.errs <- err },
	}
}

func waitDone(t *testing.T, task *Task) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("poll task did not exit")
	}
}

// --- tests ---

func TestLoad_CompletedCachesResults(t *testing.T) {
	client := newFakeClient(models.StatusCompleted)
	c := NewController(client, "s1", nil, WithClock(newFakeClock()))
	ctx := context.Background()

	snap, err := c.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.Analysis)
	assert.Equal(t, models.KindSimple, snap.Analysis.Kind)
	assert.False(t, snap.Polling)

	_, err = c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), client.resultsCalls.Load(), "results are fetched once")
	assert.Equal(t, int32(0), client.statusCalls.Load())
}

func TestLoad_PendingDoesNotPoll(t *testing.T) {
	client := newFakeClient(models.StatusPending)
	c := NewController(client, "s1", nil, WithClock(newFakeClock()))

	snap, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Polling)
	assert.Nil(t, snap.Analysis)
	assert.Nil(t, c.Task())
}

func TestPolling_ProgressThenCompleted(t *testing.T) {
	clock := newFakeClock()
	client := newFakeClient(models.StatusProcessing)
	client.statuses = []models.StatusResponse{
		{Status: models.StatusProcessing, Progress: &models.Progress{Percentage: 40, Step: models.StepAnalyzingQuestions, CurrentQuestion: 2, TotalQuestions: 5}},
		{Status: models.StatusCompleted},
	}
	ev := newEvents()
	c := NewController(client, "s1", ev.observer(), WithClock(clock))

	snap, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Polling)
	task := c.Task()
	require.NotNil(t, task)

	tk := clock.waitTicker(t)
	require.True(t, tk.tick())
	client.waitStatus(t)
	require.True(t, tk.tick())
	client.waitStatus(t)

	select {
	case a := <-ev.completed:
		require.NotNil(t, a)
		assert.Equal(t, "done", a.Simple.Summary)
	case <-time.After(time.Second):
		t.Fatal("OnCompleted not called")
	}
	waitDone(t, task)

	ev.mu.Lock()
	require.Len(t, ev.progress, 1)
	assert.Equal(t, 40.0, ev.progress[0].Percentage)
	ev.mu.Unlock()

	assert.False(t, tk.tick(), "no tick is taken after a terminal status")
	assert.Equal(t, int32(2), client.statusCalls.Load())
	assert.False(t, c.Polling())

	snap = c.Snapshot()
	assert.Equal(t, models.StatusCompleted, snap.Survey.Status)
	assert.NotNil(t, snap.Analysis)
}

func TestPolling_Failed(t *testing.T) {
	clock := newFakeClock()
	client := newFakeClient(models.StatusProcessing)
	client.statuses = []models.StatusResponse{{Status: models.StatusFailed}}
	ev := newEvents()
	c := NewController(client, "s1", ev.observer(), WithClock(clock))

	_, err := c.Load(context.Background())
	require.NoError(t, err)
	task := c.Task()

	tk := clock.waitTicker(t)
	require.True(t, tk.tick())

	select {
	case s := <-ev.failed:
		assert.Equal(t, models.StatusFailed, s.Status)
	case <-time.After(time.Second):
		t.Fatal("OnFailed not called")
	}
	waitDone(t, task)
	assert.False(t, tk.tick())
	assert.Equal(t, int32(0), client.resultsCalls.Load())
}

func TestPolling_ErrorsAreSwallowed(t *testing.T) {
	clock := newFakeClock()
	client := newFakeClient(models.StatusProcessing)
	client.statusErrs = []error{errors.New("connection reset")}
	client.statuses = []models.StatusResponse{{Status: models.StatusCompleted}}
	ev := newEvents()
	c := NewController(client, "s1", ev.observer(), WithClock(clock))

	_, err := c.Load(context.Background())
	require.NoError(t, err)
	tk := clock.waitTicker(t)

	require.True(t, tk.tick())
	client.waitStatus(t)
	assert.True(t, c.Polling(), "a failed poll keeps the loop alive")

	require.True(t, tk.tick())
	select {
	case <-ev.completed:
	case <-time.After(time.Second):
		t.Fatal("OnCompleted not called after recovery")
	}
	assert.Empty(t, ev.errs)
}

func TestClose_StopsPolling(t *testing.T) {
	clock := newFakeClock()
	client := newFakeClient(models.StatusProcessing)
	c := NewController(client, "s1", nil, WithClock(clock))

	_, err := c.Load(context.Background())
	require.NoError(t, err)
	task := c.Task()
	tk := clock.waitTicker(t)

	c.Close()
	waitDone(t, task)
	assert.False(t, tk.tick())
	assert.Equal(t, int32(0), client.statusCalls.Load())

	// Reloading a closed controller never restarts polling.
	snap, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Polling)
}

func TestLoad_KeepsLiveTask(t *testing.T) {
	clock := newFakeClock()
	client := newFakeClient(models.StatusProcessing)
	c := NewController(client, "s1", nil, WithClock(clock))
	ctx := context.Background()

	_, err := c.Load(ctx)
	require.NoError(t, err)
	first := c.Task()
	tk := clock.waitTicker(t)

	_, err = c.Load(ctx)
	require.NoError(t, err)
	assert.Same(t, first, c.Task())
	select {
	case <-clock.created:
		t.Fatal("a second Load must not restart the poll loop")
	case <-time.After(50 * time.Millisecond):
	}

	require.True(t, tk.tick())
	client.waitStatus(t)
	c.Close()
	waitDone(t, first)
}

func TestStartAnalysis_ReplacesTask(t *testing.T) {
	clock := newFakeClock()
	client := newFakeClient(models.StatusProcessing)
	c := NewController(client, "s1", nil, WithClock(clock), WithStartDelay(0))
	ctx := context.Background()

	_, err := c.Load(ctx)
	require.NoError(t, err)
	first := c.Task()
	clock.waitTicker(t)

	done := make(chan error, 1)
	go func() {
		_, err := c.StartAnalysis(ctx, nil)
		done <- err
	}()
	require.Eventually(t, func() bool { return clock.fireAfters() > 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, <-done)

	clock.waitTicker(t)
	second := c.Task()
	require.NotNil(t, second)
	require.NotSame(t, first, second)
	waitDone(t, first)
	select {
	case <-second.Done():
		t.Fatal("the replacement task must still be running")
	default:
	}
	c.Close()
	waitDone(t, second)
}

func TestStartAnalysis_DefaultsAndDelay(t *testing.T) {
	clock := newFakeClock()
	client := newFakeClient(models.StatusPending)
	c := NewController(client, "s1", nil, WithClock(clock), WithStartDelay(2*time.Second))

	done := make(chan *Snapshot, 1)
	go func() {
		snap, err := c.StartAnalysis(context.Background(), nil)
		assert.NoError(t, err)
		done <- snap
	}()

	require.Eventually(t, func() bool { return clock.fireAfters() > 0 }, time.Second, 5*time.Millisecond)

	select {
	case snap := <-done:
		require.NotNil(t, snap)
		assert.True(t, snap.Polling, "reload after start finds the survey processing")
	case <-time.After(time.Second):
		t.Fatal("StartAnalysis did not return after the delay")
	}

	client.mu.Lock()
	require.Len(t, client.started, 1)
	assert.Equal(t, []string{"full_analysis"}, client.started[0].AnalysisTypes)
	client.mu.Unlock()
	c.Close()
}

func TestStartAnalysis_CancelledDuringDelay(t *testing.T) {
	client := newFakeClient(models.StatusPending)
	c := NewController(client, "s1", nil, WithClock(newFakeClock()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.StartAnalysis(ctx, []string{models.AnalysisSentiment})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, c.Polling())
}

func TestAccept_DropsStaleSequence(t *testing.T) {
	c := NewController(newFakeClient(models.StatusPending), "s1", nil)
	assert.True(t, c.accept(2))
	assert.False(t, c.accept(1), "older response after a newer one is stale")
	assert.True(t, c.accept(3))
}

func TestTask_CancelIdempotent(t *testing.T) {
	var calls int
	task := newTask(func() { calls++ })
	task.Cancel()
	task.Cancel()
	assert.Equal(t, 1, calls)
}
