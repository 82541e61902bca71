// Package monitor tracks a survey through analysis, polling the backend
// while it is processing.
package monitor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/bobmcallan/surveylens/internal/common"
	"github.com/bobmcallan/surveylens/internal/interfaces"
	"github.com/bobmcallan/surveylens/internal/models"
)

const (
	DefaultInterval   = 3 * time.Second
	DefaultStartDelay = 2 * time.Second
)

// Snapshot is the controller's view of a survey after Load.
type Snapshot struct {
	Survey   *models.Survey
	Analysis *models.Analysis
	Polling  bool
}

// Controller owns the detail state of one survey and at most one polling task.
type Controller struct {
	surveyID   string
	client     interfaces.AnalysisClient
	observer   Observer
	clock      Clock
	interval   time.Duration
	startDelay time.Duration
	decode     models.DecodeOptions
	logger     *common.Logger

	mu       sync.Mutex
	task     *Task
	survey   *models.Survey
	analysis *models.Analysis
	closed   bool

	// seq is issued per status request. applied is the highest seq whose
	// response was acted on; lower ones are stale and dropped.
	seq     uint64
	applied uint64
}

// Option configures a Controller
type Option func(*Controller)

// WithClock replaces the real clock
func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithInterval sets the poll interval
func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithStartDelay sets the wait between starting analysis and reloading
func WithStartDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.startDelay = d
		}
	}
}

// WithDecodeOptions sets how result payloads are decoded
func WithDecodeOptions(opts models.DecodeOptions) Option {
	return func(c *Controller) { c.decode = opts }
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// NewController creates a controller for surveyID. A nil observer discards events.
func NewController(client interfaces.AnalysisClient, surveyID string, observer Observer, opts ...Option) *Controller {
	if observer == nil {
		observer = ObserverFuncs{}
	}
	c := &Controller{
		surveyID:   surveyID,
		client:     client,
		observer:   observer,
		clock:      RealClock{},
		interval:   DefaultInterval,
		startDelay: DefaultStartDelay,
		logger:     common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SurveyID returns the tracked survey
func (c *Controller) SurveyID() string {
	return c.surveyID
}

// Load fetches the survey. Completed surveys get their results fetched once and
// cached; processing surveys start polling; anything else stops polling.
func (c *Controller) Load(ctx context.Context) (*Snapshot, error) {
	survey, err := c.client.GetSurvey(ctx, c.surveyID)
	if err != nil {
		return nil, fmt.Errorf("load survey %s: %w", c.surveyID, err)
	}

	c.mu.Lock()
	c.survey = survey
	cached := c.analysis
	c.mu.Unlock()

	switch survey.Status {
	case models.StatusCompleted:
		c.stopPolling()
		if cached == nil {
			analysis, err := c.fetchAnalysis(ctx)
			if err != nil {
				return nil, err
			}
			c.mu.Lock()
			c.analysis = analysis
			c.mu.Unlock()
		}
	case models.StatusProcessing:
		c.startPolling(ctx)
	default:
		c.stopPolling()
	}

	return c.Snapshot(), nil
}

// StartAnalysis requests a new run, waits the start delay and reloads.
// Empty types default to full_analysis.
func (c *Controller) StartAnalysis(ctx context.Context, types []string) (*Snapshot, error) {
	if len(types) == 0 {
		types = []string{models.AnalysisFull}
	}

	resp, err := c.client.StartAnalysis(ctx, models.AnalysisRequest{SurveyID: c.surveyID, AnalysisTypes: types})
	if err != nil {
		return nil, fmt.Errorf("start analysis: %w", err)
	}
	c.logger.Info().Str("survey_id", c.surveyID).Strs("types", types).Str("status", string(resp.Status)).Msg("Analysis started")

	c.mu.Lock()
	c.analysis = nil
	c.mu.Unlock()
	// The new run gets its own poll loop.
	c.stopPolling()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.clock.After(c.startDelay):
	}
	return c.Load(ctx)
}

// Snapshot returns the current state without any request.
func (c *Controller) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &Snapshot{Survey: c.survey, Analysis: c.analysis, Polling: c.task != nil}
}

// Polling reports whether a poll loop is active.
func (c *Controller) Polling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.task != nil
}

// Task returns the active polling task, or nil.
func (c *Controller) Task() *Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.task
}

// Close stops polling for good. Later Loads never start a new task.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	task := c.task
	c.task = nil
	c.mu.Unlock()
	if task != nil {
		task.Cancel()
	}
}

// startPolling starts a poll loop unless one is already running.
func (c *Controller) startPolling(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.task != nil {
		return
	}

	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	task := newTask(cancel)
	c.task = task

	c.logger.Debug().Str("survey_id", c.surveyID).Dur("interval", c.interval).Msg("Polling started")
	go c.pollLoop(pollCtx, task)
}

func (c *Controller) stopPolling() {
	c.mu.Lock()
	task := c.task
	c.task = nil
	c.mu.Unlock()
	if task != nil {
		task.Cancel()
	}
}

// finish detaches task if it is still the current one.
func (c *Controller) finish(task *Task) {
	task.Cancel()
	c.mu.Lock()
	if c.task == task {
		c.task = nil
	}
	c.mu.Unlock()
}

func (c *Controller) pollLoop(ctx context.Context, task *Task) {
	defer close(task.done)
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Str("survey_id", c.surveyID).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic in poll loop")
			c.finish(task)
		}
	}()

	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			// A cancelled task never issues another request, even if a tick was pending.
			if ctx.Err() != nil {
				return
			}
			c.tick(ctx, task)
		}
	}
}

func (c *Controller) nextSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// accept marks seq as applied unless a newer response already was.
func (c *Controller) accept(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq < c.applied {
		return false
	}
	c.applied = seq
	return true
}

func (c *Controller) tick(ctx context.Context, task *Task) {
	seq := c.nextSeq()
	status, err := c.client.GetAnalysisStatus(ctx, c.surveyID)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn().Err(err).Str("survey_id", c.surveyID).Msg("Status poll failed")
		}
		return
	}
	if ctx.Err() != nil || !c.accept(seq) {
		c.logger.Debug().Uint64("seq", seq).Msg("Dropping stale status response")
		return
	}

	if status.Progress != nil {
		c.observer.OnProgress(*status.Progress)
	}

	switch status.Status {
	case models.StatusCompleted:
		c.finish(task)
		c.complete(context.WithoutCancel(ctx))
	case models.StatusFailed:
		c.finish(task)
		c.fail(context.WithoutCancel(ctx))
	}
}

func (c *Controller) complete(ctx context.Context) {
	survey, err := c.client.GetSurvey(ctx, c.surveyID)
	if err != nil {
		c.observer.OnError(fmt.Errorf("reload survey: %w", err))
		return
	}
	analysis, err := c.fetchAnalysis(ctx)
	if err != nil {
		c.mu.Lock()
		c.survey = survey
		c.mu.Unlock()
		c.observer.OnError(err)
		return
	}

	c.mu.Lock()
	c.survey = survey
	c.analysis = analysis
	c.mu.Unlock()

	c.logger.Info().Str("survey_id", c.surveyID).Msg("Analysis completed")
	c.observer.OnCompleted(survey, analysis)
}

func (c *Controller) fail(ctx context.Context) {
	survey, err := c.client.GetSurvey(ctx, c.surveyID)
	if err != nil {
		c.observer.OnError(fmt.Errorf("reload survey: %w", err))
		return
	}
	c.mu.Lock()
	c.survey = survey
	c.mu.Unlock()

	c.logger.Warn().Str("survey_id", c.surveyID).Msg("Analysis failed")
	c.observer.OnFailed(survey)
}

func (c *Controller) fetchAnalysis(ctx context.Context) (*models.Analysis, error) {
	raw, err := c.client.GetAnalysisResults(ctx, c.surveyID)
	if err != nil {
		return nil, fmt.Errorf("fetch results: %w", err)
	}
	analysis, err := models.DecodeAnalysis(raw, c.decode)
	if err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return analysis, nil
}
