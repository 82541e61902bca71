package monitor

import "github.com/bobmcallan/surveylens/internal/models"

// Observer receives polling events. Calls arrive from the poll goroutine.
type Observer interface {
	OnProgress(progress models.Progress)
	OnCompleted(survey *models.Survey, analysis *models.Analysis)
	OnFailed(survey *models.Survey)
	OnError(err error)
}

// ObserverFuncs adapts optional funcs to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Progress  func(models.Progress)
	Completed func(*models.Survey, *models.Analysis)
	Failed    func(*models.Survey)
	Error     func(error)
}

func (o ObserverFuncs) OnProgress(p models.Progress) {
	if o.Progress != nil {
		o.Progress(p)
	}
}

func (o ObserverFuncs) OnCompleted(s *models.Survey, a *models.Analysis) {
	if o.Completed != nil {
		o.Completed(s, a)
	}
}

func (o ObserverFuncs) OnFailed(s *models.Survey) {
	if o.Failed != nil {
		o.Failed(s)
	}
}

func (o ObserverFuncs) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}
