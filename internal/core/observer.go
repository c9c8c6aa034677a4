package core

// Observer receives progress events from passes, batches and applies
type Observer interface {
	PassStarted(passID string)
	GCCompleted(deleted []LearnedRule)
	RulesLearned(report *SynthesisReport)
	BatchStarted(index, total, size int)
	BatchFinished(index, resolved int, err error)
	PassFinished(report *PassReport, err error)
	RulesApplied(report *ApplyReport)
}

// NopObserver ignores every event
type NopObserver struct{}

func (NopObserver) PassStarted(string) {}
func (NopObserver) GCCompleted([]LearnedRule) {}
func (NopObserver) RulesLearned(*SynthesisReport) {}
func (NopObserver) BatchStarted(int, int, int) {}
func (NopObserver) BatchFinished(int, int, error) {}
func (NopObserver) PassFinished(*PassReport, error) {}
func (NopObserver) RulesApplied(*ApplyReport) {}

// Observers fans every event out to each member
type Observers []Observer

func (o Observers) PassStarted(passID string) {
	for _, ob := range o {
		ob.PassStarted(passID)
	}
}

func (o Observers) GCCompleted(deleted []LearnedRule) {
	for _, ob := range o {
		ob.GCCompleted(deleted)
	}
}

func (o Observers) RulesLearned(report *SynthesisReport) {
	for _, ob := range o {
		ob.RulesLearned(report)
	}
}

func (o Observers) BatchStarted(index, total, size int) {
	for _, ob := range o {
		ob.BatchStarted(index, total, size)
	}
}

func (o Observers) BatchFinished(index, resolved int, err error) {
	for _, ob := range o {
		ob.BatchFinished(index, resolved, err)
	}
}

func (o Observers) PassFinished(report *PassReport, err error) {
	for _, ob := range o {
		ob.PassFinished(report, err)
	}
}

func (o Observers) RulesApplied(report *ApplyReport) {
	for _, ob := range o {
		ob.RulesApplied(report)
	}
}
