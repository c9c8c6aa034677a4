package logging

import (
	"github.com/mikey/llm-mail-sorter/internal/core"
	"go.uber.org/zap"
)

// PassLogger writes a summary line for each pass, batch and apply
type PassLogger struct {
	logger *zap.Logger
}

// NewPassLogger creates a new PassLogger
func NewPassLogger(logger *zap.Logger) *PassLogger {
	return &PassLogger{logger: logger}
}

func (p *PassLogger) PassStarted(passID string) {
	p.logger.Info("Classification pass started", zap.String("pass_id", passID))
}

func (p *PassLogger) GCCompleted(deleted []core.LearnedRule) {
	if len(deleted) == 0 {
		return
	}
	p.logger.Info("Learned rules collected", zap.Int("deleted", len(deleted)))
}

func (p *PassLogger) RulesLearned(report *core.SynthesisReport) {
	if report == nil {
		return
	}
	p.logger.Info("Rule synthesis finished",
		zap.Int("positives", report.Positives),
		zap.Int("negatives", report.Negatives),
		zap.Int("proposed", report.Proposed),
		zap.Int("created", report.Created),
		zap.Strings("rejected", report.Rejected))
}

func (p *PassLogger) BatchStarted(index, total, size int) {
	p.logger.Debug("Oracle batch started",
		zap.Int("batch", index+1),
		zap.Int("batches", total),
		zap.Int("size", size))
}

func (p *PassLogger) BatchFinished(index, resolved int, err error) {
	if err != nil {
		p.logger.Warn("Oracle batch failed", zap.Int("batch", index+1), zap.Error(err))
		return
	}
	p.logger.Debug("Oracle batch finished", zap.Int("batch", index+1), zap.Int("resolved", resolved))
}

func (p *PassLogger) PassFinished(report *core.PassReport, err error) {
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		if report != nil {
			fields = append(fields, zap.String("pass_id", report.PassID))
		}
		p.logger.Error("Classification pass failed", fields...)
		return
	}
	if report == nil {
		return
	}
	fields := []zap.Field{
		zap.String("pass_id", report.PassID),
		zap.Int("senders", report.Senders),
		zap.Int("unresolved", report.Unresolved),
	}
	for source, n := range report.BySource {
		fields = append(fields, zap.Int(string(source), n))
	}
	p.logger.Info("Classification pass finished", fields...)
}

func (p *PassLogger) RulesApplied(report *core.ApplyReport) {
	if report == nil {
		return
	}
	p.logger.Info("Rule-set applied",
		zap.Int("changed", report.Total),
		zap.Any("by_category", report.Changed),
		zap.Strings("penalized", report.Penalized))
}

var _ core.Observer = (*PassLogger)(nil)
