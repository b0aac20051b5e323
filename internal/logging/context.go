package logging

import (
	"context"
	"log/slog"

	"stabledracor/internal/services"
)

// Keys shared by every component. Corpus, source and stage form the
// subject of a console line.
const (
	FieldComponent = "component"
	FieldCorpus    = "corpus"
	FieldSource    = "source"
	FieldItem      = "play"
	FieldStage     = "stage"
	FieldRunID     = "run_id"
	// FieldEventType classifies a warning or error for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint is the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is what the problem means for the system being built.
	FieldImpact = "impact"
)

// WithContext returns logger with the corpus, source, stage and run id
// stored in ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	var args []any
	for _, field := range []struct {
		key string
		get func(context.Context) (string, bool)
	}{
		{FieldCorpus, services.CorpusFromContext},
		{FieldSource, services.SourceFromContext},
		{FieldStage, services.StageFromContext},
		{FieldRunID, services.RunIDFromContext},
	} {
		if value, ok := field.get(ctx); ok {
			args = append(args, slog.String(field.key, value))
		}
	}
	if len(args) == 0 {
		return logger
	}
	return logger.With(args...)
}
