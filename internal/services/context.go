package services

import "context"

type contextKey string

const (
	corpusKey contextKey = "corpus"
	sourceKey contextKey = "source"
	stageKey  contextKey = "stage"
	runIDKey  contextKey = "run_id"
)

// WithCorpus annotates context with the local corpus name being replicated.
func WithCorpus(ctx context.Context, corpus string) context.Context {
	return withString(ctx, corpusKey, corpus)
}

// CorpusFromContext returns the corpus name if present.
func CorpusFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, corpusKey)
}

// WithSource annotates context with the manifest source name.
func WithSource(ctx context.Context, source string) context.Context {
	return withString(ctx, sourceKey, source)
}

// SourceFromContext returns the source name if present.
func SourceFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, sourceKey)
}

// WithStage annotates context with the pipeline state name.
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, stageKey)
}

// WithRunID annotates context with the journal run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	return withString(ctx, runIDKey, id)
}

// RunIDFromContext extracts the journal run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, runIDKey)
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
