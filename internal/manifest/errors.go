package manifest

import (
	"fmt"

	"stabledracor/internal/services"
)

// NotRegisteredError reports a mutation against a corpus or source that was
// never registered. It always indicates an ordering defect in the caller.
type NotRegisteredError struct {
	Corpus string
	Source string
}

func (e *NotRegisteredError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("corpus %q is not registered", e.Corpus)
	}
	return fmt.Sprintf("source %q of corpus %q is not registered", e.Source, e.Corpus)
}

func (e *NotRegisteredError) Unwrap() error {
	return services.ErrNotRegistered
}
