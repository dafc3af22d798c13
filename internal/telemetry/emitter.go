package telemetry

import (
	"context"
	"errors"

	"matterguard/authcore/internal/telemetry/domain"
)

// EventEmitter emits security events (e.g. to OTel Logs or Kafka).
// Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.SecurityEvent) error
}

type fanoutEmitter struct {
	emitters []EventEmitter
}

// Fanout returns an emitter that forwards each event to every non-nil
// backend. All backends are attempted even when one fails; errors are
// joined.
func Fanout(emitters ...EventEmitter) EventEmitter {
	out := make([]EventEmitter, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	return &fanoutEmitter{emitters: out}
}

func (f *fanoutEmitter) Emit(ctx context.Context, event *domain.SecurityEvent) error {
	var errs []error
	for _, e := range f.emitters {
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
