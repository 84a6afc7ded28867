package service

import (
	"time"

	"github.com/Instinct7439/Athena-V2/internal/logger"
	"github.com/Instinct7439/Athena-V2/internal/observer"
)

// DefaultBatchSize is the number of chunks sent per provider call.
const DefaultBatchSize = 32

// Option configures BuildIndex, Search and Pipeline.
type Option func(*options)

type options struct {
	observer  observer.Observer
	log       *logger.Logger
	batchSize int
}

// WithObserver receives an event for every pipeline step.
func WithObserver(o observer.Observer) Option {
	return func(opts *options) { opts.observer = observer.OrNop(o) }
}

func WithLogger(l *logger.Logger) Option {
	return func(opts *options) {
		if l != nil {
			opts.log = l
		}
	}
}

// WithBatchSize sets how many chunks are embedded per provider call.
// Values below one are ignored.
func WithBatchSize(n int) Option {
	return func(opts *options) {
		if n > 0 {
			opts.batchSize = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{observer: observer.Nop{}, log: logger.Nop(), batchSize: DefaultBatchSize}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func (o options) emit(action string, start time.Time, fields map[string]any, err error) {
	o.observer.Observe(observer.Event{
		Action:   action,
		Time:     start,
		Duration: time.Since(start),
		Fields:   fields,
		Err:      err,
	})
}
