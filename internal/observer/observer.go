// Package observer carries pipeline events to optional listeners. The core
// packages emit events through an Observer value passed in by the caller;
// nothing is tracked globally.
package observer

import (
	"sort"
	"sync"
	"time"

	"github.com/Instinct7439/Athena-V2/internal/logger"
)

// Actions emitted by the pipeline.
const (
	ActionNormalize         = "normalize"
	ActionNormalizeReverted = "normalize_reverted"
	ActionChunk             = "chunk"
	ActionEmbedBatch        = "embed_batch"
	ActionBuildIndex        = "build_index"
	ActionSearch            = "search"
	ActionQueryEmpty        = "query_empty"
	ActionThresholdFilter   = "threshold_filter"
)

// Event describes one completed pipeline step.
type Event struct {
	Action   string
	Time     time.Time
	Duration time.Duration
	Fields   map[string]any
	Err      error
}

// Observer receives events. Implementations must be safe for concurrent use.
type Observer interface {
	Observe(Event)
}

// Func adapts a plain function to Observer.
type Func func(Event)

func (f Func) Observe(e Event) { f(e) }

// Nop discards events.
type Nop struct{}

func (Nop) Observe(Event) {}

// Multi fans events out to several observers in order.
type Multi []Observer

func (m Multi) Observe(e Event) {
	for _, o := range m {
		if o != nil {
			o.Observe(e)
		}
	}
}

// OrNop returns o, or Nop when o is nil.
func OrNop(o Observer) Observer {
	if o == nil {
		return Nop{}
	}
	return o
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Observe(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Actions returns the recorded action names in order.
func (r *Recorder) Actions() []string {
	events := r.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Action
	}
	return out
}

// Count returns how many events with the given action were recorded.
func (r *Recorder) Count(action string) int {
	n := 0
	for _, e := range r.Events() {
		if e.Action == action {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// LogObserver writes events as debug lines, or warnings when they carry an error.
type LogObserver struct {
	Log *logger.Logger
}

func NewLogObserver(l *logger.Logger) *LogObserver {
	return &LogObserver{Log: l.WithComponent("trace")}
}

func (o *LogObserver) Observe(e Event) {
	fields := make([]logger.Field, 0, len(e.Fields)+2)
	for _, k := range sortedKeys(e.Fields) {
		fields = append(fields, logger.F(k, e.Fields[k]))
	}
	if e.Duration > 0 {
		fields = append(fields, logger.Duration(e.Duration))
	}
	if e.Err != nil {
		fields = append(fields, logger.Error(e.Err))
		o.Log.Warn(e.Action, fields...)
		return
	}
	o.Log.Debug(e.Action, fields...)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
