// Package capability registers the optional collaborators (extractors and
// summarizers) and resolves the enabled set once at startup.
package capability

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/Instinct7439/Athena-V2/internal/config"
	"github.com/Instinct7439/Athena-V2/internal/domain"
	"github.com/Instinct7439/Athena-V2/internal/extract"
	"github.com/Instinct7439/Athena-V2/internal/summarizer"
)

var (
	// ErrUnknown is returned when a configured capability was never registered.
	ErrUnknown = errors.New("capability not registered")
	// ErrDuplicate is returned when a name is registered twice.
	ErrDuplicate = errors.New("capability already registered")
	// ErrUnsupported is returned when no enabled extractor handles a file.
	ErrUnsupported = errors.New("no extractor for file type")
)

type (
	ExtractorFactory  func() extract.Extractor
	SummarizerFactory func() domain.Summarizer
)

// Registry maps capability names to factories. Extractors keep their
// registration order for ExtractorFor; a resolved Set tries them in the
// order they are listed in the config.
type Registry struct {
	mu             sync.RWMutex
	extractors     map[string]ExtractorFactory
	extractorOrder []string
	summarizers    map[string]SummarizerFactory
}

func NewRegistry() *Registry {
	return &Registry{
		extractors:  make(map[string]ExtractorFactory),
		summarizers: make(map[string]SummarizerFactory),
	}
}

// Default returns a registry with the built-in text extractor and frequency
// summarizer.
func Default() *Registry {
	r := NewRegistry()
	_ = r.RegisterExtractor("text", func() extract.Extractor { return extract.NewTextExtractor() })
	_ = r.RegisterSummarizer("frequency", func() domain.Summarizer { return summarizer.NewFrequencySummarizer() })
	return r
}

func (r *Registry) RegisterExtractor(name string, f ExtractorFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.extractors[name]; ok {
		return fmt.Errorf("extractor %q: %w", name, ErrDuplicate)
	}
	r.extractors[name] = f
	r.extractorOrder = append(r.extractorOrder, name)
	return nil
}

func (r *Registry) RegisterSummarizer(name string, f SummarizerFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.summarizers[name]; ok {
		return fmt.Errorf("summarizer %q: %w", name, ErrDuplicate)
	}
	r.summarizers[name] = f
	return nil
}

func (r *Registry) Extractor(name string) (extract.Extractor, error) {
	r.mu.RLock()
	f, ok := r.extractors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("extractor %q: %w", name, ErrUnknown)
	}
	return f(), nil
}

func (r *Registry) Summarizer(name string) (domain.Summarizer, error) {
	r.mu.RLock()
	f, ok := r.summarizers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("summarizer %q: %w", name, ErrUnknown)
	}
	return f(), nil
}

// ExtractorFor returns every registered extractor handling path's extension,
// in registration order.
func (r *Registry) ExtractorFor(path string) []extract.Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []extract.Extractor
	for _, name := range r.extractorOrder {
		if e := r.extractors[name](); handles(e, path) {
			out = append(out, e)
		}
	}
	return out
}

// List returns the registered extractor and summarizer names, sorted.
func (r *Registry) List() (extractors, summarizers []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	extractors = slices.Clone(r.extractorOrder)
	for name := range r.summarizers {
		summarizers = append(summarizers, name)
	}
	sort.Strings(extractors)
	sort.Strings(summarizers)
	return extractors, summarizers
}

// Resolve instantiates the capabilities enabled in caps. Unknown names fail
// here rather than when a file is first processed. An empty summarizer name
// leaves Set.Summarizer nil.
func (r *Registry) Resolve(caps config.CapabilitiesConfig) (*Set, error) {
	if len(caps.Extractors) == 0 {
		return nil, fmt.Errorf("at least one extractor must be enabled")
	}
	set := &Set{}
	for _, name := range caps.Extractors {
		e, err := r.Extractor(name)
		if err != nil {
			return nil, err
		}
		set.extractors = append(set.extractors, e)
	}
	if caps.Summarizer != "" {
		s, err := r.Summarizer(caps.Summarizer)
		if err != nil {
			return nil, err
		}
		set.Summarizer = s
	}
	return set, nil
}

// Set is the resolved, enabled collaborators.
type Set struct {
	extractors []extract.Extractor
	Summarizer domain.Summarizer
}

// Supports reports whether any enabled extractor handles path.
func (s *Set) Supports(path string) bool {
	for _, e := range s.extractors {
		if handles(e, path) {
			return true
		}
	}
	return false
}

// Extract runs the enabled extractors for path in order and returns the first
// success. Empty documents are not retried, since a different reader will not
// find text that is not there.
func (s *Set) Extract(ctx context.Context, path string) (domain.Document, error) {
	var errs []error
	for _, e := range s.extractors {
		if !handles(e, path) {
			continue
		}
		doc, err := e.Extract(ctx, path)
		if err == nil {
			return doc, nil
		}
		if errors.Is(err, domain.ErrEmptyInput) || ctx.Err() != nil {
			return domain.Document{}, err
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return domain.Document{}, fmt.Errorf("%s: %w", path, ErrUnsupported)
	}
	return domain.Document{}, errors.Join(errs...)
}

func handles(e extract.Extractor, path string) bool {
	return slices.Contains(e.Extensions(), extract.Ext(path))
}
