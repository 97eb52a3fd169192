// Package registry owns the named sketch instances declared in configuration
// and serializes access to each of them.
package registry

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"

	"github.com/Sumatoshi-tech/streamsketch/pkg/config"
	"github.com/Sumatoshi-tech/streamsketch/pkg/observability"
)

var (
	// ErrDuplicateSketch is returned by New when two specs share a name.
	ErrDuplicateSketch = errors.New("duplicate sketch name")
	// ErrUnknownSketch is returned when a name is not registered.
	ErrUnknownSketch = errors.New("unknown sketch")
	// ErrBadRecord is returned when a record does not fit the sketch kind.
	ErrBadRecord = errors.New("record does not fit sketch")
)

// MaxRepeat bounds the count of a record applied to sketches that consume
// one observation at a time (morris, frugal).
const MaxRepeat = 1 << 20

// Record is one stream element routed to a sketch.
type Record struct {
	// Key identifies the item for frequency and moment sketches.
	Key []byte
	// Count is the multiplicity of the record.
	Count int64
	// Value is the numeric observation for quantile sketches.
	Value float64
	// HasValue reports whether Value was supplied.
	HasValue bool
}

// KeyRecord builds a single-count record for key. A key that parses as a
// finite float also becomes the numeric value, so the same record feeds
// quantile sketches.
func KeyRecord(key string) Record {
	rec := Record{Key: []byte(key), Count: 1}

	if v, err := strconv.ParseFloat(key, 64); err == nil && !math.IsInf(v, 0) && !math.IsNaN(v) {
		rec.Value = v
		rec.HasValue = true
	}

	return rec
}

// Result is the read-side view of a sketch.
type Result struct {
	Name     string  `json:"name" yaml:"name"`
	Kind     string  `json:"kind" yaml:"kind"`
	Key      string  `json:"key,omitempty" yaml:"key,omitempty"`
	Estimate float64 `json:"estimate" yaml:"estimate"`
	Records  uint64  `json:"records" yaml:"records"`
	Detail   Detail  `json:"detail" yaml:"detail"`
}

// Detail carries kind-specific parameters and bounds.
type Detail struct {
	Hash        string  `json:"hash,omitempty" yaml:"hash,omitempty"`
	Variant     string  `json:"variant,omitempty" yaml:"variant,omitempty"`
	Width       int     `json:"width,omitempty" yaml:"width,omitempty"`
	Depth       int     `json:"depth,omitempty" yaml:"depth,omitempty"`
	Epsilon     float64 `json:"epsilon,omitempty" yaml:"epsilon,omitempty"`
	Delta       float64 `json:"delta,omitempty" yaml:"delta,omitempty"`
	TotalCount  uint64  `json:"total_count,omitempty" yaml:"total_count,omitempty"`
	ErrorBound  uint64  `json:"error_bound,omitempty" yaml:"error_bound,omitempty"`
	Register    uint8   `json:"register,omitempty" yaml:"register,omitempty"`
	MaxRegister uint8   `json:"max_register,omitempty" yaml:"max_register,omitempty"`
	Saturated   bool    `json:"saturated,omitempty" yaml:"saturated,omitempty"`
	Step        float64 `json:"step,omitempty" yaml:"step,omitempty"`
	Target      float64 `json:"target,omitempty" yaml:"target,omitempty"`
}

type entry struct {
	mu      sync.Mutex
	name    string
	kind    string
	records uint64
	inst    instance
}

// Option configures a Registry.
type Option func(*Registry)

// WithMetrics counts applied records.
func WithMetrics(sm *observability.SketchMetrics) Option {
	return func(r *Registry) {
		r.metrics = sm
	}
}

// Registry maps names to sketches. The set of names is fixed at
// construction; each sketch is guarded by its own mutex.
type Registry struct {
	ordered []*entry
	index   map[string]*entry
	metrics *observability.SketchMetrics
}

// New builds one sketch per spec.
func New(specs []config.SketchSpec, opts ...Option) (*Registry, error) {
	reg := &Registry{
		ordered: make([]*entry, 0, len(specs)),
		index:   make(map[string]*entry, len(specs)),
	}

	for _, opt := range opts {
		opt(reg)
	}

	for _, spec := range specs {
		if _, exists := reg.index[spec.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSketch, spec.Name)
		}

		inst, err := build(spec)
		if err != nil {
			return nil, fmt.Errorf("sketch %q: %w", spec.Name, err)
		}

		e := &entry{name: spec.Name, kind: spec.Kind, inst: inst}
		reg.index[spec.Name] = e
		reg.ordered = append(reg.ordered, e)
	}

	slices.SortFunc(reg.ordered, func(a, b *entry) int {
		return cmp.Compare(a.name, b.name)
	})

	return reg, nil
}

// Len returns the number of sketches.
func (r *Registry) Len() int {
	return len(r.ordered)
}

// Names returns the sketch names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ordered))
	for _, e := range r.ordered {
		names = append(names, e.name)
	}

	return names
}

// Kind returns the kind of the named sketch.
func (r *Registry) Kind(name string) (string, error) {
	e, err := r.lookup(name)
	if err != nil {
		return "", err
	}

	return e.kind, nil
}

// Apply routes rec to the named sketch.
func (r *Registry) Apply(ctx context.Context, name string, rec Record) error {
	e, err := r.lookup(name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	err = e.inst.apply(rec)

	// A zero-count record leaves every kind untouched.
	changed := err == nil && rec.Count > 0
	if changed {
		e.records++
	}
	e.mu.Unlock()

	if err != nil {
		return fmt.Errorf("sketch %q: %w", name, err)
	}

	if changed && r.metrics != nil {
		r.metrics.RecordUpdate(ctx, name, e.kind)
	}

	return nil
}

// Query reads the named sketch. For countmin a non-empty key yields that
// key's estimated frequency; every other case returns the summary.
func (r *Registry) Query(name string, key []byte) (Result, error) {
	e, err := r.lookup(name)
	if err != nil {
		return Result{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	res := e.inst.query(key)
	res.Name = e.name
	res.Kind = e.kind
	res.Records = e.records

	return res, nil
}

// Snapshot returns the summary of every sketch, sorted by name.
func (r *Registry) Snapshot() []Result {
	out := make([]Result, 0, len(r.ordered))

	for _, e := range r.ordered {
		e.mu.Lock()
		res := e.inst.query(nil)
		res.Name = e.name
		res.Kind = e.kind
		res.Records = e.records
		e.mu.Unlock()

		out = append(out, res)
	}

	return out
}

// Reset returns the named sketch to its freshly built state. Sketches that
// draw random numbers restart their source from the configured seed, so a
// reset sketch replays the same stream identically.
func (r *Registry) Reset(name string) error {
	e, err := r.lookup(name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.inst.reset()
	e.records = 0
	e.mu.Unlock()

	return nil
}

func (r *Registry) lookup(name string) (*entry, error) {
	e, ok := r.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSketch, name)
	}

	return e, nil
}
