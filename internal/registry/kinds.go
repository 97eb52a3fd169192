package registry

import (
	"fmt"

	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/cms"
	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/frugal"
	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/hashfamily"
	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/morris"
	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/sketch"
	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/tugofwar"
	"github.com/Sumatoshi-tech/streamsketch/pkg/config"
)

// instance adapts one sketch kind to records and results. Callers hold the
// entry mutex.
type instance interface {
	apply(rec Record) error
	query(key []byte) Result
	reset()
}

func build(spec config.SketchSpec) (instance, error) {
	switch spec.Kind {
	case config.KindCountMin:
		return newCountMin(spec)
	case config.KindTugOfWar:
		return newTugOfWar(spec)
	case config.KindMorris:
		return newMorris(spec)
	case config.KindFrugal:
		return newFrugal(spec)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownKind, spec.Kind)
	}
}

func hashOption(spec config.SketchSpec) (hashfamily.Option, string, error) {
	algo, err := hashfamily.ParseAlgorithm(spec.Hash)
	if err != nil {
		return nil, "", err
	}

	return hashfamily.WithAlgorithm(algo), string(algo), nil
}

func checkRepeat(count int64) error {
	if count < 0 {
		return fmt.Errorf("%w: %w: got %d", ErrBadRecord, sketch.ErrInvalidIncrement, count)
	}

	if count > MaxRepeat {
		return fmt.Errorf("%w: count %d exceeds %d", ErrBadRecord, count, MaxRepeat)
	}

	return nil
}

type countMin struct {
	sk           *cms.Sketch
	hash         string
	conservative bool
}

func newCountMin(spec config.SketchSpec) (*countMin, error) {
	opt, algo, err := hashOption(spec)
	if err != nil {
		return nil, err
	}

	var sk *cms.Sketch

	if spec.Width > 0 || spec.Depth > 0 {
		sk, err = cms.New(spec.Width, spec.Depth, spec.Seed, opt)
	} else {
		sk, err = cms.NewWithEstimates(spec.Epsilon, spec.Delta, spec.Seed, opt)
	}

	if err != nil {
		return nil, err
	}

	return &countMin{sk: sk, hash: algo, conservative: spec.Conservative}, nil
}

func (c *countMin) apply(rec Record) error {
	if len(rec.Key) == 0 {
		return fmt.Errorf("%w: countmin needs a key", ErrBadRecord)
	}

	var err error
	if c.conservative {
		err = c.sk.UpdateConservative(rec.Key, rec.Count)
	} else {
		err = c.sk.Update(rec.Key, rec.Count)
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadRecord, err)
	}

	return nil
}

func (c *countMin) query(key []byte) Result {
	res := Result{
		Estimate: float64(c.sk.TotalCount()),
		Detail: Detail{
			Hash:       c.hash,
			Width:      c.sk.Width(),
			Depth:      c.sk.Depth(),
			Epsilon:    c.sk.Epsilon(),
			Delta:      c.sk.Delta(),
			TotalCount: c.sk.TotalCount(),
			ErrorBound: c.sk.ErrorBound(),
		},
	}

	if len(key) > 0 {
		res.Key = string(key)
		res.Estimate = float64(c.sk.Query(key))
	}

	return res
}

func (c *countMin) reset() {
	c.sk.Reset()
}

type tugOfWar struct {
	sk   *tugofwar.Sketch
	hash string
}

func newTugOfWar(spec config.SketchSpec) (*tugOfWar, error) {
	opt, algo, err := hashOption(spec)
	if err != nil {
		return nil, err
	}

	sk, err := tugofwar.New(spec.Depth, spec.Seed, opt)
	if err != nil {
		return nil, err
	}

	return &tugOfWar{sk: sk, hash: algo}, nil
}

func (t *tugOfWar) apply(rec Record) error {
	if len(rec.Key) == 0 {
		return fmt.Errorf("%w: tugofwar needs a key", ErrBadRecord)
	}

	if err := t.sk.UpdateCount(rec.Key, rec.Count); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRecord, err)
	}

	return nil
}

func (t *tugOfWar) query([]byte) Result {
	return Result{
		Estimate: t.sk.EstimateMoment(),
		Detail:   Detail{Hash: t.hash, Depth: t.sk.Depth()},
	}
}

func (t *tugOfWar) reset() {
	t.sk.Reset()
}

type morrisCounter struct {
	spec config.SketchSpec
	c    *morris.Counter
}

func newMorrisCounter(spec config.SketchSpec) (*morris.Counter, error) {
	if spec.MaxRegister <= 0 || spec.MaxRegister > morris.MaxRegisterLimit {
		return nil, fmt.Errorf("%w: morris max register must be in [1, %d], got %d",
			sketch.ErrInvalidConfiguration, morris.MaxRegisterLimit, spec.MaxRegister)
	}

	return morris.New(uint8(spec.MaxRegister), morris.WithSeed(spec.Seed))
}

func newMorris(spec config.SketchSpec) (*morrisCounter, error) {
	c, err := newMorrisCounter(spec)
	if err != nil {
		return nil, err
	}

	return &morrisCounter{spec: spec, c: c}, nil
}

func (m *morrisCounter) apply(rec Record) error {
	if err := checkRepeat(rec.Count); err != nil {
		return err
	}

	for range rec.Count {
		m.c.Increment()
	}

	return nil
}

func (m *morrisCounter) query([]byte) Result {
	return Result{
		Estimate: float64(m.c.Estimate()),
		Detail: Detail{
			Register:    m.c.Register(),
			MaxRegister: m.c.MaxRegister(),
			Saturated:   m.c.Saturated(),
		},
	}
}

// reset rebuilds the counter so its random source restarts from the seed.
func (m *morrisCounter) reset() {
	if c, err := newMorrisCounter(m.spec); err == nil {
		m.c = c
	}
}

type frugalQuantile struct {
	spec config.SketchSpec
	est  *frugal.Estimator[float64]
}

func newFrugalEstimator(spec config.SketchSpec) (*frugal.Estimator[float64], error) {
	variant, err := frugal.ParseVariant(spec.Variant)
	if err != nil {
		return nil, err
	}

	step := spec.Step
	if step == 0 {
		step = 1
	}

	return frugal.New(spec.H, spec.K, spec.Initial,
		frugal.WithStep(step),
		frugal.WithVariant[float64](variant),
		frugal.WithSeed[float64](spec.Seed))
}

func newFrugal(spec config.SketchSpec) (*frugalQuantile, error) {
	est, err := newFrugalEstimator(spec)
	if err != nil {
		return nil, err
	}

	return &frugalQuantile{spec: spec, est: est}, nil
}

func (f *frugalQuantile) apply(rec Record) error {
	if !rec.HasValue {
		return fmt.Errorf("%w: frugal needs a numeric value", ErrBadRecord)
	}

	if err := checkRepeat(rec.Count); err != nil {
		return err
	}

	for range rec.Count {
		f.est.Update(rec.Value)
	}

	return nil
}

func (f *frugalQuantile) query([]byte) Result {
	return Result{
		Estimate: f.est.Estimate(),
		Detail: Detail{
			Variant: string(f.est.Variant()),
			Step:    f.est.Step(),
			Target:  f.est.Target(),
		},
	}
}

// reset rebuilds the estimator so its random source restarts from the seed.
func (f *frugalQuantile) reset() {
	if est, err := newFrugalEstimator(f.spec); err == nil {
		f.est = est
	}
}
