package registry_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/streamsketch/internal/registry"
	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/sketch"
	"github.com/Sumatoshi-tech/streamsketch/pkg/config"
	"github.com/Sumatoshi-tech/streamsketch/pkg/observability"
)

func testSpecs() []config.SketchSpec {
	return []config.SketchSpec{
		{Name: "pages", Kind: config.KindCountMin, Width: 1 << 12, Depth: 5, Seed: 42},
		{Name: "f2", Kind: config.KindTugOfWar, Depth: 32, Seed: 7, Hash: "murmur3"},
		{Name: "events", Kind: config.KindMorris, MaxRegister: 32, Seed: 1},
		{Name: "latency", Kind: config.KindFrugal, H: 1, K: 2, Initial: 0, Seed: 3},
	}
}

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	reg, err := registry.New(testSpecs())
	require.NoError(t, err)

	return reg
}

func keyed(key string, count int64) registry.Record {
	return registry.Record{Key: []byte(key), Count: count}
}

func valued(v float64) registry.Record {
	return registry.Record{Value: v, HasValue: true, Count: 1}
}

func TestNew_SortsNames(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)

	assert.Equal(t, 4, reg.Len())
	assert.Equal(t, []string{"events", "f2", "latency", "pages"}, reg.Names())

	kind, err := reg.Kind("f2")
	require.NoError(t, err)
	assert.Equal(t, config.KindTugOfWar, kind)
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		specs []config.SketchSpec
		want  error
	}{
		{
			"duplicate",
			[]config.SketchSpec{
				{Name: "a", Kind: config.KindMorris, MaxRegister: 8},
				{Name: "a", Kind: config.KindMorris, MaxRegister: 8},
			},
			registry.ErrDuplicateSketch,
		},
		{"unknown kind", []config.SketchSpec{{Name: "a", Kind: "bloom"}}, config.ErrUnknownKind},
		{"zero width", []config.SketchSpec{{Name: "a", Kind: config.KindCountMin, Depth: 3}}, sketch.ErrInvalidConfiguration},
		{"no estimates", []config.SketchSpec{{Name: "a", Kind: config.KindCountMin}}, sketch.ErrInvalidConfiguration},
		{"bad hash", []config.SketchSpec{{Name: "a", Kind: config.KindTugOfWar, Depth: 3, Hash: "md5"}}, sketch.ErrInvalidConfiguration},
		{"morris range", []config.SketchSpec{{Name: "a", Kind: config.KindMorris, MaxRegister: 300}}, sketch.ErrInvalidConfiguration},
		{"frugal target", []config.SketchSpec{{Name: "a", Kind: config.KindFrugal, H: 2, K: 2}}, sketch.ErrInvalidConfiguration},
		{"frugal variant", []config.SketchSpec{{Name: "a", Kind: config.KindFrugal, H: 1, K: 2, Variant: "9u"}}, sketch.ErrInvalidConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reg, err := registry.New(tt.specs)
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, reg)
		})
	}
}

func TestApply_UnknownSketch(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)

	require.ErrorIs(t, reg.Apply(context.Background(), "nope", keyed("a", 1)), registry.ErrUnknownSketch)

	_, err := reg.Query("nope", nil)
	require.ErrorIs(t, err, registry.ErrUnknownSketch)
	require.ErrorIs(t, reg.Reset("nope"), registry.ErrUnknownSketch)
}

func TestApply_CountMin(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Apply(ctx, "pages", keyed("/home", 3)))
	require.NoError(t, reg.Apply(ctx, "pages", keyed("/home", 2)))
	require.NoError(t, reg.Apply(ctx, "pages", keyed("/about", 1)))

	res, err := reg.Query("pages", []byte("/home"))
	require.NoError(t, err)

	assert.Equal(t, "pages", res.Name)
	assert.Equal(t, config.KindCountMin, res.Kind)
	assert.Equal(t, "/home", res.Key)
	assert.GreaterOrEqual(t, res.Estimate, 5.0)
	assert.Equal(t, uint64(3), res.Records)
	assert.Equal(t, "xxhash", res.Detail.Hash)
	assert.Equal(t, uint64(6), res.Detail.TotalCount)

	summary, err := reg.Query("pages", nil)
	require.NoError(t, err)
	assert.Empty(t, summary.Key)
	assert.InDelta(t, 6.0, summary.Estimate, 0)
}

func TestApply_BadRecords(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		sketch string
		rec    registry.Record
	}{
		{"countmin without key", "pages", registry.Record{Count: 1}},
		{"countmin negative", "pages", keyed("a", -1)},
		{"tugofwar without key", "f2", registry.Record{Count: 1}},
		{"tugofwar negative", "f2", keyed("a", -3)},
		{"morris negative", "events", registry.Record{Count: -1}},
		{"morris huge", "events", registry.Record{Count: registry.MaxRepeat + 1}},
		{"frugal without value", "latency", keyed("a", 1)},
	}

	for _, tt := range tests {
		err := reg.Apply(ctx, tt.sketch, tt.rec)
		require.ErrorIs(t, err, registry.ErrBadRecord, tt.name)
	}

	require.ErrorIs(t, reg.Apply(ctx, "pages", keyed("a", -1)), sketch.ErrInvalidIncrement)

	for _, res := range reg.Snapshot() {
		assert.Zero(t, res.Records, res.Name)
	}
}

func TestApply_TugOfWarAndMorris(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Apply(ctx, "f2", keyed("only", 10)))
	require.NoError(t, reg.Apply(ctx, "events", registry.Record{Count: 1}))

	f2, err := reg.Query("f2", nil)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, f2.Estimate, 1e-9, "a single item's F2 is exact")
	assert.Equal(t, 32, f2.Detail.Depth)
	assert.Equal(t, "murmur3", f2.Detail.Hash)

	ev, err := reg.Query("events", nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ev.Estimate, 0)
	assert.Equal(t, uint8(1), ev.Detail.Register)
	assert.Equal(t, uint8(32), ev.Detail.MaxRegister)
}

func TestApply_Frugal(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	ctx := context.Background()

	rng := rand.New(rand.NewPCG(17, 19))

	for range 50_000 {
		require.NoError(t, reg.Apply(ctx, "latency", valued(float64(rng.IntN(1000)+1))))
	}

	res, err := reg.Query("latency", nil)
	require.NoError(t, err)

	assert.InDelta(t, 500, res.Estimate, 100)
	assert.InDelta(t, 0.5, res.Detail.Target, 1e-12)
	assert.Equal(t, "2u", res.Detail.Variant)
}

func TestReset(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Apply(ctx, "pages", keyed("a", 4)))
	require.NoError(t, reg.Apply(ctx, "latency", valued(30)))

	require.NoError(t, reg.Reset("pages"))
	require.NoError(t, reg.Reset("latency"))

	pages, err := reg.Query("pages", []byte("a"))
	require.NoError(t, err)
	assert.Zero(t, pages.Estimate)
	assert.Zero(t, pages.Records)

	lat, err := reg.Query("latency", nil)
	require.NoError(t, err)
	assert.Zero(t, lat.Estimate)
}

func TestSnapshot_SortedByName(t *testing.T) {
	t.Parallel()

	snap := newRegistry(t).Snapshot()
	require.Len(t, snap, 4)

	names := make([]string, 0, len(snap))
	for _, res := range snap {
		names = append(names, res.Name)
	}

	assert.IsNonDecreasing(t, names)
}

func TestApply_ConcurrentWriters(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	ctx := context.Background()

	const (
		writers = 8
		perKey  = 500
	)

	var wg sync.WaitGroup

	for w := range writers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			key := fmt.Sprintf("writer-%d", w)
			for range perKey {
				assert.NoError(t, reg.Apply(ctx, "pages", keyed(key, 1)))
				assert.NoError(t, reg.Apply(ctx, "events", registry.Record{Count: 1}))
			}
		}()
	}

	wg.Wait()

	res, err := reg.Query("pages", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(writers*perKey), res.Detail.TotalCount)
	assert.Equal(t, uint64(writers*perKey), res.Records)

	for w := range writers {
		got, err := reg.Query("pages", fmt.Appendf(nil, "writer-%d", w))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.Estimate, float64(perKey))
	}
}

func TestWithMetrics_CountsUpdates(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() { require.NoError(t, mp.Shutdown(context.Background())) })

	sm, err := observability.NewSketchMetrics(mp.Meter("test"))
	require.NoError(t, err)

	reg, err := registry.New(testSpecs(), registry.WithMetrics(sm))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, reg.Apply(ctx, "pages", keyed("a", 1)))
	require.NoError(t, reg.Apply(ctx, "pages", keyed("b", 1)))
	require.Error(t, reg.Apply(ctx, "pages", keyed("c", -1)))
	require.NoError(t, reg.Apply(ctx, "pages", keyed("d", 0)))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	var total int64

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "streamsketch.sketch.updates.total" {
				continue
			}

			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)

			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}

	assert.Equal(t, int64(2), total)
}

func TestApply_ZeroCountIsNotARecord(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Apply(ctx, "pages", keyed("a", 0)))
	require.NoError(t, reg.Apply(ctx, "f2", keyed("a", 0)))
	require.NoError(t, reg.Apply(ctx, "events", registry.Record{Count: 0}))
	require.NoError(t, reg.Apply(ctx, "latency", registry.Record{Value: 4, HasValue: true}))

	for _, res := range reg.Snapshot() {
		assert.Zero(t, res.Records, res.Name)
		assert.Zero(t, res.Estimate, res.Name)
	}

	require.NoError(t, reg.Apply(ctx, "pages", keyed("a", 2)))

	pages, err := reg.Query("pages", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), pages.Records)
}

func TestKeyRecord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key      string
		value    float64
		hasValue bool
	}{
		{key: "/home"},
		{key: ""},
		{key: "5", value: 5, hasValue: true},
		{key: "-2.5", value: -2.5, hasValue: true},
		{key: "1e3", value: 1000, hasValue: true},
		{key: "NaN"},
		{key: "+Inf"},
	}

	for _, tt := range tests {
		rec := registry.KeyRecord(tt.key)

		assert.Equal(t, tt.key, string(rec.Key), tt.key)
		assert.Equal(t, int64(1), rec.Count, tt.key)
		assert.Equal(t, tt.hasValue, rec.HasValue, tt.key)
		assert.InDelta(t, tt.value, rec.Value, 1e-12, tt.key)
	}
}

func TestApply_FrugalNumericKey(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)

	require.NoError(t, reg.Apply(context.Background(), "latency", registry.KeyRecord("5")))

	res, err := reg.Query("latency", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Records)
	assert.Positive(t, res.Estimate)
}

func TestReset_ReplaysRandomizedSketches(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	ctx := context.Background()

	feed := func() (float64, float64) {
		require.NoError(t, reg.Apply(ctx, "events", registry.Record{Count: 5000}))

		for i := range 2000 {
			require.NoError(t, reg.Apply(ctx, "latency", valued(float64(i%97))))
		}

		ev, err := reg.Query("events", nil)
		require.NoError(t, err)

		lat, err := reg.Query("latency", nil)
		require.NoError(t, err)

		return ev.Estimate, lat.Estimate
	}

	events, latency := feed()

	require.NoError(t, reg.Reset("events"))
	require.NoError(t, reg.Reset("latency"))

	replayEvents, replayLatency := feed()

	assert.InDelta(t, events, replayEvents, 0)
	assert.InDelta(t, latency, replayLatency, 0)
}
