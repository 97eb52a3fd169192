package cms_test

import (
	"testing"

	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/cms"
)

const (
	benchEpsilon  = 0.001
	benchDelta    = 0.001
	benchPreloadN = 100_000
)

func newBenchSketch(b *testing.B) *cms.Sketch {
	b.Helper()

	sk, err := cms.NewWithEstimates(benchEpsilon, benchDelta, testSeed)
	if err != nil {
		b.Fatal(err)
	}

	return sk
}

func preloadSketch(b *testing.B, sk *cms.Sketch, count int) {
	b.Helper()

	for i := range count {
		_ = sk.Update(uint64ToBytes(uint64(i)), 1)
	}
}

// BenchmarkCMSUpdate measures single-element insertion throughput.
func BenchmarkCMSUpdate(b *testing.B) {
	sk := newBenchSketch(b)

	b.ResetTimer()

	for i := range b.N {
		_ = sk.Update(uint64ToBytes(uint64(i)), 1)
	}
}

// BenchmarkCMSUpdateConservative measures the conservative update rule.
func BenchmarkCMSUpdateConservative(b *testing.B) {
	sk := newBenchSketch(b)

	b.ResetTimer()

	for i := range b.N {
		_ = sk.UpdateConservative(uint64ToBytes(uint64(i)), 1)
	}
}

// BenchmarkCMSQuery measures single-element query throughput on a populated sketch.
func BenchmarkCMSQuery(b *testing.B) {
	sk := newBenchSketch(b)
	preloadSketch(b, sk, benchPreloadN)

	b.ResetTimer()

	for i := range b.N {
		sk.Query(uint64ToBytes(uint64(i % benchPreloadN)))
	}
}

// BenchmarkMapFreq is the comparison baseline using map[string]int64 frequency counting.
func BenchmarkMapFreq(b *testing.B) {
	m := make(map[string]int64, benchPreloadN)

	b.ResetTimer()

	for i := range b.N {
		m[string(uint64ToBytes(uint64(i)))]++
	}
}

// BenchmarkCMSMemory measures the memory allocation for sketch creation.
func BenchmarkCMSMemory(b *testing.B) {
	b.ReportAllocs()

	for range b.N {
		sk := newBenchSketch(b)

		// Prevent compiler from optimizing away the allocation.
		if sk.Width() == 0 {
			b.Fatal("unexpected zero width")
		}
	}
}
