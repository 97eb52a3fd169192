package trial

// Histogram exposes histogram for tests.
func Histogram(samples []float64, truth float64, n int) ([]string, []float64, int) {
	return histogram(samples, truth, n)
}
