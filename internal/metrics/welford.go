package metrics

import "math"

// WelfordState holds running statistics using Welford's online algorithm.
// Persisted as (count, mean, m2) so an hourly bucket can be resumed after a restart.
type WelfordState struct {
	Count int     // number of observations
	Mean  float64 // running mean
	M2    float64 // sum of squared differences from the mean
}

// Update adds one observation.
// https://en.wikipedia.org/wiki/Algorithms_for_calculating_variance#Welford's_online_algorithm
func (w *WelfordState) Update(value float64) {
	w.Count++
	delta := value - w.Mean
	w.Mean += delta / float64(w.Count)
	delta2 := value - w.Mean
	w.M2 += delta * delta2
}

// StdDev returns the population standard deviation, or 0 with fewer than 2 observations
func (w WelfordState) StdDev() float64 {
	if w.Count < 2 {
		return 0
	}
	return math.Sqrt(w.M2 / float64(w.Count))
}
