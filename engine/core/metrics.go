package core

import "time"

const AVG_COUNT uint8 = 30

// RollingAverage keeps the mean of the last AVG_COUNT samples, in milliseconds.
// Samples are per-compile timings. Each owner keeps its own.
type RollingAverage struct {
	counter uint8
	filled  bool
	samples [AVG_COUNT]float64
	avg     float64
	total   uint64
}

func (r *RollingAverage) Add(d time.Duration) {
	ms := float64(d.Microseconds()) / 1000.0
	r.samples[r.counter] = ms
	if r.counter == AVG_COUNT-1 {
		r.filled = true
	}
	r.counter++
	r.counter %= AVG_COUNT
	r.total++

	n := uint8(AVG_COUNT)
	if !r.filled {
		n = r.counter
	}
	sum := 0.0
	for i := uint8(0); i < n; i++ {
		sum += r.samples[i]
	}
	r.avg = sum / float64(n)
}

// Average returns the mean of the retained samples in milliseconds.
func (r *RollingAverage) Average() float64 {
	return r.avg
}

// Count returns how many samples were ever added.
func (r *RollingAverage) Count() uint64 {
	return r.total
}

func (r *RollingAverage) Reset() {
	*r = RollingAverage{}
}
