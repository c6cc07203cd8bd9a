package oracle

import (
	"math/rand"
	"time"
)

// Sample is one observation from an external index feed.
type Sample struct {
	IndexPrice float64
	Confidence float64
	Timestamp  uint64
}

// Feed produces index samples. Implementations sit outside the core; the
// engine only ever reads samples at tick boundaries.
type Feed interface {
	Sample(now time.Time) (Sample, bool)
}

// SimFeed is a random-walk index for the demo drivers: a base price nudged
// by a bounded step each sample, with full confidence.
type SimFeed struct {
	price float64
	step  float64
	rng   *rand.Rand
}

func NewSimFeed(base, step float64, seed int64) *SimFeed {
	return &SimFeed{
		price: base,
		step:  step,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

func (f *SimFeed) Sample(now time.Time) (Sample, bool) {
	f.price += (f.rng.Float64()*2 - 1) * f.step
	if f.price < 1 {
		f.price = 1
	}
	return Sample{
		IndexPrice: f.price,
		Confidence: 1,
		Timestamp:  uint64(now.UnixNano()),
	}, true
}
