package viewport

import (
	"math/rand"
	"sync"
	"time"
)

// Sampler supplies the per-feature random draws used when thinning
// point layers. Injecting a seeded sampler makes filtering reproducible;
// production workers use a time-seeded one.
type Sampler interface {
	// Draw returns a value in [0, 1). A feature is kept when the draw is
	// below the current sample rate.
	Draw() float64
}

type randSampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler returns a sampler seeded from the clock.
func NewSampler() Sampler {
	return NewSeededSampler(time.Now().UnixNano())
}

// NewSeededSampler returns a sampler with a fixed seed, for reproducible
// filtering in tests and offline tooling.
func NewSeededSampler(seed int64) Sampler {
	return &randSampler{rng: rand.New(rand.NewSource(seed))}
}

func (s *randSampler) Draw() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}
