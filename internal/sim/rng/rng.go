// Package rng is the director's deterministic random source.
//
// The whole generator state is one uint64 so it can be exported into a
// snapshot and restored bit-for-bit.
package rng

const gamma = 0x9e3779b97f4a7c15

type RNG struct {
	state uint64
}

func New(seed int64) *RNG {
	return &RNG{state: uint64(seed)}
}

func (r *RNG) State() uint64 { return r.state }

func (r *RNG) SetState(s uint64) { r.state = s }

// Uint64 advances the generator (splitmix64).
func (r *RNG) Uint64() uint64 {
	r.state += gamma
	return mix64(r.state)
}

// Float64 returns a value in [0,1).
func (r *RNG) Float64() float64 {
	return float64(r.Uint64()>>11) / (1 << 53)
}

// Intn returns a value in [0,n). n <= 0 yields 0 without consuming a draw.
func (r *RNG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.Uint64() % uint64(n))
}

// Pick returns a uniformly chosen element. Empty input consumes no draw.
func Pick[T any](r *RNG, xs []T) (T, bool) {
	var zero T
	if len(xs) == 0 {
		return zero, false
	}
	return xs[r.Intn(len(xs))], true
}

func mix64(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
