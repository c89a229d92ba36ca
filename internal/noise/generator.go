// ABOUTME: White-noise sample generator for the real-time audio callback
// ABOUTME: Deterministic LCG producing interleaved float32 samples without allocation
package noise

import (
	"encoding/binary"
	"math"
)

const (
	lcgMultiplier = 1664525
	lcgIncrement  = 1013904223

	// DefaultSeed makes every session reproducible: the same seed and
	// amplitude sequence yields the same sample stream bit for bit.
	DefaultSeed = 1234567
)

// Generator holds the pseudo-random state advanced by the real-time
// callback. It is the only state the callback touches, and no other
// execution context may read or write it while a device is live.
type Generator struct {
	seed uint32
}

// NewGenerator creates a generator starting from the given seed.
func NewGenerator(seed uint32) *Generator {
	return &Generator{seed: seed}
}

// Next advances the state once and returns a sample in [-amplitude, amplitude).
// The top 24 bits of the new state map to [0, 1) before rescaling.
func (g *Generator) Next(amplitude float32) float32 {
	g.seed = g.seed*lcgMultiplier + lcgIncrement
	v := float32(g.seed>>8) / float32(1<<24)
	return (v*2 - 1) * amplitude
}

// Fill writes frames*channels interleaved float32 little-endian samples
// into out, advancing the state once per channel per frame. It runs on the
// audio subsystem's real-time thread and must not allocate, block, or lock.
func (g *Generator) Fill(out []byte, frames, channels uint32, amplitude float32) {
	total := int(frames * channels)
	for i := 0; i < total; i++ {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(g.Next(amplitude)))
	}
}
