// Package jitter offsets map marker positions so firms that share an address
// stay individually visible.
package jitter

import (
	"math"
	"math/rand/v2"
)

// MaxOffset is the largest offset, in degrees, applied to either axis.
const MaxOffset = 0.002

// Source yields uniform values in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// Jitterer draws independent per-axis offsets from a Source.
type Jitterer struct {
	src Source
}

// New returns a Jitterer reading from src, or from the process-wide
// generator when src is nil.
func New(src Source) *Jitterer {
	if src == nil {
		src = globalSource{}
	}
	return &Jitterer{src: src}
}

// Apply returns lat and lon each shifted by an independent draw from
// [-MaxOffset, MaxOffset].
func (j *Jitterer) Apply(lat, lon float64) (float64, float64) {
	if j == nil {
		j = New(nil)
	}
	return lat + j.offset(), lon + j.offset()
}

func (j *Jitterer) offset() float64 {
	u := j.src.Float64()
	// Clamp so a misbehaving source still lands inside the interval.
	if u < 0 || math.IsNaN(u) {
		u = 0
	} else if u > 1 {
		u = 1
	}
	return -MaxOffset + 2*MaxOffset*u
}
