package lensing

import (
	"math"

	"github.com/soniakeys/unit"
)

// centroid returns the arithmetic mean position of the members.
func centroid(members []PointSource) (x, y float64) {
	for _, m := range members {
		x += m.X
		y += m.Y
	}
	n := float64(len(members))
	return x / n, y / n
}

// maxPairwiseDistance returns the largest distance between any two members.
func maxPairwiseDistance(members []PointSource) float64 {
	var best float64
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			if d := members[i].DistanceTo(members[j]); d > best {
				best = d
			}
		}
	}
	return best
}

// fluxRatio returns max(flux)/min(flux). A zero minimum yields +Inf
// (or NaN when every flux is zero), both of which fail any ratio test.
func fluxRatio(members []PointSource) float64 {
	lo, hi := members[0].Flux, members[0].Flux
	for _, m := range members[1:] {
		lo = min(lo, m.Flux)
		hi = max(hi, m.Flux)
	}
	return hi / lo
}

// radialStats returns the mean and the coefficient of variation
// (population standard deviation over mean) of the values.
func radialStats(r []float64) (mean, cv float64) {
	for _, v := range r {
		mean += v
	}
	mean /= float64(len(r))

	var ss float64
	for _, v := range r {
		d := v - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(r)))
	return mean, std / mean
}

// floorMod is the modulo with the sign of the divisor.
func floorMod(a, b float64) float64 {
	return a - math.Floor(a/b)*b
}

// Unwrap removes 2π jumps from a sequence of angles: whenever two
// consecutive angles differ by more than π, the later ones are shifted by
// the multiple of 2π that brings the step back into [-π, π]. The input is
// not modified.
func Unwrap(angles []unit.Angle) []unit.Angle {
	out := make([]unit.Angle, len(angles))
	if len(angles) == 0 {
		return out
	}
	out[0] = angles[0]
	var correction float64
	for i := 1; i < len(angles); i++ {
		dd := float64(angles[i] - angles[i-1])
		if math.Abs(dd) >= math.Pi {
			ddmod := floorMod(dd+math.Pi, 2*math.Pi) - math.Pi
			if ddmod == -math.Pi && dd > 0 {
				ddmod = math.Pi
			}
			correction += ddmod - dd
		}
		out[i] = angles[i] + unit.Angle(correction)
	}
	return out
}

// AngularSpan returns max-min of the unwrapped angles.
func AngularSpan(angles []unit.Angle) unit.Angle {
	if len(angles) == 0 {
		return 0
	}
	u := Unwrap(angles)
	lo, hi := u[0], u[0]
	for _, a := range u[1:] {
		lo = min(lo, a)
		hi = max(hi, a)
	}
	return hi - lo
}

// positionAngle returns atan2(dy, dx) of s relative to c.
func positionAngle(c, s PointSource) unit.Angle {
	return unit.Angle(math.Atan2(s.Y-c.Y, s.X-c.X))
}
