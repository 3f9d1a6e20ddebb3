// Package scoring implements the pure score engine: mapping an impact
// position (or a manually supplied value) to a ring score, a decimal score,
// and an inner-ten flag against a concentric-ring target geometry.
//
// The engine is deterministic and side-effect free; the same input always
// yields the same result. Persistence, ownership and statistics live in the
// services layer.
package scoring

import (
	"math"
	"math/rand"
)

// Mode selects how the display score of a shot is derived.
type Mode string

const (
	// ModeClassic scores a shot with the integer ring value.
	ModeClassic Mode = "classic"
	// ModeDecimal scores a shot with the interpolated value in [ring, ring+0.9].
	ModeDecimal Mode = "decimal"
)

// MaxDecimalScore is the highest decimal score a shot can have (a perfectly
// centered ten).
const MaxDecimalScore = 10.9

// normalizedLimit bounds coordinates that are interpreted as fractions of the
// outer radius. Anything beyond is treated as millimetres.
const normalizedLimit = 1.5

// RingBand describes one scoring ring as a radial band in millimetres.
type RingBand struct {
	Ring        int
	InnerRadius float64
	OuterRadius float64
}

// TargetConfig is the geometry of a target face. Rings must be sorted by
// ascending outer radius (innermost ring first) so the first band containing
// a distance is the highest-scoring one.
type TargetConfig struct {
	Rings          []RingBand
	OuterRadius    float64 // radius of the outermost ring, millimetres
	InnerTenRadius float64 // inner-ten sub-ring radius, millimetres
}

// Result is the outcome of scoring a single shot.
type Result struct {
	Score        float64 // display score, mode-dependent
	RingScore    int     // 0..10
	DecimalScore float64 // 0..10.9, one decimal place
	IsInnerTen   bool
}

// issfAirPistolRingRadiiMM are the ISSF 10 m air pistol scoring ring outer
// radii, indexed ring 10 (innermost) to ring 1 (outermost).
var issfAirPistolRingRadiiMM = [...]float64{5.75, 13.75, 21.75, 29.75, 37.75, 45.75, 53.75, 61.75, 69.75, 77.75}

// issfAirPistolInnerTenRadiusMM is the radius of the 5.0 mm inner-ten ring.
const issfAirPistolInnerTenRadiusMM = 2.5

// ISSFAirPistol10m returns the standard ISSF 10 m air pistol target geometry.
func ISSFAirPistol10m() TargetConfig {
	rings := make([]RingBand, 0, len(issfAirPistolRingRadiiMM))
	inner := 0.0
	for i, outer := range issfAirPistolRingRadiiMM {
		rings = append(rings, RingBand{Ring: 10 - i, InnerRadius: inner, OuterRadius: outer})
		inner = outer
	}
	return TargetConfig{
		Rings:          rings,
		OuterRadius:    issfAirPistolRingRadiiMM[len(issfAirPistolRingRadiiMM)-1],
		InnerTenRadius: issfAirPistolInnerTenRadiusMM,
	}
}

// ComputeShotScore scores an impact at (x, y) against cfg.
//
// Coordinates with |x| and |y| within 1.5 are treated as normalized fractions
// of the outer radius and scaled to millimetres; larger magnitudes are taken
// as millimetres directly. Non-finite coordinates are treated as 0. A
// distance outside every ring scores 0.
func ComputeShotScore(x, y float64, cfg TargetConfig, mode Mode) Result {
	x = sanitize(x)
	y = sanitize(y)

	if math.Abs(x) <= normalizedLimit && math.Abs(y) <= normalizedLimit {
		x *= cfg.OuterRadius
		y *= cfg.OuterRadius
	}
	dist := math.Hypot(x, y)

	band, ok := ringAt(dist, cfg)
	if !ok {
		return Result{}
	}

	dec := decimalInBand(dist, band)
	res := Result{
		RingScore:    band.Ring,
		DecimalScore: dec,
		IsInnerTen:   band.Ring == 10 && dist <= cfg.InnerTenRadius,
	}
	if mode == ModeDecimal {
		res.Score = dec
	} else {
		res.Score = float64(band.Ring)
	}
	return res
}

// ManualScore derives a Result from a caller-supplied score. The value is
// clamped to [0, 10.9] and rounded to one decimal; the ring score is the
// integer part capped at 10. Manual scores carry no position, so the inner
// ten flag is never set.
func ManualScore(value float64) Result {
	dec := round1(clamp(sanitize(value), 0, MaxDecimalScore))
	ring := int(math.Floor(dec))
	if ring > 10 {
		ring = 10
	}
	return Result{
		Score:        dec,
		RingScore:    ring,
		DecimalScore: dec,
	}
}

// RandomPositionInRing synthesizes a normalized position whose distance falls
// inside the band of the given ring. It exists purely so scanner-recorded
// manual scores have a plausible spot to render; it carries no scoring
// meaning. A ring outside the configuration yields a position just beyond the
// outermost ring.
func RandomPositionInRing(ring int, cfg TargetConfig) (x, y float64) {
	inner := cfg.OuterRadius
	outer := cfg.OuterRadius * 1.2
	for _, b := range cfg.Rings {
		if b.Ring == ring {
			inner, outer = b.InnerRadius, b.OuterRadius
			break
		}
	}
	r := inner + rand.Float64()*(outer-inner)
	theta := rand.Float64() * 2 * math.Pi
	if cfg.OuterRadius > 0 {
		r /= cfg.OuterRadius
	}
	return round3(r * math.Cos(theta)), round3(r * math.Sin(theta))
}

// ringAt finds the innermost ring whose band contains dist.
func ringAt(dist float64, cfg TargetConfig) (RingBand, bool) {
	for _, b := range cfg.Rings {
		if dist <= b.OuterRadius {
			return b, true
		}
	}
	return RingBand{}, false
}

// decimalInBand interpolates the decimal score linearly between the band's
// outer edge (ring + 0.0) and inner edge (ring + 0.9).
func decimalInBand(dist float64, band RingBand) float64 {
	width := band.OuterRadius - band.InnerRadius
	ratio := 1.0
	if width > 0 {
		ratio = clamp((band.OuterRadius-dist)/width, 0, 1)
	}
	dec := round1(float64(band.Ring) + ratio*0.9)
	return clamp(dec, float64(band.Ring), MaxDecimalScore)
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
