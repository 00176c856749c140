package telemetry

import (
	"fmt"
	"strings"

	"github.com/Versifine/kartsim/internal/physics"
	"github.com/Versifine/kartsim/internal/vehicle"
)

const gaugeBarWidth = 20

// FormatHUD renders the one-line driver readout:
//
//	spd  12.4/ 30.0  gauge [######|---------------]  31%  DRIFT  boost off  ground
func FormatHUD(s vehicle.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "spd %5.1f/%5.1f", s.Speed, s.EffectiveMaxSpeed)
	fmt.Fprintf(&b, "  gauge %s %3.0f%%", GaugeBar(s.Gauge, s.MaxGauge, s.MinBoostGauge, gaugeBarWidth),
		100*physics.Clamp01(physics.SafeDiv(s.Gauge, s.MaxGauge)))

	if s.Drifting {
		b.WriteString("  DRIFT")
	} else {
		b.WriteString("  -----")
	}
	if s.Boosting {
		fmt.Fprintf(&b, "  BOOST %3.0f%% %.1fs", s.BoostPower*100, s.BoostRemaining)
	} else {
		b.WriteString("  boost off")
	}
	if s.Grounded {
		b.WriteString("  ground")
	} else {
		b.WriteString("  air")
	}
	if s.Braking {
		b.WriteString("  BRAKE")
	}
	return b.String()
}

// GaugeBar draws a fixed-width bar with a '|' marking the minimum boost gauge.
// A full gauge is drawn with '=' so it stands out.
func GaugeBar(gauge, maxGauge, minBoost float64, width int) string {
	if width <= 0 {
		return "[]"
	}
	fill := physics.Clamp01(physics.SafeDiv(gauge, maxGauge))
	filled := int(fill * float64(width))
	marker := -1
	if minBoost > 0 {
		marker = int(physics.Clamp01(physics.SafeDiv(minBoost, maxGauge)) * float64(width))
	}

	fillRune := '#'
	if fill >= 1 {
		fillRune = '='
	}

	var b strings.Builder
	b.Grow(width + 3)
	b.WriteByte('[')
	for i := 0; i < width; i++ {
		switch {
		case i == marker:
			b.WriteByte('|')
		case i < filled:
			b.WriteRune(fillRune)
		default:
			b.WriteByte('-')
		}
	}
	b.WriteByte(']')
	return b.String()
}
