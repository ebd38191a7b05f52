package progress

import (
	"statushub/internal/types"

	"github.com/shopspring/decimal"
)

// Level is the discretized gauge indicator
type Level int

const (
	LevelEmpty Level = iota
	LevelQuarter
	LevelHalf
	LevelThreeQuarters
	LevelFull
)

var levelSymbols = [...]string{"○", "◔", "◑", "◕", "●"}

func (l Level) Symbol() string {
	if l < LevelEmpty || l > LevelFull {
		return levelSymbols[LevelEmpty]
	}
	return levelSymbols[l]
}

func (l Level) String() string {
	switch l {
	case LevelQuarter:
		return "quarter"
	case LevelHalf:
		return "half"
	case LevelThreeQuarters:
		return "threeQuarters"
	case LevelFull:
		return "full"
	default:
		return "empty"
	}
}

// LevelFor maps a percentage (0-100) onto the five indicator levels using
// the fixed thresholds 0, <33, <50, <67, >=67. Non-decreasing in percent.
func LevelFor(percent float64) Level {
	switch {
	case percent <= 0:
		return LevelEmpty
	case percent < 33:
		return LevelQuarter
	case percent < 50:
		return LevelHalf
	case percent < 67:
		return LevelThreeQuarters
	default:
		return LevelFull
	}
}

// Cumulative is the mean fraction over all entries, 0 for an empty set.
// Indeterminate entries count as 0.
func Cumulative(entries []types.ProgressInfo) float64 {
	if len(entries) == 0 {
		return 0
	}

	var sum float64
	for _, entry := range entries {
		sum += entry.Fraction()
	}

	return sum / float64(len(entries))
}

// Gauge is the scalar summary of every active operation
type Gauge struct {
	Cumulative float64         `json:"cumulative"`
	Percent    decimal.Decimal `json:"percent"`
	Level      Level           `json:"level"`
	Symbol     string          `json:"symbol"`
	Active     int             `json:"active"`
}

// NewGauge reduces entries into a Gauge
func NewGauge(entries []types.ProgressInfo) Gauge {
	cumulative := Cumulative(entries)
	percent := cumulative * 100
	level := LevelFor(percent)

	return Gauge{
		Cumulative: cumulative,
		Percent:    decimal.NewFromFloat(percent).Round(1),
		Level:      level,
		Symbol:     level.Symbol(),
		Active:     len(entries),
	}
}

// Projector recomputes the gauge on every registry mutation
type Projector struct {
	current Gauge
	onGauge func(Gauge)
}

// NewProjector returns a projector. onGauge, if set, is called with each
// recomputed gauge.
func NewProjector(onGauge func(Gauge)) *Projector {
	return &Projector{
		current: NewGauge(nil),
		onGauge: onGauge,
	}
}

func (p *Projector) ProgressChanged(entries []types.ProgressInfo) {
	p.current = NewGauge(entries)
	if p.onGauge != nil {
		p.onGauge(p.current)
	}
}

func (p *Projector) Gauge() Gauge {
	return p.current
}
