// Package threat runs the periodic and event-triggered threat analyses and
// maintains the registry of active alerts.
package threat

import (
	"time"

	"github.com/guardian-safety/guardian/internal/geo"
)

// Category groups alerts by the analysis that produced them.
type Category string

const (
	CategoryEnvironmental  Category = "environmental"
	CategoryBehavioral     Category = "behavioral"
	CategorySocial         Category = "social"
	CategoryInfrastructure Category = "infrastructure"
)

// Level is the coarse severity band of an alert.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Rank orders levels for comparison; higher is worse.
func (l Level) Rank() int {
	switch l {
	case LevelCritical:
		return 3
	case LevelHigh:
		return 2
	case LevelMedium:
		return 1
	default:
		return 0
	}
}

// Severity carries the banded level plus its underlying numeric score and
// the confidence of the producing analysis, both in [0, 100].
type Severity struct {
	Level      Level   `json:"level"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

// LevelForScore maps a numeric threat score to its severity band.
func LevelForScore(score float64) Level {
	switch {
	case score >= 80:
		return LevelCritical
	case score >= 65:
		return LevelHigh
	case score >= 45:
		return LevelMedium
	default:
		return LevelLow
	}
}

// AlertTTL is how long an untouched alert stays active before it is
// garbage-collected.
const AlertTTL = time.Hour

// Alert is one active threat. Created by the analyzer, mutated only by
// dismissal, expired after AlertTTL.
type Alert struct {
	ID             string     `json:"id"`
	Timestamp      time.Time  `json:"timestamp"`
	Location       geo.LatLng `json:"location"`
	Category       Category   `json:"category"`
	Title          string     `json:"title"`
	Severity       Severity   `json:"severity"`
	Recommendation string     `json:"recommendation"`
	Rationale      string     `json:"rationale"`
	Dismissed      bool       `json:"dismissed"`
}
