// Package movement ingests location samples, derives speed and heading, and
// flags anomalous movement patterns for out-of-cycle threat analysis.
package movement

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/guardian-safety/guardian/internal/geo"
)

// Sample is one location fix. Speed and Heading are derived at ingestion
// from the previous sample.
type Sample struct {
	Timestamp time.Time  `json:"timestamp"`
	Location  geo.LatLng `json:"location"`

	// AccuracyMeters is the reported fix accuracy.
	AccuracyMeters float64 `json:"accuracy"`

	// SpeedKmh is derived from haversine distance over elapsed time.
	SpeedKmh float64 `json:"speed"`

	// HeadingDeg is the bearing from the previous sample in [0, 360).
	HeadingDeg float64 `json:"heading"`
}

// BufferSize bounds the sample history (about 25 minutes at typical
// sampling).
const BufferSize = 50

// Anomaly thresholds: a sudden speed spike beyond 3x the rolling average, or
// a drop below 30% of a moving (at least 5 km/h) average.
const (
	spikeFactor       = 3.0
	dropFactor        = 0.3
	dropMinAvgKmh     = 5.0
	rollingWindowSize = 3
)

// TrackerConfig holds configuration for the movement tracker.
type TrackerConfig struct {
	// Logger for tracker operations.
	Logger zerolog.Logger

	// OnAnomaly is invoked (synchronously) when an ingested sample is
	// flagged unusual. Typically wired to an out-of-cycle analyzer trigger.
	OnAnomaly func(Sample)
}

// Tracker maintains the bounded movement history.
type Tracker struct {
	logger    zerolog.Logger
	onAnomaly func(Sample)

	mu      sync.RWMutex
	samples [BufferSize]Sample
	head    int // next write position
	size    int
}

// NewTracker creates a movement tracker.
func NewTracker(cfg TrackerConfig) *Tracker {
	return &Tracker{
		logger:    cfg.Logger,
		onAnomaly: cfg.OnAnomaly,
	}
}

// Ingest records a sample, derives its speed and heading, and reports
// whether it was flagged as unusual movement.
func (t *Tracker) Ingest(s Sample) (Sample, bool) {
	t.mu.Lock()

	if t.size > 0 {
		prev := t.at(t.size - 1)
		elapsed := s.Timestamp.Sub(prev.Timestamp)
		if elapsed > 0 {
			distM := geo.Distance(prev.Location, s.Location)
			s.SpeedKmh = distM / elapsed.Seconds() * 3.6
			s.HeadingDeg = geo.Bearing(prev.Location, s.Location)
		}
	}

	anomalous := t.isAnomalous(s.SpeedKmh)

	t.samples[t.head] = s
	t.head = (t.head + 1) % BufferSize
	if t.size < BufferSize {
		t.size++
	}
	t.mu.Unlock()

	if anomalous {
		t.logger.Info().
			Float64("speed_kmh", s.SpeedKmh).
			Time("at", s.Timestamp).
			Msg("unusual movement detected")
		if t.onAnomaly != nil {
			t.onAnomaly(s)
		}
	}
	return s, anomalous
}

// isAnomalous compares a derived speed to the rolling average of the most
// recent samples. Caller holds the lock.
func (t *Tracker) isAnomalous(speedKmh float64) bool {
	if t.size < rollingWindowSize {
		return false
	}

	var sum float64
	for i := t.size - rollingWindowSize; i < t.size; i++ {
		sum += t.at(i).SpeedKmh
	}
	avg := sum / rollingWindowSize

	if avg > 0 && speedKmh > spikeFactor*avg {
		return true
	}
	if avg >= dropMinAvgKmh && speedKmh < dropFactor*avg {
		return true
	}
	return false
}

// at returns the i-th sample in chronological order. Caller holds the lock.
func (t *Tracker) at(i int) Sample {
	idx := (t.head - t.size + i + BufferSize) % BufferSize
	return t.samples[idx]
}

// History returns the retained samples in chronological order.
func (t *Tracker) History() []Sample {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Sample, t.size)
	for i := 0; i < t.size; i++ {
		out[i] = t.at(i)
	}
	return out
}

// Latest returns the most recent sample, if any.
func (t *Tracker) Latest() (Sample, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.size == 0 {
		return Sample{}, false
	}
	return t.at(t.size - 1), true
}

// AverageSpeed returns the mean speed over the last n samples (or fewer if
// the history is shorter).
func (t *Tracker) AverageSpeed(n int) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.size == 0 || n <= 0 {
		return 0
	}
	if n > t.size {
		n = t.size
	}

	var sum float64
	for i := t.size - n; i < t.size; i++ {
		sum += t.at(i).SpeedKmh
	}
	return sum / float64(n)
}

// HeadingDispersion measures route deviation over the last n samples as
// 1 - R, where R is the mean resultant length of the heading unit vectors.
// 0 means a steady course; values near 1 mean erratic direction changes.
func (t *Tracker) HeadingDispersion(n int) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if n > t.size {
		n = t.size
	}
	if n < 2 {
		return 0
	}

	var sinSum, cosSum float64
	count := 0
	for i := t.size - n; i < t.size; i++ {
		s := t.at(i)
		if s.SpeedKmh < 0.5 {
			// Headings are meaningless when stationary.
			continue
		}
		rad := s.HeadingDeg * math.Pi / 180
		sinSum += math.Sin(rad)
		cosSum += math.Cos(rad)
		count++
	}
	if count < 2 {
		return 0
	}

	r := math.Sqrt(sinSum*sinSum+cosSum*cosSum) / float64(count)
	return 1 - r
}

// StationarySince reports how long the history has stayed within the given
// radius of the latest location with an average speed below 1 km/h. Returns
// zero when the subject is moving.
func (t *Tracker) StationarySince(radiusMeters float64) time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.size < 2 {
		return 0
	}

	latest := t.at(t.size - 1)
	var speedSum float64
	count := 0
	earliest := latest.Timestamp

	for i := t.size - 1; i >= 0; i-- {
		s := t.at(i)
		if geo.Distance(latest.Location, s.Location) > radiusMeters {
			break
		}
		speedSum += s.SpeedKmh
		count++
		earliest = s.Timestamp
	}

	span := latest.Timestamp.Sub(earliest)
	if span <= 0 || count == 0 {
		return 0
	}
	if speedSum/float64(count) >= 1.0 {
		return 0
	}
	return span
}
