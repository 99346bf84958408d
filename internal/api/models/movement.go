package models

import "github.com/guardian-safety/guardian/internal/movement"

// MovementSampleRequest is one location fix from the client.
type MovementSampleRequest struct {
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	AccuracyMeters float64 `json:"accuracy"`

	// Timestamp defaults to the server receive time when omitted.
	Timestamp *Timestamp `json:"timestamp,omitempty"`
}

// TrackResponse is the buffered movement history as an encoded polyline.
type TrackResponse struct {
	// Polyline is the track in Google polyline encoding, oldest point first.
	Polyline string `json:"polyline"`

	Samples        int     `json:"samples"`
	DistanceMeters float64 `json:"distanceMeters"`

	From *Timestamp `json:"from,omitempty"`
	To   *Timestamp `json:"to,omitempty"`
}

// MovementSampleResponse echoes the ingested sample with its derived
// kinematics and whether it tripped the anomaly detector.
type MovementSampleResponse struct {
	Sample    movement.Sample `json:"sample"`
	Anomalous bool            `json:"anomalous"`

	// AnalysisTriggered reports whether an out-of-cycle threat analysis
	// was requested for this sample.
	AnalysisTriggered bool `json:"analysisTriggered"`
}
