package models

import "github.com/guardian-safety/guardian/internal/threat"

// ThreatListResponse is the active alert list, newest first.
type ThreatListResponse struct {
	Alerts []threat.Alert `json:"alerts"`
	Count  int            `json:"count"`
}
