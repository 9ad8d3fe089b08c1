package model

import "time"

// Alert severities, lowest to highest.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// AlertKindUnvisited marks a checkpoint overdue for a visit.
const AlertKindUnvisited = "unvisited"

// Alert is a derived overdue signal for a checkpoint. Alerts are recomputed
// on every query and never persisted. MinutesSinceVisit is nil when the
// checkpoint has never been visited.
type Alert struct {
	CheckpointID      uint       `json:"checkpoint_id"`
	CheckpointName    string     `json:"checkpoint_name"`
	LastVisitAt       *time.Time `json:"last_visit_at"`
	MinutesSinceVisit *int       `json:"minutes_since_visit"`
	Kind              string     `json:"kind"`
	Severity          string     `json:"severity"`
}

// AlertCount summarises active alerts by severity.
type AlertCount struct {
	Total  int `json:"total"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// SeverityRank maps a severity to its sort rank (high first).
func SeverityRank(severity string) int {
	switch severity {
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}
