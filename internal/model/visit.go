package model

import (
	"time"
)

// Visit kinds
const (
	VisitNormal      = "normal"
	VisitObservation = "observation"
	VisitIncident    = "incident"
)

// ValidVisitKind reports whether kind is one of the known visit kinds.
func ValidVisitKind(kind string) bool {
	return kind == VisitNormal || kind == VisitObservation || kind == VisitIncident
}

// Visit is an append-only record of a guard scanning a checkpoint. Rows are
// never updated or deleted once written; OccurredAt may precede CreatedAt
// when the visit was captured offline and replayed later.
type Visit struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	ServiceID         uint      `json:"service_id" gorm:"not null;index"`
	CheckpointID      uint      `json:"checkpoint_id" gorm:"not null;index"`
	GuardID           uint      `json:"guard_id" gorm:"not null;index"`
	Kind              string    `json:"kind" gorm:"size:20;default:'normal'"` // normal, observation, incident
	Note              *string   `json:"note,omitempty"`
	ReportedLatitude  float64   `json:"reported_latitude" gorm:"not null"`
	ReportedLongitude float64   `json:"reported_longitude" gorm:"not null"`
	OccurredAt        time.Time `json:"occurred_at" gorm:"not null;index"`
	Synced            bool      `json:"synced" gorm:"default:true"`
	CreatedAt         time.Time `json:"created_at"`
}

// VisitRequest is a visit submission, either live or replayed from offline
// storage. OccurredAt is optional; server time is used when absent.
type VisitRequest struct {
	ServiceID    uint       `json:"service_id" binding:"required"`
	CheckpointID uint       `json:"checkpoint_id" binding:"required"`
	GuardID      uint       `json:"guard_id" binding:"required"`
	Kind         string     `json:"kind"`
	Note         *string    `json:"note"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	OccurredAt   *time.Time `json:"occurred_at"`
}

// SyncFailure pairs a rejected batch item with the reason it was rejected.
// Code carries the machine-readable kind (e.g. OUT_OF_RANGE) so offline
// clients never have to parse the message text.
type SyncFailure struct {
	Request VisitRequest `json:"request"`
	Error   string       `json:"error"`
	Code    string       `json:"code"`
}

// SyncResult is the outcome of an offline batch replay. Succeeded holds the
// new visit IDs in submission order; Failed holds the rejected items.
type SyncResult struct {
	Succeeded []uint        `json:"succeeded"`
	Failed    []SyncFailure `json:"failed"`
}

// VisitEvent is published to NATS after a visit is stored.
type VisitEvent struct {
	VisitID        uint      `json:"visit_id"`
	ServiceID      uint      `json:"service_id"`
	CheckpointID   uint      `json:"checkpoint_id"`
	CheckpointName string    `json:"checkpoint_name"`
	GuardID        uint      `json:"guard_id"`
	Kind           string    `json:"kind"`
	DistanceM      float64   `json:"distance_meters"`
	OccurredAt     time.Time `json:"occurred_at"`
}
