package service

import (
	"math"

	"openpatrol/api/internal/model"
)

// GeofenceResult is the outcome of a geofence check. It is always returned,
// even when the position is outside the radius; the caller decides whether
// that is an error.
type GeofenceResult struct {
	Within    bool    `json:"within"`
	DistanceM float64 `json:"distance_meters"`
	RadiusM   int     `json:"max_allowed_meters"`
}

// GeofenceValidator checks reported device positions against checkpoint
// geofences.
type GeofenceValidator struct {
	defaultRadiusM int
}

// NewGeofenceValidator creates a geofence validator. defaultRadiusM is used
// for checkpoints without an explicit validation radius.
func NewGeofenceValidator(defaultRadiusM int) *GeofenceValidator {
	return &GeofenceValidator{defaultRadiusM: defaultRadiusM}
}

// Validate computes the distance between the checkpoint and the reported
// position. The reported distance is rounded to 2 decimals for display; the
// within decision uses the raw value.
func (v *GeofenceValidator) Validate(checkpoint *model.Checkpoint, reportedLat, reportedLon float64) GeofenceResult {
	radius := v.RadiusFor(checkpoint)
	distance := Distance(checkpoint.Latitude, checkpoint.Longitude, reportedLat, reportedLon)

	return GeofenceResult{
		Within:    distance <= float64(radius),
		DistanceM: math.Round(distance*100) / 100,
		RadiusM:   radius,
	}
}

// RadiusFor returns the effective validation radius for a checkpoint.
func (v *GeofenceValidator) RadiusFor(checkpoint *model.Checkpoint) int {
	if checkpoint.ValidationRadiusM != nil {
		return *checkpoint.ValidationRadiusM
	}
	return v.defaultRadiusM
}
