package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"openpatrol/api/internal/model"
)

// QR payload wire format: "servicio:{serviceId}:punto:{checkpointId}".
// Both ids are base-10 integers with no leading zeros. The format is fixed;
// printed QR material in the field depends on it.
const (
	qrPrefixService    = "servicio"
	qrPrefixCheckpoint = "punto"
)

// QRResolver parses scanned payloads and resolves them against the
// checkpoint directory. Resolution is read-only.
type QRResolver struct {
	db *gorm.DB
}

// NewQRResolver creates a new QR resolver
func NewQRResolver(db *gorm.DB) *QRResolver {
	return &QRResolver{db: db}
}

// ParseQRPayload extracts the service and checkpoint ids from a scanned
// payload. A malformed payload is a validation outcome (KindInvalidPayload),
// not a fatal error.
func ParseQRPayload(payload string) (serviceID, checkpointID uint, err error) {
	parts := strings.Split(payload, ":")
	if len(parts) != 4 || parts[0] != qrPrefixService || parts[2] != qrPrefixCheckpoint {
		return 0, 0, newError(KindInvalidPayload, "invalid QR payload, expected servicio:ID:punto:ID")
	}

	serviceID, err = parseQRID(parts[1])
	if err != nil {
		return 0, 0, err
	}
	checkpointID, err = parseQRID(parts[3])
	if err != nil {
		return 0, 0, err
	}
	return serviceID, checkpointID, nil
}

// parseQRID parses a positive base-10 id with no leading zeros.
func parseQRID(s string) (uint, error) {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return 0, newError(KindInvalidPayload, "invalid id %q in QR payload", s)
	}
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		return 0, newError(KindInvalidPayload, "invalid id %q in QR payload", s)
	}
	return uint(id), nil
}

// BuildQRPayload renders the wire payload for a checkpoint.
func BuildQRPayload(checkpoint *model.Checkpoint) string {
	return qrPrefixService + ":" + strconv.FormatUint(uint64(checkpoint.ServiceID), 10) +
		":" + qrPrefixCheckpoint + ":" + strconv.FormatUint(uint64(checkpoint.ID), 10)
}

// Resolve parses a payload and looks the checkpoint up in the directory.
// On success it returns the checkpoint and the service id carried by the
// payload.
func (r *QRResolver) Resolve(ctx context.Context, payload string) (*model.Checkpoint, uint, error) {
	serviceID, checkpointID, err := ParseQRPayload(payload)
	if err != nil {
		return nil, 0, err
	}

	var checkpoint model.Checkpoint
	if err := r.db.WithContext(ctx).First(&checkpoint, checkpointID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, newError(KindCheckpointNotFound, "checkpoint %d not found", checkpointID)
		}
		return nil, 0, err
	}

	if !checkpoint.Active {
		return nil, 0, newError(KindCheckpointInactive, "checkpoint %d is inactive", checkpointID)
	}

	if checkpoint.ServiceID != serviceID {
		return nil, 0, newError(KindServiceMismatch,
			"checkpoint %d belongs to service %d, payload claims %d", checkpointID, checkpoint.ServiceID, serviceID)
	}

	return &checkpoint, serviceID, nil
}
