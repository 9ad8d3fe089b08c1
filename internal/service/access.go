package service

import (
	"openpatrol/api/internal/model"
)

// Access policy decisions. These are pure, total functions over the identity
// and the target scope: they never touch storage, so callers must load the
// identity (and any scope data) themselves before deciding.

// CanRecordVisit decides whether identity may record a visit for
// visitServiceID. Guards and supervisors are bound to their own service;
// admins may record anywhere.
func CanRecordVisit(identity *model.User, visitServiceID uint) error {
	switch identity.Role {
	case model.RoleAdmin:
		return nil
	case model.RoleGuard, model.RoleSupervisor:
		if identity.ServiceID == nil {
			return newError(KindNoServiceAssigned, "%s has no service assigned", identity.Role)
		}
		if *identity.ServiceID != visitServiceID {
			return newError(KindForbidden, "no access to service %d", visitServiceID)
		}
		return nil
	default:
		return newError(KindForbidden, "unknown role %q", identity.Role)
	}
}

// CheckpointScope resolves the effective service scope for viewing
// checkpoints. Guards and supervisors always see their own service,
// regardless of what they requested; admins see the requested scope, or
// everything when nil.
func CheckpointScope(identity *model.User, requestedServiceID *uint) (*uint, error) {
	switch identity.Role {
	case model.RoleAdmin:
		return requestedServiceID, nil
	case model.RoleGuard, model.RoleSupervisor:
		if identity.ServiceID == nil {
			return nil, newError(KindNoServiceAssigned, "%s has no service assigned", identity.Role)
		}
		return identity.ServiceID, nil
	default:
		return nil, newError(KindForbidden, "unknown role %q", identity.Role)
	}
}

// CanManageCheckpointsOrUsers restricts management operations to admins.
func CanManageCheckpointsOrUsers(identity *model.User) error {
	if identity.Role != model.RoleAdmin {
		return newError(KindForbidden, "admin role required")
	}
	return nil
}

// CanViewReports allows admins and supervisors.
func CanViewReports(identity *model.User) error {
	if identity.Role != model.RoleAdmin && identity.Role != model.RoleSupervisor {
		return newError(KindForbidden, "admin or supervisor role required")
	}
	return nil
}

// AlertScope resolves the effective service scope for the overdue alert
// engine. Supervisors are pinned to their own service, admins may pass a
// filter or none, guards are denied outright.
func AlertScope(identity *model.User, scopeServiceID *uint) (*uint, error) {
	switch identity.Role {
	case model.RoleSupervisor:
		if identity.ServiceID == nil {
			return nil, newError(KindNoServiceAssigned, "supervisor has no service assigned")
		}
		return identity.ServiceID, nil
	case model.RoleAdmin:
		return scopeServiceID, nil
	default:
		return nil, newError(KindForbidden, "no permission to view alerts")
	}
}
