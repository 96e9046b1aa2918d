// Package policy decides whether a resolved identity may perform an
// action on a target entity. Decisions are pure: no store access, no
// side effects; a denial names the violated rule.
package policy

import (
	"github.com/directoryhub/directory-services/internal/apperrors"
	"github.com/directoryhub/directory-services/internal/authn"
	"github.com/directoryhub/directory-services/models"
)

// Action is a gated operation on an account or a group.
type Action string

const (
	CreateAccount         Action = "create_account"
	ReadAccount           Action = "read_account"
	UpdateAccount         Action = "update_account"
	DeleteAccount         Action = "delete_account"
	PromoteToSuperadmin   Action = "promote_to_superadmin"
	CreateGroup           Action = "create_group"
	ReadGroup             Action = "read_group"
	UpdateGroupMembership Action = "update_group_membership"
	DeleteGroup           Action = "delete_group"
)

// Target describes the entity an action applies to. AccountID and
// AccountRole identify a target account; ParticipantID identifies the
// user being added to or removed from a group.
type Target struct {
	AccountID     string
	AccountRole   models.Role
	ParticipantID string
}

// Authorize returns nil when identity may perform action on target, or a
// Forbidden error carrying the violated rule.
func Authorize(id authn.Identity, action Action, t Target) error {
	switch action {
	case CreateAccount, ReadAccount, CreateGroup, ReadGroup:
		// Any authenticated identity.
		return nil

	case PromoteToSuperadmin:
		if id.Role != models.RoleSuperadmin {
			return apperrors.New(apperrors.Forbidden,
				"only a superadmin may promote an account to superadmin")
		}
		return nil

	case UpdateAccount, DeleteAccount:
		// Self-service is unconditional; the integrity engine still
		// enforces the superadmin floor afterwards.
		if t.AccountID == id.ID {
			return nil
		}
		if !id.Role.Privileged() {
			return apperrors.New(apperrors.Forbidden,
				"role user may not modify or delete another account")
		}
		if t.AccountRole == models.RoleSuperadmin && id.Role != models.RoleSuperadmin {
			return apperrors.New(apperrors.Forbidden,
				"only a superadmin may modify or delete another superadmin account")
		}
		return nil

	case UpdateGroupMembership:
		if t.ParticipantID == id.ID {
			return nil
		}
		if id.Role != models.RoleSuperadmin {
			return apperrors.New(apperrors.Forbidden,
				"only a superadmin may add or remove another user's group membership")
		}
		return nil

	case DeleteGroup:
		if !id.Role.Privileged() {
			return apperrors.New(apperrors.Forbidden,
				"only an admin or superadmin may delete a group")
		}
		return nil

	default:
		return apperrors.Newf(apperrors.Forbidden, "unknown action %q", action)
	}
}

// Allow is the boolean form of Authorize.
func Allow(id authn.Identity, action Action, t Target) bool {
	return Authorize(id, action, t) == nil
}
