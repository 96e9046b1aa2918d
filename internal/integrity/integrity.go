// Package integrity enforces the cross-entity invariants: superadmin
// cardinality stays within [1, 2], group participants reference existing
// accounts, groups are never empty, and group names are unique. Each
// check is read-then-decide against the store; callers serialize the
// cardinality-affecting sequences so concurrent requests cannot race
// past the bounds.
package integrity

import (
	"context"
	"sort"
	"strings"

	"github.com/directoryhub/directory-services/internal/apperrors"
	"github.com/directoryhub/directory-services/models"
)

// superadmin cardinality bounds after any successful mutation.
const (
	superadminFloor   = 1
	superadminCeiling = 2
)

// Store is the slice of the document store the engine reads from.
type Store interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	CountUsersByRole(ctx context.Context, role models.Role) (int64, error)
	MissingUsers(ctx context.Context, ids []string) ([]string, error)
	CountGroupsByName(ctx context.Context, name string) (int64, error)
}

// Engine runs invariant checks against a Store.
type Engine struct {
	Store Store
}

// AssertSuperadminFloor fails when demoting or deleting the account at
// targetID would leave the system without a superadmin. Pass the role
// the account will have after the mutation, or "" for deletion.
func (e *Engine) AssertSuperadminFloor(ctx context.Context, targetID string, proposedRole models.Role) error {
	target, err := e.Store.FindUserByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return apperrors.New(apperrors.NotFound, "user not found")
	}
	if target.Role != models.RoleSuperadmin || proposedRole == models.RoleSuperadmin {
		return nil
	}

	count, err := e.Store.CountUsersByRole(ctx, models.RoleSuperadmin)
	if err != nil {
		return err
	}
	if count <= superadminFloor {
		return apperrors.New(apperrors.LastSuperadminViolation,
			"there must be at least one superadmin")
	}
	return nil
}

// AssertSuperadminCeiling fails when a promotion would push the
// superadmin count past the ceiling.
func (e *Engine) AssertSuperadminCeiling(ctx context.Context) error {
	count, err := e.Store.CountUsersByRole(ctx, models.RoleSuperadmin)
	if err != nil {
		return err
	}
	if count >= superadminCeiling {
		return apperrors.Newf(apperrors.SuperadminCeilingViolation,
			"there cannot be more than %d superadmins", superadminCeiling)
	}
	return nil
}

// AssertParticipantsExist confirms every id references a stored account.
// All missing ids are reported, sorted, so the failure is deterministic.
func (e *Engine) AssertParticipantsExist(ctx context.Context, participantIDs []string) error {
	if len(participantIDs) == 0 {
		return nil
	}
	missing, err := e.Store.MissingUsers(ctx, participantIDs)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return apperrors.Newf(apperrors.UnknownParticipant,
			"unknown participants: %s", strings.Join(missing, ", "))
	}
	return nil
}

// AssertNonEmptyGroup fails when the resulting participant set would be
// empty.
func AssertNonEmptyGroup(participantIDs []string) error {
	if len(participantIDs) == 0 {
		return apperrors.New(apperrors.EmptyGroup,
			"a group must have at least one participant")
	}
	return nil
}

// AssertGroupNameUnique fails when another group already uses the
// normalized name.
func (e *Engine) AssertGroupNameUnique(ctx context.Context, name string) error {
	count, err := e.Store.CountGroupsByName(ctx, strings.ToLower(name))
	if err != nil {
		return err
	}
	if count > 0 {
		return apperrors.Newf(apperrors.DuplicateGroupName,
			"a group named %q already exists", strings.ToLower(name))
	}
	return nil
}
