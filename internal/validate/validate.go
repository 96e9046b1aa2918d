// Package validate performs structural validation of incoming payloads.
// It is pure: no store access, no side effects. Each validator reports
// the first offending field so every run is deterministic, and callers
// must not touch the store until validation has passed.
package validate

import (
	"regexp"

	"github.com/directoryhub/directory-services/internal/apperrors"
	"github.com/directoryhub/directory-services/models"
)

var (
	alphanumRe = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	emailRe    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

const (
	usernameMin  = 4
	usernameMax  = 20
	passwordMin  = 8
	passwordMax  = 20
	groupNameMin = 4
	groupNameMax = 20
)

func alphanumBounded(field, value string, min, max int) error {
	if len(value) < min || len(value) > max {
		return apperrors.Newf(apperrors.ValidationFailed,
			"%s must be between %d and %d characters", field, min, max)
	}
	if !alphanumRe.MatchString(value) {
		return apperrors.Newf(apperrors.ValidationFailed,
			"%s must contain only alphanumeric characters", field)
	}
	return nil
}

func email(field, value string) error {
	if !emailRe.MatchString(value) {
		return apperrors.Newf(apperrors.ValidationFailed,
			"%s must be a valid email address", field)
	}
	return nil
}

func role(field string, value models.Role) error {
	if !value.Valid() {
		return apperrors.Newf(apperrors.ValidationFailed,
			"%s must be one of user, admin, superadmin", field)
	}
	return nil
}

// NewUser validates a registration payload.
func NewUser(req models.UserRequest) error {
	if req.Username == "" {
		return apperrors.New(apperrors.ValidationFailed, "username is required")
	}
	if err := alphanumBounded("username", req.Username, usernameMin, usernameMax); err != nil {
		return err
	}
	if req.Password == "" {
		return apperrors.New(apperrors.ValidationFailed, "password is required")
	}
	if err := alphanumBounded("password", req.Password, passwordMin, passwordMax); err != nil {
		return err
	}
	if req.Email == "" {
		return apperrors.New(apperrors.ValidationFailed, "email is required")
	}
	if err := email("email", req.Email); err != nil {
		return err
	}
	if req.Role == "" {
		return apperrors.New(apperrors.ValidationFailed, "role is required")
	}
	return role("role", req.Role)
}

// UserPatch validates a partial account update.
func UserPatch(p models.UserPatch) error {
	if p.Empty() {
		return apperrors.New(apperrors.ValidationFailed, "at least one field is required")
	}
	if p.Username != nil {
		if err := alphanumBounded("username", *p.Username, usernameMin, usernameMax); err != nil {
			return err
		}
	}
	if p.Password != nil {
		if err := alphanumBounded("password", *p.Password, passwordMin, passwordMax); err != nil {
			return err
		}
	}
	if p.Email != nil {
		if err := email("email", *p.Email); err != nil {
			return err
		}
	}
	if p.Role != nil {
		if err := role("role", *p.Role); err != nil {
			return err
		}
	}
	return nil
}

// RoleFilter validates the optional role query parameter on user listings.
func RoleFilter(value string) error {
	return role("role", models.Role(value))
}

// NewGroup validates a group creation payload.
func NewGroup(req models.GroupRequest) error {
	if req.Name == "" {
		return apperrors.New(apperrors.ValidationFailed, "name is required")
	}
	if err := alphanumBounded("name", req.Name, groupNameMin, groupNameMax); err != nil {
		return err
	}
	if len(req.Participants) == 0 {
		return apperrors.New(apperrors.ValidationFailed,
			"participants must contain at least one user id")
	}
	seen := make(map[string]struct{}, len(req.Participants))
	for _, id := range req.Participants {
		if id == "" {
			return apperrors.New(apperrors.ValidationFailed,
				"participants must not contain empty ids")
		}
		if _, dup := seen[id]; dup {
			return apperrors.Newf(apperrors.ValidationFailed,
				"participants must be unique, %q appears more than once", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// GroupPatch validates a group update. A membership change needs an
// operation; a rename alone does not.
func GroupPatch(p models.GroupPatch) error {
	if p.Empty() {
		return apperrors.New(apperrors.ValidationFailed,
			"either name or participant is required")
	}
	if p.Name != nil {
		if err := alphanumBounded("name", *p.Name, groupNameMin, groupNameMax); err != nil {
			return err
		}
	}
	if p.Participant != nil {
		if *p.Participant == "" {
			return apperrors.New(apperrors.ValidationFailed, "participant must not be empty")
		}
		if p.Operation == nil {
			return apperrors.New(apperrors.ValidationFailed,
				"operation is required when participant is set")
		}
		if *p.Operation != models.OpAdd && *p.Operation != models.OpRemove {
			return apperrors.New(apperrors.ValidationFailed,
				"operation must be one of add, remove")
		}
	}
	return nil
}
