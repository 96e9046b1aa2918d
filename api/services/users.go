package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/directoryhub/directory-services/api/middleware"
	"github.com/directoryhub/directory-services/internal/apperrors"
	"github.com/directoryhub/directory-services/internal/authn"
	"github.com/directoryhub/directory-services/internal/policy"
	"github.com/directoryhub/directory-services/internal/validate"
	"github.com/directoryhub/directory-services/models"
)

// RegisterUserService creates a new user account. Registering a
// superadmin is gated by the promote policy and the cardinality ceiling.
func RegisterUserService(svc *Service, w http.ResponseWriter, r *http.Request) {

	logger := zerolog.Ctx(r.Context())

	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		logger.Warn().Msg("Unauthorized request: missing identity")
		WriteError(w, apperrors.New(apperrors.Unauthenticated, "identity not resolved"))
		return
	}

	var payload models.UserRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.Warn().Err(err).Msg("Invalid request payload")
		WriteError(w, apperrors.New(apperrors.ValidationFailed, "invalid request payload"))
		return
	}

	if err := validate.NewUser(payload); err != nil {
		WriteError(w, err)
		return
	}

	if payload.Role == models.RoleSuperadmin {
		if err := policy.Authorize(identity, policy.PromoteToSuperadmin, policy.Target{}); err != nil {
			logger.Warn().Str("requested_by", identity.Username).Msg("superadmin registration denied")
			WriteError(w, err)
			return
		}
	}

	username := strings.ToLower(payload.Username)
	existing, err := svc.DB.FindUserByUsername(r.Context(), username)
	if err != nil {
		logger.Error().Err(err).Msg("Database error checking username")
		WriteError(w, err)
		return
	}
	if existing != nil {
		WriteError(w, apperrors.New(apperrors.ValidationFailed,
			"user already exists, please choose another username"))
		return
	}

	hash, err := authn.HashPassword(payload.Password)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to hash password")
		WriteError(w, err)
		return
	}

	if payload.Role == models.RoleSuperadmin {
		svc.roleMu.Lock()
		defer svc.roleMu.Unlock()
		if err := svc.Integrity.AssertSuperadminCeiling(r.Context()); err != nil {
			WriteError(w, err)
			return
		}
	}

	user, err := svc.DB.InsertUser(r.Context(), &models.User{
		Username:     username,
		PasswordHash: hash,
		Email:        payload.Email,
		Role:         payload.Role,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create user in database")
		WriteError(w, err)
		return
	}

	logger.Info().Str("user_id", user.ID).Msg("User created successfully")
	svc.publish(r.Context(), "user", user.ID, "create")

	location := fmt.Sprintf("%s/%s", r.URL.Path, user.ID)
	WriteResponse(w, http.StatusCreated, models.Response{Success: 1, Data: user}, location)
}

// GetUsersService retrieves all users, optionally filtered by role.
func GetUsersService(svc *Service, w http.ResponseWriter, r *http.Request) {

	logger := zerolog.Ctx(r.Context())

	role := r.URL.Query().Get("role")
	if role != "" {
		if err := validate.RoleFilter(role); err != nil {
			WriteError(w, err)
			return
		}
	}

	users, err := svc.DB.ListUsers(r.Context(), models.Role(role))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to retrieve users from database")
		WriteError(w, err)
		return
	}

	// Ensure users is not nil, return an empty slice if no users are found
	if users == nil {
		users = []models.User{}
	}

	logger.Info().Int("user_count", len(users)).Msg("Successfully retrieved users")
	WriteResponse(w, http.StatusOK, models.Response{Success: 1, Data: users})
}

// GetUserService retrieves a single user by id.
func GetUserService(svc *Service, w http.ResponseWriter, r *http.Request) {

	logger := zerolog.Ctx(r.Context())
	userID := mux.Vars(r)["user-id"]

	user, err := svc.DB.FindUserByID(r.Context(), userID)
	if err != nil {
		logger.Error().Err(err).Str("user_id", userID).Msg("Database error retrieving user")
		WriteError(w, err)
		return
	}
	if user == nil {
		logger.Warn().Str("user_id", userID).Msg("User not found")
		WriteError(w, apperrors.New(apperrors.NotFound, "user not found"))
		return
	}

	WriteResponse(w, http.StatusOK, models.Response{Success: 1, Data: user})
}

// UpdateUserService applies a partial update to a user account. Role
// changes touching the superadmin role are serialized and checked
// against the cardinality bounds.
func UpdateUserService(svc *Service, w http.ResponseWriter, r *http.Request) {

	logger := zerolog.Ctx(r.Context())
	userID := mux.Vars(r)["user-id"]

	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		WriteError(w, apperrors.New(apperrors.Unauthenticated, "identity not resolved"))
		return
	}

	var patch models.UserPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		logger.Warn().Err(err).Msg("Invalid update request payload")
		WriteError(w, apperrors.New(apperrors.ValidationFailed, "invalid request payload"))
		return
	}

	if err := validate.UserPatch(patch); err != nil {
		WriteError(w, err)
		return
	}

	target, err := svc.DB.FindUserByID(r.Context(), userID)
	if err != nil {
		logger.Error().Err(err).Str("user_id", userID).Msg("Database error retrieving user")
		WriteError(w, err)
		return
	}
	if target == nil {
		WriteError(w, apperrors.New(apperrors.NotFound, "user not found"))
		return
	}

	if err := policy.Authorize(identity, policy.UpdateAccount, policy.Target{
		AccountID:   target.ID,
		AccountRole: target.Role,
	}); err != nil {
		logger.Warn().Str("user_id", userID).Str("requested_by", identity.Username).
			Msg("Access denied: account update")
		WriteError(w, err)
		return
	}

	// Every patch carrying a role is serialized, and the target is
	// re-read under the lock: the earlier read may be stale against a
	// concurrent role mutation, so it must not decide whether the
	// cardinality checks run.
	if patch.Role != nil {
		svc.roleMu.Lock()
		defer svc.roleMu.Unlock()

		current, err := svc.DB.FindUserByID(r.Context(), target.ID)
		if err != nil {
			WriteError(w, err)
			return
		}
		if current == nil {
			WriteError(w, apperrors.New(apperrors.NotFound, "user not found"))
			return
		}
		target = current

		if *patch.Role != target.Role {
			if *patch.Role == models.RoleSuperadmin {
				if err := policy.Authorize(identity, policy.PromoteToSuperadmin, policy.Target{}); err != nil {
					WriteError(w, err)
					return
				}
				if err := svc.Integrity.AssertSuperadminCeiling(r.Context()); err != nil {
					WriteError(w, err)
					return
				}
			} else if target.Role == models.RoleSuperadmin {
				if err := svc.Integrity.AssertSuperadminFloor(r.Context(), target.ID, *patch.Role); err != nil {
					WriteError(w, err)
					return
				}
			}
		}
	}

	set := map[string]interface{}{}
	if patch.Username != nil {
		username := strings.ToLower(*patch.Username)
		if username != target.Username {
			existing, err := svc.DB.FindUserByUsername(r.Context(), username)
			if err != nil {
				WriteError(w, err)
				return
			}
			if existing != nil {
				WriteError(w, apperrors.New(apperrors.ValidationFailed,
					"user already exists, please choose another username"))
				return
			}
		}
		set["username"] = username
	}
	if patch.Password != nil {
		hash, err := authn.HashPassword(*patch.Password)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to hash password")
			WriteError(w, err)
			return
		}
		set["password_hash"] = hash
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.Role != nil {
		set["role"] = *patch.Role
	}

	if err := svc.DB.UpdateUser(r.Context(), target.ID, set); err != nil {
		logger.Error().Err(err).Str("user_id", target.ID).Msg("Database error updating user")
		WriteError(w, err)
		return
	}

	updated, err := svc.DB.FindUserByID(r.Context(), target.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	logger.Info().Str("user_id", target.ID).Msg("User updated successfully")
	svc.publish(r.Context(), "user", target.ID, "update")
	WriteResponse(w, http.StatusOK, models.Response{Success: 1, Data: updated})
}

// DeleteUserService deletes a user account, prunes the id from every
// group's participant set and cascade-deletes any group left empty.
func DeleteUserService(svc *Service, w http.ResponseWriter, r *http.Request) {

	logger := zerolog.Ctx(r.Context())
	userID := mux.Vars(r)["user-id"]

	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		WriteError(w, apperrors.New(apperrors.Unauthenticated, "identity not resolved"))
		return
	}

	target, err := svc.DB.FindUserByID(r.Context(), userID)
	if err != nil {
		logger.Error().Err(err).Str("user_id", userID).Msg("Database error retrieving user")
		WriteError(w, err)
		return
	}
	if target == nil {
		WriteError(w, apperrors.New(apperrors.NotFound, "user not found"))
		return
	}

	if err := policy.Authorize(identity, policy.DeleteAccount, policy.Target{
		AccountID:   target.ID,
		AccountRole: target.Role,
	}); err != nil {
		logger.Warn().Str("user_id", userID).Str("requested_by", identity.Username).
			Msg("Access denied: account deletion")
		WriteError(w, err)
		return
	}

	// The lock and the floor check run unconditionally: the target role
	// read above may be stale against a concurrent promotion, and the
	// engine re-reads the target under the lock anyway.
	svc.roleMu.Lock()
	defer svc.roleMu.Unlock()
	if err := svc.Integrity.AssertSuperadminFloor(r.Context(), target.ID, ""); err != nil {
		WriteError(w, err)
		return
	}

	if err := svc.DB.DeleteUser(r.Context(), target.ID); err != nil {
		logger.Error().Err(err).Str("user_id", target.ID).Msg("Database error deleting user")
		WriteError(w, err)
		return
	}

	// Cascade: both store calls are idempotent, so a crash between the
	// delete and here is recovered by re-running the request.
	pruned, err := svc.DB.PruneParticipant(r.Context(), target.ID)
	if err != nil {
		logger.Error().Err(err).Str("user_id", target.ID).Msg("Failed to prune user from groups")
		WriteError(w, err)
		return
	}
	emptied, err := svc.DB.DeleteEmptyGroups(r.Context())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to delete emptied groups")
		WriteError(w, err)
		return
	}

	logger.Info().Str("user_id", target.ID).
		Int64("groups_pruned", pruned).Int64("groups_deleted", emptied).
		Msg("User deleted successfully")
	svc.publish(r.Context(), "user", target.ID, "delete")

	WriteResponse(w, http.StatusOK, models.Response{
		Success: 1,
		Data:    models.MessageData{Message: "the user is deleted"},
	})
}
