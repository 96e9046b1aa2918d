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
	"github.com/directoryhub/directory-services/internal/integrity"
	"github.com/directoryhub/directory-services/internal/policy"
	"github.com/directoryhub/directory-services/internal/validate"
	"github.com/directoryhub/directory-services/models"
)

// CreateGroupService creates a group naming an initial participant set.
// Any authenticated caller may create a group; every participant must
// reference an existing user.
func CreateGroupService(svc *Service, w http.ResponseWriter, r *http.Request) {

	logger := zerolog.Ctx(r.Context())

	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		WriteError(w, apperrors.New(apperrors.Unauthenticated, "identity not resolved"))
		return
	}

	var payload models.GroupRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.Warn().Err(err).Msg("Invalid request payload")
		WriteError(w, apperrors.New(apperrors.ValidationFailed, "invalid request payload"))
		return
	}

	if err := validate.NewGroup(payload); err != nil {
		WriteError(w, err)
		return
	}

	if err := policy.Authorize(identity, policy.CreateGroup, policy.Target{}); err != nil {
		WriteError(w, err)
		return
	}

	name := strings.ToLower(payload.Name)
	if err := svc.Integrity.AssertGroupNameUnique(r.Context(), name); err != nil {
		WriteError(w, err)
		return
	}
	if err := svc.Integrity.AssertParticipantsExist(r.Context(), payload.Participants); err != nil {
		WriteError(w, err)
		return
	}
	if err := integrity.AssertNonEmptyGroup(payload.Participants); err != nil {
		WriteError(w, err)
		return
	}

	group, err := svc.DB.InsertGroup(r.Context(), &models.Group{
		Name:         name,
		Participants: payload.Participants,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create group in database")
		WriteError(w, err)
		return
	}

	logger.Info().Str("group_id", group.ID).Msg("Group created successfully")
	svc.publish(r.Context(), "group", group.ID, "create")

	location := fmt.Sprintf("%s/%s", r.URL.Path, group.ID)
	WriteResponse(w, http.StatusCreated, models.Response{Success: 1, Data: group}, location)
}

// GetGroupsService retrieves all groups.
func GetGroupsService(svc *Service, w http.ResponseWriter, r *http.Request) {

	logger := zerolog.Ctx(r.Context())

	groups, err := svc.DB.ListGroups(r.Context())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to retrieve groups from database")
		WriteError(w, err)
		return
	}

	if groups == nil {
		groups = []models.Group{}
	}

	logger.Info().Int("group_count", len(groups)).Msg("Successfully retrieved groups")
	WriteResponse(w, http.StatusOK, models.Response{Success: 1, Data: groups})
}

// GetGroupService retrieves a single group by id.
func GetGroupService(svc *Service, w http.ResponseWriter, r *http.Request) {

	logger := zerolog.Ctx(r.Context())
	groupID := mux.Vars(r)["group-id"]

	group, err := svc.DB.FindGroupByID(r.Context(), groupID)
	if err != nil {
		logger.Error().Err(err).Str("group_id", groupID).Msg("Database error retrieving group")
		WriteError(w, err)
		return
	}
	if group == nil {
		logger.Warn().Str("group_id", groupID).Msg("Group not found")
		WriteError(w, apperrors.New(apperrors.NotFound, "group not found"))
		return
	}

	WriteResponse(w, http.StatusOK, models.Response{Success: 1, Data: group})
}

// UpdateGroupService renames a group and/or applies one membership
// change. Callers manage their own membership freely; touching another
// user's membership requires a superadmin.
func UpdateGroupService(svc *Service, w http.ResponseWriter, r *http.Request) {

	logger := zerolog.Ctx(r.Context())
	groupID := mux.Vars(r)["group-id"]

	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		WriteError(w, apperrors.New(apperrors.Unauthenticated, "identity not resolved"))
		return
	}

	var patch models.GroupPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		logger.Warn().Err(err).Msg("Invalid update request payload")
		WriteError(w, apperrors.New(apperrors.ValidationFailed, "invalid request payload"))
		return
	}

	if err := validate.GroupPatch(patch); err != nil {
		WriteError(w, err)
		return
	}

	group, err := svc.DB.FindGroupByID(r.Context(), groupID)
	if err != nil {
		logger.Error().Err(err).Str("group_id", groupID).Msg("Database error retrieving group")
		WriteError(w, err)
		return
	}
	if group == nil {
		WriteError(w, apperrors.New(apperrors.NotFound, "group not found"))
		return
	}

	// All checks run before either store write: a combined patch whose
	// rename would fail must not leave the membership change applied.
	if patch.Participant != nil {
		participant := *patch.Participant

		if err := policy.Authorize(identity, policy.UpdateGroupMembership, policy.Target{
			ParticipantID: participant,
		}); err != nil {
			logger.Warn().Str("group_id", group.ID).Str("requested_by", identity.Username).
				Msg("Access denied: group membership change")
			WriteError(w, err)
			return
		}

		switch *patch.Operation {
		case models.OpAdd:
			if group.HasParticipant(participant) {
				WriteError(w, apperrors.New(apperrors.ValidationFailed,
					"user already is a member of this group"))
				return
			}
			if err := svc.Integrity.AssertParticipantsExist(r.Context(), []string{participant}); err != nil {
				WriteError(w, err)
				return
			}

		case models.OpRemove:
			if !group.HasParticipant(participant) {
				WriteError(w, apperrors.New(apperrors.ValidationFailed,
					"user is not a member of this group"))
				return
			}
			remaining := make([]string, 0, len(group.Participants)-1)
			for _, p := range group.Participants {
				if p != participant {
					remaining = append(remaining, p)
				}
			}
			if err := integrity.AssertNonEmptyGroup(remaining); err != nil {
				WriteError(w, err)
				return
			}
		}
	}

	rename := ""
	if patch.Name != nil {
		name := strings.ToLower(*patch.Name)
		if name != group.Name {
			if err := svc.Integrity.AssertGroupNameUnique(r.Context(), name); err != nil {
				WriteError(w, err)
				return
			}
			rename = name
		}
	}

	if patch.Participant != nil {
		participant := *patch.Participant

		switch *patch.Operation {
		case models.OpAdd:
			if err := svc.DB.AddParticipant(r.Context(), group.ID, participant); err != nil {
				logger.Error().Err(err).Str("group_id", group.ID).Msg("Failed to add participant")
				WriteError(w, err)
				return
			}

		case models.OpRemove:
			if err := svc.DB.RemoveParticipant(r.Context(), group.ID, participant); err != nil {
				logger.Error().Err(err).Str("group_id", group.ID).Msg("Failed to remove participant")
				WriteError(w, err)
				return
			}
		}
	}

	if rename != "" {
		if err := svc.DB.RenameGroup(r.Context(), group.ID, rename); err != nil {
			logger.Error().Err(err).Str("group_id", group.ID).Msg("Failed to rename group")
			WriteError(w, err)
			return
		}
	}

	updated, err := svc.DB.FindGroupByID(r.Context(), group.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	logger.Info().Str("group_id", group.ID).Msg("Group updated successfully")
	svc.publish(r.Context(), "group", group.ID, "update")
	WriteResponse(w, http.StatusOK, models.Response{Success: 1, Data: updated})
}

// DeleteGroupService deletes a group. Admin or superadmin only.
func DeleteGroupService(svc *Service, w http.ResponseWriter, r *http.Request) {

	logger := zerolog.Ctx(r.Context())
	groupID := mux.Vars(r)["group-id"]

	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		WriteError(w, apperrors.New(apperrors.Unauthenticated, "identity not resolved"))
		return
	}

	group, err := svc.DB.FindGroupByID(r.Context(), groupID)
	if err != nil {
		logger.Error().Err(err).Str("group_id", groupID).Msg("Database error retrieving group")
		WriteError(w, err)
		return
	}
	if group == nil {
		WriteError(w, apperrors.New(apperrors.NotFound, "group not found"))
		return
	}

	if err := policy.Authorize(identity, policy.DeleteGroup, policy.Target{}); err != nil {
		logger.Warn().Str("group_id", group.ID).Str("requested_by", identity.Username).
			Msg("Access denied: group deletion")
		WriteError(w, err)
		return
	}

	if err := svc.DB.DeleteGroup(r.Context(), group.ID); err != nil {
		logger.Error().Err(err).Str("group_id", group.ID).Msg("Database error deleting group")
		WriteError(w, err)
		return
	}

	logger.Info().Str("group_id", group.ID).Msg("Group deleted successfully")
	svc.publish(r.Context(), "group", group.ID, "delete")

	WriteResponse(w, http.StatusOK, models.Response{
		Success: 1,
		Data:    models.MessageData{Message: "the group is deleted"},
	})
}
