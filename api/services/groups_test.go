package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/directoryhub/directory-services/internal/authn"
	"github.com/directoryhub/directory-services/models"
)

func TestCreateGroupService(t *testing.T) {

	mockStore := new(MockStore)
	svc := newTestService(mockStore)

	created := &models.Group{ID: "g1", Name: "devteam", Participants: []string{"u1", "u2"}}

	mockStore.On("CountGroupsByName", "devteam").Return(int64(0), nil)
	mockStore.On("MissingUsers", []string{"u1", "u2"}).Return([]string{}, nil)
	mockStore.On("InsertGroup", mock.AnythingOfType("*models.Group")).Return(created, nil)

	payload, _ := json.Marshal(models.GroupRequest{
		Name:         "DevTeam",
		Participants: []string{"u1", "u2"},
	})
	r := requestWithIdentity(http.MethodPost, "/api/groups", payload,
		authn.Identity{ID: "u1", Role: models.RoleUser}, nil)
	w := httptest.NewRecorder()

	CreateGroupService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusCreated, res.StatusCode)
	env := decodeEnvelope(t, res)
	assert.Equal(t, 1, env.Success)

	var group models.Group
	assert.NoError(t, json.Unmarshal(env.Data, &group))
	assert.Equal(t, "devteam", group.Name, "Group name should be normalized to lowercase")

	mockStore.AssertExpectations(t)
}

func TestCreateGroupService_UnknownParticipant(t *testing.T) {

	mockStore := new(MockStore)
	svc := newTestService(mockStore)

	mockStore.On("CountGroupsByName", "devteam").Return(int64(0), nil)
	mockStore.On("MissingUsers", []string{"u1", "ghost"}).Return([]string{"ghost"}, nil)

	payload, _ := json.Marshal(models.GroupRequest{
		Name:         "devteam",
		Participants: []string{"u1", "ghost"},
	})
	r := requestWithIdentity(http.MethodPost, "/api/groups", payload,
		authn.Identity{ID: "u1", Role: models.RoleUser}, nil)
	w := httptest.NewRecorder()

	CreateGroupService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	env := decodeEnvelope(t, res)
	assert.Equal(t, "unknown_participant", env.ErrorCode)
	assert.True(t, strings.Contains(env.ErrorDetails, "ghost"),
		"Error detail should name the unknown participant")
	mockStore.AssertNotCalled(t, "InsertGroup", mock.Anything)
}

func TestCreateGroupService_DuplicateName(t *testing.T) {

	mockStore := new(MockStore)
	svc := newTestService(mockStore)

	mockStore.On("CountGroupsByName", "devteam").Return(int64(1), nil)

	payload, _ := json.Marshal(models.GroupRequest{
		Name:         "devteam",
		Participants: []string{"u1"},
	})
	r := requestWithIdentity(http.MethodPost, "/api/groups", payload,
		authn.Identity{ID: "u1", Role: models.RoleUser}, nil)
	w := httptest.NewRecorder()

	CreateGroupService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusConflict, res.StatusCode)
	env := decodeEnvelope(t, res)
	assert.Equal(t, "duplicate_group_name", env.ErrorCode)
	mockStore.AssertNotCalled(t, "InsertGroup", mock.Anything)
}

func TestCreateGroupService_NoParticipants(t *testing.T) {

	mockStore := new(MockStore)
	svc := newTestService(mockStore)

	payload := []byte(`{"name":"devteam","participants":[]}`)
	r := requestWithIdentity(http.MethodPost, "/api/groups", payload,
		authn.Identity{ID: "u1", Role: models.RoleUser}, nil)
	w := httptest.NewRecorder()

	CreateGroupService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	mockStore.AssertNotCalled(t, "InsertGroup", mock.Anything)
}

func TestGetGroupsService_EmptyResult(t *testing.T) {

	mockStore := new(MockStore)
	svc := newTestService(mockStore)

	mockStore.On("ListGroups").Return(nil, nil)

	r := requestWithIdentity(http.MethodGet, "/api/groups", nil,
		authn.Identity{ID: "u1", Role: models.RoleUser}, nil)
	w := httptest.NewRecorder()

	GetGroupsService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	env := decodeEnvelope(t, res)
	assert.Equal(t, "[]", strings.TrimSpace(string(env.Data)),
		"Empty result should serialize as an empty array, not null")
}

func TestGetGroupService_NotFound(t *testing.T) {

	mockStore := new(MockStore)
	svc := newTestService(mockStore)

	mockStore.On("FindGroupByID", "missing").Return(nil, nil)

	r := requestWithIdentity(http.MethodGet, "/api/groups/missing", nil,
		authn.Identity{ID: "u1", Role: models.RoleUser},
		map[string]string{"group-id": "missing"})
	w := httptest.NewRecorder()

	GetGroupService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	env := decodeEnvelope(t, res)
	assert.Equal(t, "not_found", env.ErrorCode)
}

func TestUpdateGroupService_SelfJoin(t *testing.T) {

	mockStore := new(MockStore)
	svc := newTestService(mockStore)

	group := &models.Group{ID: "g1", Name: "devteam", Participants: []string{"u2"}}
	mockStore.On("FindGroupByID", "g1").Return(group, nil)
	mockStore.On("MissingUsers", []string{"u1"}).Return([]string{}, nil)
	mockStore.On("AddParticipant", "g1", "u1").Return(nil)

	payload := []byte(`{"participant":"u1","operation":"add"}`)
	r := requestWithIdentity(http.MethodPatch, "/api/groups/g1", payload,
		authn.Identity{ID: "u1", Role: models.RoleUser},
		map[string]string{"group-id": "g1"})
	w := httptest.NewRecorder()

	UpdateGroupService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	mockStore.AssertCalled(t, "AddParticipant", "g1", "u1")
}

func TestUpdateGroupService_CannotManageOthersMembership(t *testing.T) {

	mockStore := new(MockStore)
	svc := newTestService(mockStore)

	group := &models.Group{ID: "g1", Name: "devteam", Participants: []string{"u2"}}
	mockStore.On("FindGroupByID", "g1").Return(group, nil)

	payload := []byte(`{"participant":"u3","operation":"add"}`)
	r := requestWithIdentity(http.MethodPatch, "/api/groups/g1", payload,
		authn.Identity{ID: "u1", Role: models.RoleAdmin},
		map[string]string{"group-id": "g1"})
	w := httptest.NewRecorder()

	UpdateGroupService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	mockStore.AssertNotCalled(t, "AddParticipant", mock.Anything, mock.Anything)
}

func TestUpdateGroupService_AlreadyMember(t *testing.T) {

	mockStore := new(MockStore)
	svc := newTestService(mockStore)

	group := &models.Group{ID: "g1", Name: "devteam", Participants: []string{"u1"}}
	mockStore.On("FindGroupByID", "g1").Return(group, nil)

	payload := []byte(`{"participant":"u1","operation":"add"}`)
	r := requestWithIdentity(http.MethodPatch, "/api/groups/g1", payload,
		authn.Identity{ID: "u1", Role: models.RoleUser},
		map[string]string{"group-id": "g1"})
	w := httptest.NewRecorder()

	UpdateGroupService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	mockStore.AssertNotCalled(t, "AddParticipant", mock.Anything, mock.Anything)
}

func TestUpdateGroupService_RemoveLastParticipant(t *testing.T) {

	mockStore := new(MockStore)
	svc := newTestService(mockStore)

	group := &models.Group{ID: "g1", Name: "devteam", Participants: []string{"u1"}}
	mockStore.On("FindGroupByID", "g1").Return(group, nil)

	payload := []byte(`{"participant":"u1","operation":"remove"}`)
	r := requestWithIdentity(http.MethodPatch, "/api/groups/g1", payload,
		authn.Identity{ID: "u1", Role: models.RoleUser},
		map[string]string{"group-id": "g1"})
	w := httptest.NewRecorder()

	UpdateGroupService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	env := decodeEnvelope(t, res)
	assert.Equal(t, "empty_group", env.ErrorCode)
	mockStore.AssertNotCalled(t, "RemoveParticipant", mock.Anything, mock.Anything)
}

func TestUpdateGroupService_SelfLeave(t *testing.T) {

	mockStore := new(MockStore)
	svc := newTestService(mockStore)

	group := &models.Group{ID: "g1", Name: "devteam", Participants: []string{"u1", "u2"}}
	mockStore.On("FindGroupByID", "g1").Return(group, nil)
	mockStore.On("RemoveParticipant", "g1", "u1").Return(nil)

	payload := []byte(`{"participant":"u1","operation":"remove"}`)
	r := requestWithIdentity(http.MethodPatch, "/api/groups/g1", payload,
		authn.Identity{ID: "u1", Role: models.RoleUser},
		map[string]string{"group-id": "g1"})
	w := httptest.NewRecorder()

	UpdateGroupService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	mockStore.AssertCalled(t, "RemoveParticipant", "g1", "u1")
}

func TestUpdateGroupService_Rename(t *testing.T) {

	mockStore := new(MockStore)
	svc := newTestService(mockStore)

	group := &models.Group{ID: "g1", Name: "devteam", Participants: []string{"u1"}}
	renamed := &models.Group{ID: "g1", Name: "platform", Participants: []string{"u1"}}

	mockStore.On("FindGroupByID", "g1").Return(group, nil).Once()
	mockStore.On("CountGroupsByName", "platform").Return(int64(0), nil)
	mockStore.On("RenameGroup", "g1", "platform").Return(nil)
	mockStore.On("FindGroupByID", "g1").Return(renamed, nil).Once()

	payload := []byte(`{"name":"Platform"}`)
	r := requestWithIdentity(http.MethodPatch, "/api/groups/g1", payload,
		authn.Identity{ID: "u1", Role: models.RoleUser},
		map[string]string{"group-id": "g1"})
	w := httptest.NewRecorder()

	UpdateGroupService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	env := decodeEnvelope(t, res)

	var updated models.Group
	assert.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "platform", updated.Name)
	mockStore.AssertExpectations(t)
}

func TestUpdateGroupService_CombinedPatchChecksBeforeWrites(t *testing.T) {

	mockStore := new(MockStore)
	svc := newTestService(mockStore)

	group := &models.Group{ID: "g1", Name: "devteam", Participants: []string{"u2"}}
	mockStore.On("FindGroupByID", "g1").Return(group, nil)
	mockStore.On("MissingUsers", []string{"u1"}).Return([]string{}, nil)
	mockStore.On("CountGroupsByName", "taken").Return(int64(1), nil)

	// Membership change plus a rename that collides: nothing may be
	// persisted, the membership write included.
	payload := []byte(`{"name":"taken","participant":"u1","operation":"add"}`)
	r := requestWithIdentity(http.MethodPatch, "/api/groups/g1", payload,
		authn.Identity{ID: "u1", Role: models.RoleUser},
		map[string]string{"group-id": "g1"})
	w := httptest.NewRecorder()

	UpdateGroupService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusConflict, res.StatusCode)
	env := decodeEnvelope(t, res)
	assert.Equal(t, "duplicate_group_name", env.ErrorCode)
	mockStore.AssertNotCalled(t, "AddParticipant", mock.Anything, mock.Anything)
	mockStore.AssertNotCalled(t, "RenameGroup", mock.Anything, mock.Anything)
}

func TestUpdateGroupService_RenameDuplicate(t *testing.T) {

	mockStore := new(MockStore)
	svc := newTestService(mockStore)

	group := &models.Group{ID: "g1", Name: "devteam", Participants: []string{"u1"}}
	mockStore.On("FindGroupByID", "g1").Return(group, nil)
	mockStore.On("CountGroupsByName", "platform").Return(int64(1), nil)

	payload := []byte(`{"name":"platform"}`)
	r := requestWithIdentity(http.MethodPatch, "/api/groups/g1", payload,
		authn.Identity{ID: "u1", Role: models.RoleUser},
		map[string]string{"group-id": "g1"})
	w := httptest.NewRecorder()

	UpdateGroupService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusConflict, res.StatusCode)
	env := decodeEnvelope(t, res)
	assert.Equal(t, "duplicate_group_name", env.ErrorCode)
	mockStore.AssertNotCalled(t, "RenameGroup", mock.Anything, mock.Anything)
}

func TestDeleteGroupService_UserForbidden(t *testing.T) {

	mockStore := new(MockStore)
	svc := newTestService(mockStore)

	group := &models.Group{ID: "g1", Name: "devteam", Participants: []string{"u1"}}
	mockStore.On("FindGroupByID", "g1").Return(group, nil)

	r := requestWithIdentity(http.MethodDelete, "/api/groups/g1", nil,
		authn.Identity{ID: "u1", Role: models.RoleUser},
		map[string]string{"group-id": "g1"})
	w := httptest.NewRecorder()

	DeleteGroupService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	mockStore.AssertNotCalled(t, "DeleteGroup", mock.Anything)
}

func TestDeleteGroupService_Admin(t *testing.T) {

	mockStore := new(MockStore)
	svc := newTestService(mockStore)

	group := &models.Group{ID: "g1", Name: "devteam", Participants: []string{"u1"}}
	mockStore.On("FindGroupByID", "g1").Return(group, nil)
	mockStore.On("DeleteGroup", "g1").Return(nil)

	r := requestWithIdentity(http.MethodDelete, "/api/groups/g1", nil,
		authn.Identity{ID: "admin1", Role: models.RoleAdmin},
		map[string]string{"group-id": "g1"})
	w := httptest.NewRecorder()

	DeleteGroupService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	env := decodeEnvelope(t, res)
	assert.Equal(t, 1, env.Success)
	mockStore.AssertExpectations(t)
}
