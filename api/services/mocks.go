package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/directoryhub/directory-services/internal/events"
	"github.com/directoryhub/directory-services/models"
)

type MockStore struct {
	mock.Mock
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStore) ListUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	args := m.Called(role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockStore) CountUsersByRole(ctx context.Context, role models.Role) (int64, error) {
	args := m.Called(role)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) MissingUsers(ctx context.Context, ids []string) ([]string, error) {
	args := m.Called(ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStore) InsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	args := m.Called(user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStore) UpdateUser(ctx context.Context, id string, set map[string]interface{}) error {
	args := m.Called(id, set)
	return args.Error(0)
}

func (m *MockStore) DeleteUser(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockStore) FindGroupByID(ctx context.Context, id string) (*models.Group, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Group), args.Error(1)
}

func (m *MockStore) ListGroups(ctx context.Context) ([]models.Group, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Group), args.Error(1)
}

func (m *MockStore) CountGroupsByName(ctx context.Context, name string) (int64, error) {
	args := m.Called(name)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) InsertGroup(ctx context.Context, group *models.Group) (*models.Group, error) {
	args := m.Called(group)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Group), args.Error(1)
}

func (m *MockStore) RenameGroup(ctx context.Context, id, name string) error {
	args := m.Called(id, name)
	return args.Error(0)
}

func (m *MockStore) AddParticipant(ctx context.Context, groupID, userID string) error {
	args := m.Called(groupID, userID)
	return args.Error(0)
}

func (m *MockStore) RemoveParticipant(ctx context.Context, groupID, userID string) error {
	args := m.Called(groupID, userID)
	return args.Error(0)
}

func (m *MockStore) PruneParticipant(ctx context.Context, userID string) (int64, error) {
	args := m.Called(userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) DeleteEmptyGroups(ctx context.Context) (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) DeleteGroup(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockNotifier) Publish(ctx context.Context, event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

func (m *MockNotifier) Close() {
	m.Called()
}
