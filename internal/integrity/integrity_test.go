package integrity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/directoryhub/directory-services/internal/apperrors"
	"github.com/directoryhub/directory-services/models"
)

// stubStore serves canned reads for the engine.
type stubStore struct {
	users      map[string]*models.User
	roleCounts map[models.Role]int64
	nameCounts map[string]int64
}

func (s *stubStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.users[id], nil
}

func (s *stubStore) CountUsersByRole(ctx context.Context, role models.Role) (int64, error) {
	return s.roleCounts[role], nil
}

func (s *stubStore) MissingUsers(ctx context.Context, ids []string) ([]string, error) {
	missing := []string{}
	for _, id := range ids {
		if _, ok := s.users[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (s *stubStore) CountGroupsByName(ctx context.Context, name string) (int64, error) {
	return s.nameCounts[name], nil
}

func TestAssertSuperadminFloor(t *testing.T) {
	store := &stubStore{
		users: map[string]*models.User{
			"sa1": {ID: "sa1", Role: models.RoleSuperadmin},
			"u1":  {ID: "u1", Role: models.RoleUser},
		},
		roleCounts: map[models.Role]int64{models.RoleSuperadmin: 1},
	}
	engine := &Engine{Store: store}
	ctx := context.Background()

	// Deleting or demoting the only superadmin violates the floor.
	err := engine.AssertSuperadminFloor(ctx, "sa1", "")
	assert.True(t, apperrors.IsKind(err, apperrors.LastSuperadminViolation))

	err = engine.AssertSuperadminFloor(ctx, "sa1", models.RoleAdmin)
	assert.True(t, apperrors.IsKind(err, apperrors.LastSuperadminViolation))

	// A no-op role keeps the floor intact.
	assert.NoError(t, engine.AssertSuperadminFloor(ctx, "sa1", models.RoleSuperadmin))

	// Non-superadmin accounts never trip the floor.
	assert.NoError(t, engine.AssertSuperadminFloor(ctx, "u1", ""))

	// With a second superadmin the mutation is allowed.
	store.roleCounts[models.RoleSuperadmin] = 2
	assert.NoError(t, engine.AssertSuperadminFloor(ctx, "sa1", ""))

	err = engine.AssertSuperadminFloor(ctx, "ghost", "")
	assert.True(t, apperrors.IsKind(err, apperrors.NotFound))
}

func TestAssertSuperadminCeiling(t *testing.T) {
	store := &stubStore{roleCounts: map[models.Role]int64{models.RoleSuperadmin: 1}}
	engine := &Engine{Store: store}
	ctx := context.Background()

	assert.NoError(t, engine.AssertSuperadminCeiling(ctx))

	store.roleCounts[models.RoleSuperadmin] = 2
	err := engine.AssertSuperadminCeiling(ctx)
	assert.True(t, apperrors.IsKind(err, apperrors.SuperadminCeilingViolation))
}

func TestAssertParticipantsExist(t *testing.T) {
	store := &stubStore{
		users: map[string]*models.User{
			"u1": {ID: "u1"},
			"u2": {ID: "u2"},
		},
	}
	engine := &Engine{Store: store}
	ctx := context.Background()

	assert.NoError(t, engine.AssertParticipantsExist(ctx, []string{"u1", "u2"}))
	assert.NoError(t, engine.AssertParticipantsExist(ctx, nil))

	err := engine.AssertParticipantsExist(ctx, []string{"u1", "zz", "aa"})
	assert.True(t, apperrors.IsKind(err, apperrors.UnknownParticipant))
	// Missing ids are reported sorted.
	assert.Equal(t, "unknown participants: aa, zz", apperrors.DetailOf(err))
}

func TestAssertNonEmptyGroup(t *testing.T) {
	assert.NoError(t, AssertNonEmptyGroup([]string{"u1"}))

	err := AssertNonEmptyGroup(nil)
	assert.True(t, apperrors.IsKind(err, apperrors.EmptyGroup))
}

func TestAssertGroupNameUnique(t *testing.T) {
	store := &stubStore{nameCounts: map[string]int64{"devteam": 1}}
	engine := &Engine{Store: store}
	ctx := context.Background()

	assert.NoError(t, engine.AssertGroupNameUnique(ctx, "platform"))

	err := engine.AssertGroupNameUnique(ctx, "devteam")
	assert.True(t, apperrors.IsKind(err, apperrors.DuplicateGroupName))

	// Comparison runs on the normalized name.
	err = engine.AssertGroupNameUnique(ctx, "DevTeam")
	assert.True(t, apperrors.IsKind(err, apperrors.DuplicateGroupName))
}
