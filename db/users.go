package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/directoryhub/directory-services/internal/apperrors"
	"github.com/directoryhub/directory-services/models"
)

// FindUserByID retrieves a single user, or nil when none matches.
func (d *DirectoryDB) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := d.users().FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		// User does not exist, return nil user and nil error
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.StoreUnavailable, "error retrieving user", err)
	}
	return &user, nil
}

// FindUserByUsername retrieves a single user by its stored (lowercase)
// username, or nil when none matches.
func (d *DirectoryDB) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := d.users().FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.StoreUnavailable, "error retrieving user", err)
	}
	return &user, nil
}

// ListUsers retrieves all users, optionally filtered by role.
func (d *DirectoryDB) ListUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	filter := bson.M{}
	if role != "" {
		filter["role"] = role
	}

	cursor, err := d.users().Find(ctx, filter)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.StoreUnavailable, "error retrieving users", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, apperrors.Wrap(apperrors.StoreUnavailable, "error decoding users", err)
	}
	return users, nil
}

// CountUsersByRole counts the users holding the given role.
func (d *DirectoryDB) CountUsersByRole(ctx context.Context, role models.Role) (int64, error) {
	count, err := d.users().CountDocuments(ctx, bson.M{"role": role})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.StoreUnavailable, "error counting users", err)
	}
	return count, nil
}

// MissingUsers returns the subset of ids with no matching user document.
func (d *DirectoryDB) MissingUsers(ctx context.Context, ids []string) ([]string, error) {
	cursor, err := d.users().Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.StoreUnavailable, "error retrieving users", err)
	}
	defer cursor.Close(ctx)

	var found []models.User
	if err := cursor.All(ctx, &found); err != nil {
		return nil, apperrors.Wrap(apperrors.StoreUnavailable, "error decoding users", err)
	}

	existing := make(map[string]struct{}, len(found))
	for _, u := range found {
		existing[u.ID] = struct{}{}
	}

	var missing []string
	for _, id := range ids {
		if _, ok := existing[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// InsertUser stores a new user with a store-assigned id.
func (d *DirectoryDB) InsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now().UTC()

	if _, err := d.users().InsertOne(ctx, user); err != nil {
		return nil, apperrors.Wrap(apperrors.StoreUnavailable, "error inserting user", err)
	}
	return user, nil
}

// UpdateUser applies the given field set to one user document.
func (d *DirectoryDB) UpdateUser(ctx context.Context, id string, set map[string]interface{}) error {
	res, err := d.users().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return apperrors.Wrap(apperrors.StoreUnavailable, "error updating user", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.New(apperrors.NotFound, "user not found")
	}
	return nil
}

// DeleteUser removes one user document.
func (d *DirectoryDB) DeleteUser(ctx context.Context, id string) error {
	if _, err := d.users().DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return apperrors.Wrap(apperrors.StoreUnavailable, "error deleting user", err)
	}
	return nil
}
