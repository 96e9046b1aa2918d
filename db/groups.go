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

// FindGroupByID retrieves a single group, or nil when none matches.
func (d *DirectoryDB) FindGroupByID(ctx context.Context, id string) (*models.Group, error) {
	var group models.Group
	err := d.groups().FindOne(ctx, bson.M{"_id": id}).Decode(&group)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.StoreUnavailable, "error retrieving group", err)
	}
	return &group, nil
}

// ListGroups retrieves all groups.
func (d *DirectoryDB) ListGroups(ctx context.Context) ([]models.Group, error) {
	cursor, err := d.groups().Find(ctx, bson.M{})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.StoreUnavailable, "error retrieving groups", err)
	}
	defer cursor.Close(ctx)

	var groups []models.Group
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, apperrors.Wrap(apperrors.StoreUnavailable, "error decoding groups", err)
	}
	return groups, nil
}

// CountGroupsByName counts groups with the given normalized name.
func (d *DirectoryDB) CountGroupsByName(ctx context.Context, name string) (int64, error) {
	count, err := d.groups().CountDocuments(ctx, bson.M{"name": name})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.StoreUnavailable, "error counting groups", err)
	}
	return count, nil
}

// InsertGroup stores a new group with a store-assigned id.
func (d *DirectoryDB) InsertGroup(ctx context.Context, group *models.Group) (*models.Group, error) {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	group.CreatedAt = time.Now().UTC()

	if _, err := d.groups().InsertOne(ctx, group); err != nil {
		return nil, apperrors.Wrap(apperrors.StoreUnavailable, "error inserting group", err)
	}
	return group, nil
}

// RenameGroup sets a group's normalized name.
func (d *DirectoryDB) RenameGroup(ctx context.Context, id, name string) error {
	res, err := d.groups().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"name": name}})
	if err != nil {
		return apperrors.Wrap(apperrors.StoreUnavailable, "error renaming group", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.New(apperrors.NotFound, "group not found")
	}
	return nil
}

// AddParticipant adds a user id to a group's participant set. $addToSet
// keeps the operation idempotent.
func (d *DirectoryDB) AddParticipant(ctx context.Context, groupID, userID string) error {
	res, err := d.groups().UpdateOne(ctx, bson.M{"_id": groupID},
		bson.M{"$addToSet": bson.M{"participants": userID}})
	if err != nil {
		return apperrors.Wrap(apperrors.StoreUnavailable, "error adding participant", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.New(apperrors.NotFound, "group not found")
	}
	return nil
}

// RemoveParticipant removes a user id from a group's participant set.
func (d *DirectoryDB) RemoveParticipant(ctx context.Context, groupID, userID string) error {
	res, err := d.groups().UpdateOne(ctx, bson.M{"_id": groupID},
		bson.M{"$pull": bson.M{"participants": userID}})
	if err != nil {
		return apperrors.Wrap(apperrors.StoreUnavailable, "error removing participant", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.New(apperrors.NotFound, "group not found")
	}
	return nil
}

// PruneParticipant removes a deleted user's id from every group's
// participant set. Re-running against groups that no longer reference
// the id is a no-op.
func (d *DirectoryDB) PruneParticipant(ctx context.Context, userID string) (int64, error) {
	res, err := d.groups().UpdateMany(ctx, bson.M{},
		bson.M{"$pull": bson.M{"participants": userID}})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.StoreUnavailable, "error pruning participant", err)
	}
	return res.ModifiedCount, nil
}

// DeleteEmptyGroups removes every group whose participant set has been
// emptied, keeping the non-empty invariant after a cascade. Idempotent.
func (d *DirectoryDB) DeleteEmptyGroups(ctx context.Context) (int64, error) {
	res, err := d.groups().DeleteMany(ctx, bson.M{"participants": bson.M{"$size": 0}})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.StoreUnavailable, "error deleting empty groups", err)
	}
	return res.DeletedCount, nil
}

// DeleteGroup removes one group document.
func (d *DirectoryDB) DeleteGroup(ctx context.Context, id string) error {
	if _, err := d.groups().DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return apperrors.Wrap(apperrors.StoreUnavailable, "error deleting group", err)
	}
	return nil
}
