package db

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/directoryhub/directory-services/models"
)

// Store is the document-store boundary the core depends on. Every call
// is atomic only for the single document or operation it touches; there
// are no cross-document transactions.
type Store interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context, role models.Role) ([]models.User, error)
	CountUsersByRole(ctx context.Context, role models.Role) (int64, error)
	MissingUsers(ctx context.Context, ids []string) ([]string, error)
	InsertUser(ctx context.Context, user *models.User) (*models.User, error)
	UpdateUser(ctx context.Context, id string, set map[string]interface{}) error
	DeleteUser(ctx context.Context, id string) error

	FindGroupByID(ctx context.Context, id string) (*models.Group, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
	CountGroupsByName(ctx context.Context, name string) (int64, error)
	InsertGroup(ctx context.Context, group *models.Group) (*models.Group, error)
	RenameGroup(ctx context.Context, id, name string) error
	AddParticipant(ctx context.Context, groupID, userID string) error
	RemoveParticipant(ctx context.Context, groupID, userID string) error
	PruneParticipant(ctx context.Context, userID string) (int64, error)
	DeleteEmptyGroups(ctx context.Context) (int64, error)
	DeleteGroup(ctx context.Context, id string) error
}

const (
	usersCollection  = "users"
	groupsCollection = "groups"
	auditCollection  = "audit_events"
)

// DirectoryDB wraps the MongoDB database holding the users and groups
// collections.
type DirectoryDB struct {
	Client *mongo.Client
	DB     *mongo.Database
	Log    *zerolog.Logger
}

// NewDirectoryDB connects to MongoDB using the MONGO_URI environment
// variable and verifies the connection with a ping.
func NewDirectoryDB(dbName string, log *zerolog.Logger) (*DirectoryDB, error) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		log.Error().Msg("MONGO_URI environment variable is not set")
		return nil, fmt.Errorf("MONGO_URI environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		log.Error().Err(err).Msg("Failed to open database connection")
		return nil, err
	}

	// Check we are actually connected
	if err := client.Ping(ctx, nil); err != nil {
		log.Error().Err(err).Msg("Database connection failed during ping")
		return nil, err
	}

	return &DirectoryDB{
		Client: client,
		DB:     client.Database(dbName),
		Log:    log,
	}, nil
}

// Close disconnects from the database.
func (d *DirectoryDB) Close(ctx context.Context) error {
	if err := d.Client.Disconnect(ctx); err != nil {
		return err
	}
	d.Log.Info().Msg("database connection closed")
	return nil
}

// EnsureIndexes creates the unique indexes the invariants rely on:
// usernames unique across users, normalized names unique across groups.
// Usernames and group names are stored lowercase, so uniqueness here is
// case-insensitive uniqueness at the API surface.
func (d *DirectoryDB) EnsureIndexes(ctx context.Context) error {
	_, err := d.users().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		d.Log.Error().Err(err).Msg("error creating username index")
		return fmt.Errorf("error creating username index: %w", err)
	}

	_, err = d.groups().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		d.Log.Error().Err(err).Msg("error creating group name index")
		return fmt.Errorf("error creating group name index: %w", err)
	}

	d.Log.Info().Msg("Indexes initialized successfully")
	return nil
}

func (d *DirectoryDB) users() *mongo.Collection {
	return d.DB.Collection(usersCollection)
}

func (d *DirectoryDB) groups() *mongo.Collection {
	return d.DB.Collection(groupsCollection)
}

// AuditRecord is a consumed lifecycle event persisted for audit.
type AuditRecord struct {
	Entity     string    `bson:"entity"`
	EntityID   string    `bson:"entity_id"`
	Action     string    `bson:"action"`
	ReceivedAt time.Time `bson:"received_at"`
}

// RecordAuditEvent stores one consumed lifecycle event.
func (d *DirectoryDB) RecordAuditEvent(ctx context.Context, entity, entityID, action string) error {
	_, err := d.DB.Collection(auditCollection).InsertOne(ctx, AuditRecord{
		Entity:     entity,
		EntityID:   entityID,
		Action:     action,
		ReceivedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("error recording audit event: %w", err)
	}
	return nil
}
