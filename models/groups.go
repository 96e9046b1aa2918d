package models

import "time"

// Group is a stored membership document. Participants hold user ids as
// weak references; the integrity engine keeps them pointing at existing
// accounts and never lets the set become empty.
type Group struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Participants []string  `bson:"participants" json:"participants"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// HasParticipant reports whether userID is already a member.
func (g *Group) HasParticipant(userID string) bool {
	for _, p := range g.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// GroupRequest is the creation payload.
type GroupRequest struct {
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
}

// Membership operations accepted by a group patch.
const (
	OpAdd    = "add"
	OpRemove = "remove"
)

// GroupPatch updates a group: rename it, change one participant, or both.
// Operation is required whenever Participant is set.
type GroupPatch struct {
	Name        *string `json:"name,omitempty"`
	Participant *string `json:"participant,omitempty"`
	Operation   *string `json:"operation,omitempty"`
}

// Empty reports whether the patch carries neither a rename nor a
// membership change.
func (p GroupPatch) Empty() bool {
	return p.Name == nil && p.Participant == nil
}
