// Package authn resolves the authenticated caller for each request.
// There is no session state: every request re-authenticates its Basic
// credentials against the users collection.
package authn

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/directoryhub/directory-services/internal/apperrors"
	"github.com/directoryhub/directory-services/models"
)

// Identity is the resolved caller, valid for the lifetime of one request.
type Identity struct {
	ID       string
	Username string
	Role     models.Role
}

// AccountFinder is the slice of the store authn needs.
type AccountFinder interface {
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// HashPassword bcrypt-hashes a plaintext credential for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Resolve authenticates the transport credentials against the store.
// An unknown username yields Unauthenticated; a known username with a
// wrong password yields InvalidCredential.
func Resolve(ctx context.Context, store AccountFinder, username, password string) (Identity, error) {
	if username == "" || password == "" {
		return Identity{}, apperrors.New(apperrors.Unauthenticated, "credentials are required")
	}

	user, err := store.FindUserByUsername(ctx, strings.ToLower(username))
	if err != nil {
		return Identity{}, err
	}
	if user == nil {
		return Identity{}, apperrors.New(apperrors.Unauthenticated, "no account matches username")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Identity{}, apperrors.New(apperrors.InvalidCredential, "password does not match")
	}

	return Identity{ID: user.ID, Username: user.Username, Role: user.Role}, nil
}
