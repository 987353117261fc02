// Package service contains interface for service business-logic.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Decentr-net/tribune/internal/entities"
)

//go:generate mockgen -destination=./mock/service.go -package=mock -source=service.go

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an operation kept conflicting with concurrent writes.
	ErrConflict = errors.New("conflict")
	// ErrInvalidCredentials ...
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSelfFollow is returned when a user tries to follow themselves.
	ErrSelfFollow = errors.New("can not follow yourself")
	// ErrInvalidRequest ...
	ErrInvalidRequest = errors.New("invalid request")
)

// Service ...
type Service interface {
	// Authenticate checks user's credentials. Inactive users are never authenticated.
	Authenticate(ctx context.Context, username, password string) (*entities.User, error)
	// GetActiveUser returns ErrNotFound for unknown or inactive users.
	GetActiveUser(ctx context.Context, id uuid.UUID) (*entities.User, error)

	// ToggleLike flips like of the user on the post and returns new likes count of the post.
	ToggleLike(ctx context.Context, userID, postID uuid.UUID) (int, error)
	GetLiked(ctx context.Context, userID uuid.UUID, postIDs ...uuid.UUID) (map[uuid.UUID]bool, error)

	CreatePost(ctx context.Context, owner uuid.UUID, image, caption string) (*entities.Post, error)
	GetPost(ctx context.Context, id uuid.UUID) (*entities.Post, error)
	ListPosts(ctx context.Context) ([]*entities.Post, error)

	ListComments(ctx context.Context, postID uuid.UUID) ([]*entities.Comment, error)
	CreateComment(ctx context.Context, userID, postID uuid.UUID, text string) (*entities.Comment, error)

	GetProfile(ctx context.Context, userID uuid.UUID) (*entities.Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, upd *ProfileUpdate) (*entities.Profile, error)
	GetUserView(ctx context.Context, viewer uuid.UUID, username string) (*UserView, error)

	// ToggleFollow flips following of the followee by the follower.
	ToggleFollow(ctx context.Context, follower uuid.UUID, followee string) (*FollowResult, error)
}

// ProfileUpdate contains profile fields to be changed; nil fields are left untouched.
type ProfileUpdate struct {
	Image    *string
	Birthday *time.Time
	Bio      *string
	Location *string
}

// UserView is a public view of a user's page.
type UserView struct {
	Profile   *entities.Profile
	Posts     []*entities.Post
	Stats     entities.FollowStats
	Following bool
}

// FollowResult ...
type FollowResult struct {
	Following bool
	Followers int
}
