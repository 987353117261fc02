// Package storage contains a storage interface.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Decentr-net/tribune/internal/entities"
)

//go:generate mockgen -destination=./mock/storage.go -package=mock -source=storage.go

var (
	// ErrNotFound ...
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")
	// ErrInvalidReference is returned when a write references a missing row.
	ErrInvalidReference = errors.New("invalid reference")
)

// Storage provides methods for interacting with database.
type Storage interface {
	// InTx runs f in a single transaction. The transaction is rolled back when f returns an error.
	InTx(ctx context.Context, f func(s Storage) error) error
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, u *entities.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*entities.User, error)
	GetUserByUsername(ctx context.Context, username string) (*entities.User, error)

	GetOrCreateProfile(ctx context.Context, userID uuid.UUID) (*entities.Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, p *UpdateProfileParams) error

	CreatePost(ctx context.Context, p *entities.Post) error
	GetPost(ctx context.Context, id uuid.UUID) (*entities.Post, error)
	ListPosts(ctx context.Context, p *ListPostsParams) ([]*entities.Post, error)
	// LockPost locks post's row until the end of the current transaction.
	LockPost(ctx context.Context, id uuid.UUID) error

	GetLiked(ctx context.Context, userID uuid.UUID, ids ...uuid.UUID) (map[uuid.UUID]bool, error)
	CreateLike(ctx context.Context, postID, userID uuid.UUID, timestamp time.Time) error
	// DeleteLike returns true if like existed.
	DeleteLike(ctx context.Context, postID, userID uuid.UUID) (bool, error)
	// AddLikes adjusts post's like counter by delta and returns the new value.
	AddLikes(ctx context.Context, postID uuid.UUID, delta int) (int, error)

	CreateComment(ctx context.Context, c *entities.Comment) error
	ListComments(ctx context.Context, postID uuid.UUID) ([]*entities.Comment, error)

	// Follow returns false if the relationship already existed.
	Follow(ctx context.Context, follower, followee uuid.UUID) (bool, error)
	// Unfollow returns false if there was nothing to delete.
	Unfollow(ctx context.Context, follower, followee uuid.UUID) (bool, error)
	IsFollowing(ctx context.Context, follower, followee uuid.UUID) (bool, error)
	GetFollowStats(ctx context.Context, userID uuid.UUID) (*entities.FollowStats, error)
}

// ListPostsParams ...
type ListPostsParams struct {
	Owner *uuid.UUID
}

// UpdateProfileParams contains fields to be changed; nil fields are left untouched.
type UpdateProfileParams struct {
	Image    *string
	Birthday *time.Time
	Bio      *string
	Location *string
}
