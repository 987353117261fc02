// Package entities contains main entities of service.
package entities

import (
	"time"

	"github.com/google/uuid"
)

// DefaultProfileImage is an image of a freshly created profile.
const DefaultProfileImage = "blank.png"

// User ...
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}

// Profile ...
type Profile struct {
	UserID   uuid.UUID
	Username string
	Image    string
	Birthday *time.Time
	Bio      *string
	Location string
}

// Post ...
type Post struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Username  string
	Image     string
	Caption   string
	CreatedAt time.Time
	LikeCount int
}

// Comment ...
type Comment struct {
	ID        uuid.UUID
	PostID    uuid.UUID
	UserID    uuid.UUID
	Username  string
	Text      string
	CreatedAt time.Time
}

// FollowStats is counters of user's social graph.
type FollowStats struct {
	Followers int
	Following int
}
