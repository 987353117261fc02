package server

import (
	"time"

	"github.com/google/uuid"

	"github.com/Decentr-net/tribune/internal/entities"
)

const dateLayout = "2006-01-02"

// ValidationError ...
// swagger:model
type ValidationError struct {
	Error string `json:"error"`
	// Fields maps request field name to its error.
	Fields map[string]string `json:"fields"`
}

// LikesResponse ...
// swagger:model
type LikesResponse struct {
	Likes int `json:"no_of_likes"`
}

// LogoutRequest ...
type LogoutRequest struct {
	// Refresh token to be revoked as well.
	Refresh string `json:"refresh"`
}

// LogoutResponse ...
// swagger:model
type LogoutResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// CredentialsRequest ...
type CredentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenPairResponse ...
// swagger:model
type TokenPairResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// RefreshRequest ...
type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// AccessTokenResponse ...
// swagger:model
type AccessTokenResponse struct {
	Access string `json:"access"`
}

// User ...
// swagger:model
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// Post ...
// swagger:model
type Post struct {
	ID        uuid.UUID `json:"id"`
	User      User      `json:"user"`
	Image     string    `json:"image"`
	Caption   string    `json:"caption"`
	CreatedAt time.Time `json:"created_at"`
	Likes     int       `json:"like_count"`
	// Liked is true if the caller likes the post.
	Liked bool `json:"liked"`
}

// CreateCommentRequest ...
type CreateCommentRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// Comment ...
// swagger:model
type Comment struct {
	ID        uuid.UUID `json:"id"`
	PostID    uuid.UUID `json:"post_id"`
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ListCommentsResponse ...
// swagger:model
type ListCommentsResponse struct {
	Comments []Comment `json:"comments"`
	// Message is set when the post has no comments.
	Message string `json:"message,omitempty"`
}

// Profile ...
// swagger:model
type Profile struct {
	User     User    `json:"user"`
	Image    string  `json:"image"`
	Birthday *string `json:"birthday"`
	Bio      *string `json:"bio"`
	Location string  `json:"location"`
}

// UpdateProfileRequest ...
type UpdateProfileRequest struct {
	Bio      *string `json:"bio"`
	Location *string `json:"location" validate:"omitempty,max=50"`
	Birthday *string `json:"birthday" validate:"omitempty,datetime=2006-01-02"`
}

// UserResponse is a public page of a user.
// swagger:model
type UserResponse struct {
	Profile     Profile `json:"profile"`
	PostsCount  int     `json:"posts_count"`
	Followers   int     `json:"followers"`
	Following   int     `json:"following"`
	IsFollowing bool    `json:"is_following"`
	Posts       []Post  `json:"posts"`
}

// FollowRequest ...
type FollowRequest struct {
	User string `json:"user" validate:"required"`
}

// FollowResponse ...
// swagger:model
type FollowResponse struct {
	Following bool `json:"following"`
	Followers int  `json:"followers"`
}

func (s server) toPostDTO(p *entities.Post, liked bool) Post {
	return Post{
		ID: p.ID,
		User: User{
			ID:       p.UserID,
			Username: p.Username,
		},
		Image:     s.mediaURL + p.Image,
		Caption:   p.Caption,
		CreatedAt: p.CreatedAt,
		Likes:     p.LikeCount,
		Liked:     liked,
	}
}

func (s server) toPostsDTO(pp []*entities.Post, liked map[uuid.UUID]bool) []Post {
	out := make([]Post, len(pp))
	for i, v := range pp {
		out[i] = s.toPostDTO(v, liked[v.ID])
	}

	return out
}

func toCommentDTO(c *entities.Comment) Comment {
	return Comment{
		ID:        c.ID,
		PostID:    c.PostID,
		UserID:    c.UserID,
		Username:  c.Username,
		Text:      c.Text,
		CreatedAt: c.CreatedAt,
	}
}

func (s server) toProfileDTO(p *entities.Profile) Profile {
	var birthday *string
	if p.Birthday != nil {
		v := p.Birthday.Format(dateLayout)
		birthday = &v
	}

	return Profile{
		User: User{
			ID:       p.UserID,
			Username: p.Username,
		},
		Image:    s.mediaURL + p.Image,
		Birthday: birthday,
		Bio:      p.Bio,
		Location: p.Location,
	}
}
