// Package impl is implementation of service interface.
package impl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/Decentr-net/tribune/internal/entities"
	"github.com/Decentr-net/tribune/internal/service"
	"github.com/Decentr-net/tribune/internal/storage"
)

var log = logrus.WithField("layer", "service").WithField("package", "impl")

// maxToggleAttempts limits retries of a like toggle which failed because of a concurrent write.
const maxToggleAttempts = 3

// service ...
type srv struct {
	s storage.Storage
}

// New creates new instance of service.
func New(s storage.Storage) service.Service {
	return srv{
		s: s,
	}
}

func (s srv) Authenticate(ctx context.Context, username, password string) (*entities.User, error) {
	u, err := s.s.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, service.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, service.ErrInvalidCredentials
	}

	if !u.IsActive {
		return nil, service.ErrInvalidCredentials
	}

	return u, nil
}

func (s srv) GetActiveUser(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	u, err := s.s.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !u.IsActive {
		return nil, service.ErrNotFound
	}

	return u, nil
}

func (s srv) ToggleLike(ctx context.Context, userID, postID uuid.UUID) (int, error) {
	if postID == uuid.Nil {
		return 0, service.ErrInvalidRequest
	}

	for i := 1; i <= maxToggleAttempts; i++ {
		count, err := s.toggleLike(ctx, userID, postID)

		switch {
		case err == nil:
			return count, nil
		case errors.Is(err, storage.ErrNotFound):
			return 0, service.ErrNotFound
		case errors.Is(err, storage.ErrConflict):
			log.WithError(err).WithFields(logrus.Fields{
				"post":    postID,
				"user":    userID,
				"attempt": i,
			}).Warn("like toggle conflicted")
		default:
			return 0, fmt.Errorf("failed to toggle like: %w", err)
		}

		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}

	return 0, service.ErrConflict
}

// toggleLike removes user's like if it exists and creates one otherwise.
// Post's row is locked, so concurrent toggles of the post are serialized.
func (s srv) toggleLike(ctx context.Context, userID, postID uuid.UUID) (int, error) {
	var count int

	err := s.s.InTx(ctx, func(tx storage.Storage) error {
		if err := tx.LockPost(ctx, postID); err != nil {
			return fmt.Errorf("failed to lock post: %w", err)
		}

		deleted, err := tx.DeleteLike(ctx, postID, userID)
		if err != nil {
			return fmt.Errorf("failed to delete like: %w", err)
		}

		delta := -1
		if !deleted {
			if err := tx.CreateLike(ctx, postID, userID, time.Now()); err != nil {
				return fmt.Errorf("failed to create like: %w", err)
			}
			delta = 1
		}

		if count, err = tx.AddLikes(ctx, postID, delta); err != nil {
			return fmt.Errorf("failed to update likes count: %w", err)
		}

		return nil
	})

	return count, err
}

func (s srv) GetLiked(ctx context.Context, userID uuid.UUID, postIDs ...uuid.UUID) (map[uuid.UUID]bool, error) {
	liked, err := s.s.GetLiked(ctx, userID, postIDs...)
	if err != nil {
		return nil, fmt.Errorf("failed to get liked posts: %w", err)
	}

	return liked, nil
}

func (s srv) CreatePost(ctx context.Context, owner uuid.UUID, image, caption string) (*entities.Post, error) {
	p := entities.Post{
		ID:        uuid.New(),
		UserID:    owner,
		Image:     image,
		Caption:   caption,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.s.CreatePost(ctx, &p); err != nil {
		if errors.Is(err, storage.ErrInvalidReference) {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	return s.GetPost(ctx, p.ID)
}

func (s srv) GetPost(ctx context.Context, id uuid.UUID) (*entities.Post, error) {
	p, err := s.s.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return p, nil
}

func (s srv) ListPosts(ctx context.Context) ([]*entities.Post, error) {
	pp, err := s.s.ListPosts(ctx, &storage.ListPostsParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	return pp, nil
}

func (s srv) ListComments(ctx context.Context, postID uuid.UUID) ([]*entities.Comment, error) {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}

	cc, err := s.s.ListComments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	return cc, nil
}

func (s srv) CreateComment(ctx context.Context, userID, postID uuid.UUID, text string) (*entities.Comment, error) {
	if text == "" {
		return nil, service.ErrInvalidRequest
	}

	u, err := s.GetActiveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	c := entities.Comment{
		ID:        uuid.New(),
		PostID:    postID,
		UserID:    u.ID,
		Username:  u.Username,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.s.CreateComment(ctx, &c); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	return &c, nil
}

func (s srv) GetProfile(ctx context.Context, userID uuid.UUID) (*entities.Profile, error) {
	p, err := s.s.GetOrCreateProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return p, nil
}

func (s srv) UpdateProfile(ctx context.Context, userID uuid.UUID, upd *service.ProfileUpdate) (*entities.Profile, error) {
	if _, err := s.GetProfile(ctx, userID); err != nil {
		return nil, err
	}

	if err := s.s.UpdateProfile(ctx, userID, &storage.UpdateProfileParams{
		Image:    upd.Image,
		Birthday: upd.Birthday,
		Bio:      upd.Bio,
		Location: upd.Location,
	}); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return s.GetProfile(ctx, userID)
}

func (s srv) GetUserView(ctx context.Context, viewer uuid.UUID, username string) (*service.UserView, error) {
	u, err := s.getActiveUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	p, err := s.GetProfile(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	pp, err := s.s.ListPosts(ctx, &storage.ListPostsParams{Owner: &u.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	stats, err := s.s.GetFollowStats(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get follow stats: %w", err)
	}

	var following bool
	if viewer != u.ID {
		if following, err = s.s.IsFollowing(ctx, viewer, u.ID); err != nil {
			return nil, fmt.Errorf("failed to check following: %w", err)
		}
	}

	return &service.UserView{
		Profile:   p,
		Posts:     pp,
		Stats:     *stats,
		Following: following,
	}, nil
}

func (s srv) ToggleFollow(ctx context.Context, follower uuid.UUID, followee string) (*service.FollowResult, error) {
	u, err := s.getActiveUserByUsername(ctx, followee)
	if err != nil {
		return nil, err
	}

	if u.ID == follower {
		return nil, service.ErrSelfFollow
	}

	var res service.FollowResult

	if err := s.s.InTx(ctx, func(tx storage.Storage) error {
		deleted, err := tx.Unfollow(ctx, follower, u.ID)
		if err != nil {
			return fmt.Errorf("failed to unfollow: %w", err)
		}

		if !deleted {
			if _, err := tx.Follow(ctx, follower, u.ID); err != nil {
				return fmt.Errorf("failed to follow: %w", err)
			}
		}

		stats, err := tx.GetFollowStats(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("failed to get follow stats: %w", err)
		}

		res = service.FollowResult{
			Following: !deleted,
			Followers: stats.Followers,
		}

		return nil
	}); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, service.ErrNotFound
		}
		return nil, err
	}

	return &res, nil
}

func (s srv) getActiveUserByUsername(ctx context.Context, username string) (*entities.User, error) {
	u, err := s.s.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !u.IsActive {
		return nil, service.ErrNotFound
	}

	return u, nil
}
