// Package postgres is implementation of storage interface.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/tribune/internal/entities"
	"github.com/Decentr-net/tribune/internal/storage"
)

var log = logrus.WithField("layer", "storage").WithField("package", "postgres")
var errBeginCalledWithinTx = errors.New("can not run InTx in tx")

const (
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"
)

type pg struct {
	ext sqlx.ExtContext
}

type userDTO struct {
	ID           uuid.UUID `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
}

type profileDTO struct {
	UserID   uuid.UUID  `db:"user_id"`
	Username string     `db:"username"`
	Image    string     `db:"profile_img"`
	Birthday *time.Time `db:"birthday"`
	Bio      *string    `db:"bio"`
	Location string     `db:"location"`
}

type postDTO struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	Username  string    `db:"username"`
	Image     string    `db:"image"`
	Caption   string    `db:"caption"`
	CreatedAt time.Time `db:"created_at"`
	LikeCount int       `db:"like_count"`
}

type commentDTO struct {
	ID        uuid.UUID `db:"id"`
	PostID    uuid.UUID `db:"post_id"`
	UserID    uuid.UUID `db:"user_id"`
	Username  string    `db:"username"`
	Text      string    `db:"text"`
	CreatedAt time.Time `db:"created_at"`
}

// New creates new instance of pg.
func New(db *sql.DB) storage.Storage {
	return pg{
		ext: sqlx.NewDb(db, "postgres"),
	}
}

func (s pg) InTx(ctx context.Context, f func(s storage.Storage) error) error {
	db, ok := s.ext.(*sqlx.DB)
	if !ok {
		return errBeginCalledWithinTx
	}

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to create tx: %w", err)
	}

	if err := f(pg{ext: tx}); err != nil {
		if err := tx.Rollback(); err != nil {
			log.WithError(err).Error("failed to rollback tx")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}

	return nil
}

func (s pg) Ping(ctx context.Context) error {
	db, ok := s.ext.(*sqlx.DB)
	if !ok {
		return nil
	}

	return db.PingContext(ctx)
}

func (s pg) CreateUser(ctx context.Context, u *entities.User) error {
	if _, err := sqlx.NamedExecContext(ctx, s.ext, `
			INSERT INTO users(id, username, password_hash, is_active, created_at)
			VALUES(:id, :username, :password_hash, :is_active, :created_at)
		`, userDTO{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt.UTC(),
	}); err != nil {
		return wrapError(err)
	}

	return nil
}

func (s pg) GetUser(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	return s.getUser(ctx, `SELECT id, username, password_hash, is_active, created_at FROM users WHERE id = $1`, id)
}

func (s pg) GetUserByUsername(ctx context.Context, username string) (*entities.User, error) {
	return s.getUser(ctx, `SELECT id, username, password_hash, is_active, created_at FROM users WHERE username = $1`, username)
}

func (s pg) getUser(ctx context.Context, query string, arg interface{}) (*entities.User, error) {
	var u userDTO

	if err := sqlx.GetContext(ctx, s.ext, &u, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return &entities.User{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
	}, nil
}

func (s pg) GetOrCreateProfile(ctx context.Context, userID uuid.UUID) (*entities.Profile, error) {
	if _, err := s.ext.ExecContext(ctx, `
			INSERT INTO profile(user_id, profile_img) VALUES($1, $2) ON CONFLICT(user_id) DO NOTHING
		`, userID, entities.DefaultProfileImage,
	); err != nil {
		if isPQError(err, foreignKeyViolation) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to exec: %w", err)
	}

	var p profileDTO

	if err := sqlx.GetContext(ctx, s.ext, &p, `
			SELECT p.user_id, u.username, p.profile_img, p.birthday, p.bio, p.location
			FROM profile p
			JOIN users u ON u.id = p.user_id
			WHERE p.user_id = $1
		`, userID,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return &entities.Profile{
		UserID:   p.UserID,
		Username: p.Username,
		Image:    p.Image,
		Birthday: p.Birthday,
		Bio:      p.Bio,
		Location: p.Location,
	}, nil
}

func (s pg) UpdateProfile(ctx context.Context, userID uuid.UUID, p *storage.UpdateProfileParams) error {
	var birthday *time.Time
	if p.Birthday != nil {
		v := p.Birthday.UTC()
		birthday = &v
	}

	res, err := s.ext.ExecContext(ctx, `
			UPDATE profile SET
				profile_img = COALESCE($2::TEXT, profile_img),
				birthday = COALESCE($3::TIMESTAMP, birthday),
				bio = COALESCE($4::TEXT, bio),
				location = COALESCE($5::VARCHAR, location)
			WHERE user_id = $1
		`, userID, p.Image, birthday, p.Bio, p.Location,
	)
	if err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	if c, _ := res.RowsAffected(); c == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s pg) CreatePost(ctx context.Context, p *entities.Post) error {
	if _, err := sqlx.NamedExecContext(ctx, s.ext, `
			INSERT INTO post(id, user_id, image, caption, created_at, like_count)
			VALUES(:id, :user_id, :image, :caption, :created_at, 0)
		`, postDTO{
		ID:        p.ID,
		UserID:    p.UserID,
		Image:     p.Image,
		Caption:   p.Caption,
		CreatedAt: p.CreatedAt.UTC(),
	}); err != nil {
		return wrapError(err)
	}

	return nil
}

func (s pg) GetPost(ctx context.Context, id uuid.UUID) (*entities.Post, error) {
	var p postDTO

	if err := sqlx.GetContext(ctx, s.ext, &p, `
			SELECT p.id, p.user_id, u.username, p.image, p.caption, p.created_at, p.like_count
			FROM post p
			JOIN users u ON u.id = p.user_id
			WHERE p.id = $1
		`, id,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return toPost(&p), nil
}

func (s pg) ListPosts(ctx context.Context, p *storage.ListPostsParams) ([]*entities.Post, error) {
	query := `
		SELECT p.id, p.user_id, u.username, p.image, p.caption, p.created_at, p.like_count
		FROM post p
		JOIN users u ON u.id = p.user_id
	`
	var args []interface{}

	if p != nil && p.Owner != nil {
		query += ` WHERE p.user_id = $1`
		args = append(args, *p.Owner)
	}

	query += ` ORDER BY p.created_at DESC, p.id`

	var pp []*postDTO

	if err := sqlx.SelectContext(ctx, s.ext, &pp, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	out := make([]*entities.Post, len(pp))
	for i, v := range pp {
		out[i] = toPost(v)
	}

	return out, nil
}

func (s pg) LockPost(ctx context.Context, id uuid.UUID) error {
	var v uuid.UUID

	if err := sqlx.GetContext(ctx, s.ext, &v, `SELECT id FROM post WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}

		return fmt.Errorf("failed to query: %w", err)
	}

	return nil
}

func (s pg) GetLiked(ctx context.Context, userID uuid.UUID, ids ...uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var liked []uuid.UUID

	if err := sqlx.SelectContext(ctx, s.ext, &liked, `
			SELECT post_id FROM post_like WHERE user_id = $1 AND post_id = ANY($2::UUID[])
		`, userID, pq.Array(uuidsToStrings(ids)),
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	for _, v := range liked {
		out[v] = true
	}

	return out, nil
}

func (s pg) CreateLike(ctx context.Context, postID, userID uuid.UUID, timestamp time.Time) error {
	if _, err := s.ext.ExecContext(ctx, `
			INSERT INTO post_like(post_id, user_id, created_at) VALUES($1, $2, $3)
		`, postID, userID, timestamp.UTC(),
	); err != nil {
		return wrapError(err)
	}

	return nil
}

func (s pg) DeleteLike(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	res, err := s.ext.ExecContext(ctx, `DELETE FROM post_like WHERE post_id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to exec: %w", err)
	}

	c, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return c > 0, nil
}

func (s pg) AddLikes(ctx context.Context, postID uuid.UUID, delta int) (int, error) {
	var count int

	if err := sqlx.GetContext(ctx, s.ext, &count, `
			UPDATE post SET like_count = like_count + $2 WHERE id = $1 RETURNING like_count
		`, postID, delta,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, storage.ErrNotFound
		}

		return 0, fmt.Errorf("failed to exec: %w", err)
	}

	return count, nil
}

func (s pg) CreateComment(ctx context.Context, c *entities.Comment) error {
	if _, err := sqlx.NamedExecContext(ctx, s.ext, `
			INSERT INTO comment(id, post_id, user_id, text, created_at)
			VALUES(:id, :post_id, :user_id, :text, :created_at)
		`, commentDTO{
		ID:        c.ID,
		PostID:    c.PostID,
		UserID:    c.UserID,
		Text:      c.Text,
		CreatedAt: c.CreatedAt.UTC(),
	}); err != nil {
		if isPQError(err, foreignKeyViolation) {
			return storage.ErrNotFound
		}

		return wrapError(err)
	}

	return nil
}

func (s pg) ListComments(ctx context.Context, postID uuid.UUID) ([]*entities.Comment, error) {
	var cc []*commentDTO

	if err := sqlx.SelectContext(ctx, s.ext, &cc, `
			SELECT c.id, c.post_id, c.user_id, u.username, c.text, c.created_at
			FROM comment c
			JOIN users u ON u.id = c.user_id
			WHERE c.post_id = $1
			ORDER BY c.created_at, c.id
		`, postID,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	out := make([]*entities.Comment, len(cc))
	for i, v := range cc {
		out[i] = &entities.Comment{
			ID:        v.ID,
			PostID:    v.PostID,
			UserID:    v.UserID,
			Username:  v.Username,
			Text:      v.Text,
			CreatedAt: v.CreatedAt,
		}
	}

	return out, nil
}

func (s pg) Follow(ctx context.Context, follower, followee uuid.UUID) (bool, error) {
	res, err := s.ext.ExecContext(ctx, `
			INSERT INTO follow(follower_id, followee_id) VALUES($1, $2) ON CONFLICT DO NOTHING
		`, follower, followee,
	)
	if err != nil {
		if isPQError(err, foreignKeyViolation) {
			return false, storage.ErrNotFound
		}

		return false, fmt.Errorf("failed to exec: %w", err)
	}

	c, _ := res.RowsAffected()

	return c > 0, nil
}

func (s pg) Unfollow(ctx context.Context, follower, followee uuid.UUID) (bool, error) {
	res, err := s.ext.ExecContext(ctx, `
			DELETE FROM follow WHERE follower_id = $1 AND followee_id = $2
		`, follower, followee,
	)
	if err != nil {
		return false, fmt.Errorf("failed to exec: %w", err)
	}

	c, _ := res.RowsAffected()

	return c > 0, nil
}

func (s pg) IsFollowing(ctx context.Context, follower, followee uuid.UUID) (bool, error) {
	var exists bool

	if err := sqlx.GetContext(ctx, s.ext, &exists, `
			SELECT EXISTS(SELECT 1 FROM follow WHERE follower_id = $1 AND followee_id = $2)
		`, follower, followee,
	); err != nil {
		return false, fmt.Errorf("failed to query: %w", err)
	}

	return exists, nil
}

func (s pg) GetFollowStats(ctx context.Context, userID uuid.UUID) (*entities.FollowStats, error) {
	var stats struct {
		Followers int `db:"followers"`
		Following int `db:"following"`
	}

	if err := sqlx.GetContext(ctx, s.ext, &stats, `
			SELECT
				(SELECT COUNT(*) FROM follow WHERE followee_id = $1) AS followers,
				(SELECT COUNT(*) FROM follow WHERE follower_id = $1) AS following
		`, userID,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return &entities.FollowStats{
		Followers: stats.Followers,
		Following: stats.Following,
	}, nil
}

func toPost(p *postDTO) *entities.Post {
	return &entities.Post{
		ID:        p.ID,
		UserID:    p.UserID,
		Username:  p.Username,
		Image:     p.Image,
		Caption:   p.Caption,
		CreatedAt: p.CreatedAt,
		LikeCount: p.LikeCount,
	}
}

func wrapError(err error) error {
	switch {
	case isPQError(err, uniqueViolation):
		return fmt.Errorf("%w: %s", storage.ErrConflict, err.Error())
	case isPQError(err, foreignKeyViolation):
		return fmt.Errorf("%w: %s", storage.ErrInvalidReference, err.Error())
	default:
		return fmt.Errorf("failed to exec: %w", err)
	}
}

func isPQError(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}

func uuidsToStrings(ids []uuid.UUID) []string {
	m := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]string, 0, len(ids))

	for _, v := range ids {
		if _, ok := m[v]; !ok {
			m[v] = struct{}{}
			out = append(out, v.String())
		}
	}

	return out
}
