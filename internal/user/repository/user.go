package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"codequest/internal/common/cache"
	"codequest/internal/common/db"
	"codequest/internal/user/model"
)

const (
	defaultUserTTL      = 10 * time.Minute
	defaultUserEmptyTTL = 2 * time.Minute
	userKeyPrefix       = "user:id:"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	Badges(ctx context.Context, userID string) ([]string, error)
	CompletedChallengeIDs(ctx context.Context, userID string) ([]string, error)
	// Invalidate drops the cached row after an out-of-band write,
	// such as a ledger award.
	Invalidate(ctx context.Context, id string) error
}

type MySQLUserRepository struct {
	db       db.Database
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

func NewUserRepository(database db.Database, cacheClient cache.Cache) UserRepository {
	return &MySQLUserRepository{
		db:       database,
		cache:    cacheClient,
		ttl:      defaultUserTTL,
		emptyTTL: defaultUserEmptyTTL,
	}
}

func (r *MySQLUserRepository) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.Exec(ctx,
		"INSERT INTO users (id, username, password_hash, xp, level, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		user.ID, user.Username, user.PasswordHash, user.XP, user.Level, user.CreatedAt)
	return err
}

func (r *MySQLUserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	if r.cache != nil {
		user, err := cache.GetWithCached[*model.User](
			ctx,
			r.cache,
			userKey(id),
			cache.JitterTTL(r.ttl),
			cache.JitterTTL(r.emptyTTL),
			func(u *model.User) bool { return u == nil },
			marshalUser,
			unmarshalUser,
			func(ctx context.Context) (*model.User, error) {
				u, err := r.getByIDFromDB(ctx, id)
				if errors.Is(err, ErrUserNotFound) {
					return nil, nil
				}
				return u, err
			},
		)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrUserNotFound
		}
		return user, nil
	}
	return r.getByIDFromDB(ctx, id)
}

func (r *MySQLUserRepository) getByIDFromDB(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRow(ctx,
		"SELECT id, username, password_hash, xp, level, created_at FROM users WHERE id = ?", id)
	return scanUser(row)
}

func (r *MySQLUserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	row := r.db.QueryRow(ctx,
		"SELECT id, username, password_hash, xp, level, created_at FROM users WHERE username = ?", username)
	return scanUser(row)
}

func (r *MySQLUserRepository) Badges(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		"SELECT badge FROM user_badges WHERE user_id = ? ORDER BY awarded_at ASC, badge ASC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	badges := []string{}
	for rows.Next() {
		var badge string
		if err := rows.Scan(&badge); err != nil {
			return nil, err
		}
		badges = append(badges, badge)
	}
	return badges, rows.Err()
}

func (r *MySQLUserRepository) CompletedChallengeIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		"SELECT challenge_id FROM completed_challenges WHERE user_id = ? ORDER BY completed_at ASC, challenge_id ASC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *MySQLUserRepository) Invalidate(ctx context.Context, id string) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Del(ctx, userKey(id))
}

func scanUser(row db.Scanner) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.XP, &u.Level, &u.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func userKey(id string) string {
	return userKeyPrefix + id
}

func marshalUser(u *model.User) string {
	// PasswordHash is excluded from the JSON tag set, so cached rows
	// need an explicit shape that keeps it.
	data, err := json.Marshal(cachedUser{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		XP:           u.XP,
		Level:        u.Level,
		CreatedAt:    u.CreatedAt,
	})
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalUser(data string) (*model.User, error) {
	if data == "" {
		return nil, nil
	}
	var c cachedUser
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, err
	}
	return &model.User{
		ID:           c.ID,
		Username:     c.Username,
		PasswordHash: c.PasswordHash,
		XP:           c.XP,
		Level:        c.Level,
		CreatedAt:    c.CreatedAt,
	}, nil
}

type cachedUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	XP           int64     `json:"xp"`
	Level        int       `json:"level"`
	CreatedAt    time.Time `json:"created_at"`
}
