package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/catalog-backend/pkg/config"
)

const refreshTokenBytes = 32

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	errAccessIDRequired    = errors.New("access id is required")
)

// Store is the redis surface sessions need. GetDel makes rotation single use.
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	GetDel(ctx context.Context, key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker is what the auth middleware needs.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// Session is the refresh state bound to one access token id. RefreshToken is
// only populated on the value returned to the client; redis keeps its hash.
type Session struct {
	AccessID     string
	RefreshToken string
	UserID       uuid.UUID
}

type record struct {
	UserID      uuid.UUID `json:"uid"`
	RefreshHash string    `json:"rth"`
	IssuedAt    int64     `json:"iat"`
}

// Manager issues, rotates and revokes refresh sessions keyed by access jti.
type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewManager checks that refresh sessions outlive the access tokens they back.
func NewManager(store Store, cfg config.JWTConfig) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	ttl := cfg.RefreshTokenTTL()
	accessTTL := time.Duration(cfg.ExpirationMinutes) * time.Minute
	if ttl <= accessTTL {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, accessTTL)
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// Start opens a session for the user under a fresh access id.
func (m *Manager) Start(ctx context.Context, userID uuid.UUID) (Session, error) {
	if userID == uuid.Nil {
		return Session{}, errors.New("user id is required")
	}
	token, err := newRefreshToken()
	if err != nil {
		return Session{}, err
	}
	sess := Session{AccessID: NewAccessID(), RefreshToken: token, UserID: userID}

	payload, err := json.Marshal(record{UserID: userID, RefreshHash: hashToken(token), IssuedAt: m.now().Unix()})
	if err != nil {
		return Session{}, err
	}
	if err := m.store.Set(ctx, m.store.AccessSessionKey(sess.AccessID), string(payload), m.ttl); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

// Rotate consumes the session under oldAccessID and opens a new one for the
// same user. The old session is gone afterwards even when the presented
// token is wrong, so a leaked access id cannot be brute forced.
func (m *Manager) Rotate(ctx context.Context, oldAccessID, presented string) (Session, error) {
	if strings.TrimSpace(oldAccessID) == "" || strings.TrimSpace(presented) == "" {
		return Session{}, ErrInvalidRefreshToken
	}

	raw, err := m.store.GetDel(ctx, m.store.AccessSessionKey(oldAccessID))
	if errors.Is(err, redislib.Nil) {
		return Session{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return Session{}, fmt.Errorf("claim session: %w", err)
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.UserID == uuid.Nil {
		return Session{}, ErrInvalidRefreshToken
	}
	if subtle.ConstantTimeCompare([]byte(rec.RefreshHash), []byte(hashToken(presented))) != 1 {
		return Session{}, ErrInvalidRefreshToken
	}
	return m.Start(ctx, rec.UserID)
}

// Revoke ends the session behind accessID. Unknown ids are not an error.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return errAccessIDRequired
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, errAccessIDRequired
	}
	return m.store.Exists(ctx, m.store.AccessSessionKey(accessID))
}

// NewAccessID produces the jti that doubles as the session key.
func NewAccessID() string {
	return uuid.NewString()
}

func newRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
