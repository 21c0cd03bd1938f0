package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/TrackView/internal/cache"
	"github.com/BearBump/TrackView/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrValidation         = errors.New("email and password are required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrRateLimited        = errors.New("too many sign-in attempts")
)

type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetDriver(ctx context.Context, userID string) (*models.Driver, error)
}

type PasswordHasher interface {
	Compare(hash, password string) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Config struct {
	SessionTTL  time.Duration
	LoginLimit  int64
	LoginWindow time.Duration
}

type Service struct {
	users    UserRepository
	sessions cache.BytesCache
	limiter  RateLimiter
	hasher   PasswordHasher
	tokens   *TokenSigner
	cfg      Config

	nowFn func() time.Time
}

// New wires the sign-in service. limiter may be nil to disable attempt
// limiting.
func New(users UserRepository, sessions cache.BytesCache, limiter RateLimiter, hasher PasswordHasher, tokens *TokenSigner, cfg Config) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	if cfg.LoginWindow <= 0 {
		cfg.LoginWindow = time.Minute
	}
	return &Service{
		users:    users,
		sessions: sessions,
		limiter:  limiter,
		hasher:   hasher,
		tokens:   tokens,
		cfg:      cfg,
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

func sessionKey(id string) string {
	return "session:" + id
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignInWithPassword checks the credentials and opens a session. The returned
// token is what the client keeps; it resolves back to the session through
// GetSession.
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", ErrValidation
	}

	if s.limiter != nil && s.cfg.LoginLimit > 0 {
		allowed, n, err := s.limiter.Allow(ctx, "rl:login:"+email, s.cfg.LoginLimit, s.cfg.LoginWindow)
		if err != nil {
			return nil, "", err
		}
		if !allowed {
			slog.Warn("login rate limit exceeded", "email", email, "count", n)
			return nil, "", ErrRateLimited
		}
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if u == nil {
		return nil, "", ErrInvalidCredentials
	}
	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	displayName := u.Email
	d, err := s.users.GetDriver(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}
	if d != nil && d.DisplayName != nil && strings.TrimSpace(*d.DisplayName) != "" {
		displayName = *d.DisplayName
	}

	now := s.nowFn()
	sess := &models.Session{
		ID:          uuid.NewString(),
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: displayName,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.SessionTTL),
	}

	b, err := json.Marshal(sess)
	if err != nil {
		return nil, "", errors.Wrap(err, "marshal session")
	}
	if err := s.sessions.Set(ctx, sessionKey(sess.ID), b, s.cfg.SessionTTL); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Sign(sess.ID, sess.UserID, sess.CreatedAt, sess.ExpiresAt)
	if err != nil {
		return nil, "", err
	}

	slog.Info("user signed in", "user_id", sess.UserID, "session_id", sess.ID)
	return sess, token, nil
}

// GetSession resolves a token to its live session. Bad, expired or revoked
// tokens yield nil without an error; only store failures are errors.
func (s *Service) GetSession(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, nil
	}
	id, err := s.tokens.Parse(token)
	if err != nil {
		slog.Debug("reject session token", "error", err.Error())
		return nil, nil
	}

	b, ok, err := s.sessions.Get(ctx, sessionKey(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var sess models.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		slog.Warn("drop undecodable session", "session_id", id, "error", err.Error())
		return nil, nil
	}
	if sess.Expired(s.nowFn()) {
		return nil, nil
	}
	return &sess, nil
}

// SignOut revokes the session behind token. Unparsable tokens are ignored.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	id, err := s.tokens.Parse(token)
	if err != nil {
		slog.Debug("sign out with bad token", "error", err.Error())
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionKey(id)); err != nil {
		return err
	}
	slog.Info("user signed out", "session_id", id)
	return nil
}
