package auth

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// ErrUnauthorized is returned for any token that cannot be resolved to a
// live session.
var ErrUnauthorized = errors.New("unauthorized")

// Authenticator resolves a session token to a user id. The credential and
// session lifecycle lives in the auth service; this side only validates.
type Authenticator interface {
	Resolve(ctx context.Context, token string) (int64, error)
}

// RedisAuthenticator decrypts the token to its payload and checks that the
// session key still exists in Redis.
type RedisAuthenticator struct {
	Client      *redis.Client
	RedisPrefix string
	Secret      string
}

func (a *RedisAuthenticator) Resolve(ctx context.Context, token string) (int64, error) {
	p, err := ParseToken(token, a.Secret)
	if err != nil {
		return 0, ErrUnauthorized
	}
	n, err := a.Client.Exists(ctx, a.RedisPrefix+token).Result()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrUnauthorized
	}
	return p.UserID, nil
}

// Static maps fixed tokens to user ids. Used by tests and dev mode.
type Static map[string]int64

func (s Static) Resolve(ctx context.Context, token string) (int64, error) {
	uid, ok := s[token]
	if !ok {
		return 0, ErrUnauthorized
	}
	return uid, nil
}
