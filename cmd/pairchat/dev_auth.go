package main

import (
	"context"
	"strconv"
	"strings"

	"pairchat/internal/auth"
)

// devAuthenticator accepts tokens of the form "uid:<n>". It exists so the
// memory-backed dev mode runs without Redis.
type devAuthenticator struct{}

func (devAuthenticator) Resolve(ctx context.Context, token string) (int64, error) {
	rest, ok := strings.CutPrefix(token, "uid:")
	if !ok {
		return 0, auth.ErrUnauthorized
	}
	uid, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || uid <= 0 {
		return 0, auth.ErrUnauthorized
	}
	return uid, nil
}
