// Package grant keeps content access grants in Redis.
//
// A grant is a hash with two fields: state ("issued" or "claimed") and payload
// (the JSON-encoded grant). Claim flips issued to claimed atomically so only one
// reader streams the content at a time. Consume deletes the key after a successful
// delivery and Release returns a claimed grant to issued when delivery fails.
package grant

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cyberprint/internal/model"
)

var (
	// ErrNotFound means the token is unknown, consumed, or past its TTL.
	ErrNotFound = errors.New("grant not found")
	// ErrInUse means another request holds the claim.
	ErrInUse = errors.New("grant in use")
)

const (
	stateIssued  = "issued"
	stateClaimed = "claimed"
	tokenBytes   = 32
)

// claimScript returns {1, payload} on success, {0} when the key is missing and {2}
// when it is already claimed.
var claimScript = redis.NewScript(`
local state = redis.call("HGET", KEYS[1], "state")
if not state then
  return {0}
end
if state ~= "issued" then
  return {2}
end
redis.call("HSET", KEYS[1], "state", "claimed")
return {1, redis.call("HGET", KEYS[1], "payload")}
`)

var releaseScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "state") == "claimed" then
  redis.call("HSET", KEYS[1], "state", "issued")
  return 1
end
return 0
`)

// Store persists grants. It is safe for concurrent use.
type Store struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewStore returns a grant store using keys under "grant:".
func NewStore(client *redis.Client) *Store {
	return &Store{client: client, prefix: "grant:", now: time.Now}
}

// NewToken returns an unguessable URL-safe token.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate grant token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *Store) key(token string) string { return s.prefix + token }

// Save stores g in the issued state until g.ExpiresAt.
func (s *Store) Save(ctx context.Context, g model.ContentAccessGrant) error {
	ttl := g.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("save grant: already expired")
	}
	payload, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode grant: %w", err)
	}
	key := s.key(g.Token)
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, "state", stateIssued, "payload", string(payload))
		p.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save grant: %w", err)
	}
	return nil
}

// Claim marks the grant as being read and returns it.
func (s *Store) Claim(ctx context.Context, token string) (*model.ContentAccessGrant, error) {
	res, err := claimScript.Run(ctx, s.client, []string{s.key(token)}).Slice()
	if err != nil {
		return nil, fmt.Errorf("claim grant: %w", err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("claim grant: empty reply")
	}
	code, _ := res[0].(int64)
	switch code {
	case 0:
		return nil, ErrNotFound
	case 2:
		return nil, ErrInUse
	}
	if len(res) < 2 {
		return nil, fmt.Errorf("claim grant: missing payload")
	}
	raw, _ := res[1].(string)
	var g model.ContentAccessGrant
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		return nil, fmt.Errorf("decode grant: %w", err)
	}
	return &g, nil
}

// Release returns a claimed grant to issued. Releasing an unknown token is a no-op.
func (s *Store) Release(ctx context.Context, token string) error {
	if err := releaseScript.Run(ctx, s.client, []string{s.key(token)}).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release grant: %w", err)
	}
	return nil
}

// Consume deletes the grant so the token can never be used again.
func (s *Store) Consume(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("consume grant: %w", err)
	}
	return nil
}
