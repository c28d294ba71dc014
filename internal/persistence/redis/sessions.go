// Package redis stores member sessions in Redis so several ledger processes
// can share sign-ins. Each session is a hash that expires with the session.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/example/library-ledger/internal/persistence"
)

const (
	defaultPrefix = "ledger:"
	sessionsIndex = "sessions"
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key; defaults to "ledger:".
	Prefix string
}

// SessionStore implements persistence.SessionStore on Redis.
type SessionStore struct {
	client *goredis.Client
	prefix string
}

// Connect dials Redis and verifies the connection with PING.
func Connect(ctx context.Context, opts Options) (*SessionStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}

	return NewSessionStore(client, opts.Prefix), nil
}

// NewSessionStore wraps an existing client.
func NewSessionStore(client *goredis.Client, prefix string) *SessionStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &SessionStore{client: client, prefix: prefix}
}

// Close closes the underlying client.
func (s *SessionStore) Close() error {
	return s.client.Close()
}

// Ping checks that Redis is reachable.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *SessionStore) sessionKey(token string) string {
	return s.prefix + "session:" + token
}

func (s *SessionStore) indexKey() string {
	return s.prefix + sessionsIndex
}

// CreateSession stores the session hash with an expiry matching ExpiresAt.
func (s *SessionStore) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	session.Token = strings.TrimSpace(session.Token)
	if session.ID == "" || session.Token == "" || session.MemberID == 0 {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	session.CreatedAt = session.CreatedAt.UTC()
	session.ExpiresAt = session.ExpiresAt.UTC()

	key := s.sessionKey(session.Token)
	created, err := s.client.HSetNX(ctx, key, "id", session.ID).Result()
	if err != nil {
		return persistence.Session{}, fmt.Errorf("redis: create session: %w", err)
	}
	if !created {
		return persistence.Session{}, persistence.ErrDuplicate
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"member_id", strconv.FormatInt(session.MemberID, 10),
			"created_at", session.CreatedAt.Format(time.RFC3339Nano),
			"expires_at", session.ExpiresAt.Format(time.RFC3339Nano),
		)
		pipe.ExpireAt(ctx, key, session.ExpiresAt)
		pipe.SAdd(ctx, s.indexKey(), session.Token)
		return nil
	})
	if err != nil {
		s.client.Del(ctx, key)
		return persistence.Session{}, fmt.Errorf("redis: create session: %w", err)
	}

	return session, nil
}

// GetSession loads a session by token.
func (s *SessionStore) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	fields, err := s.client.HGetAll(ctx, s.sessionKey(token)).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return persistence.Session{}, fmt.Errorf("redis: get session: %w", err)
	}
	if len(fields) == 0 || fields["member_id"] == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	session := persistence.Session{ID: fields["id"], Token: token}
	if session.MemberID, err = strconv.ParseInt(fields["member_id"], 10, 64); err != nil {
		return persistence.Session{}, fmt.Errorf("redis: session member_id: %w", err)
	}
	if session.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		return persistence.Session{}, fmt.Errorf("redis: session created_at: %w", err)
	}
	if session.ExpiresAt, err = time.Parse(time.RFC3339Nano, fields["expires_at"]); err != nil {
		return persistence.Session{}, fmt.Errorf("redis: session expires_at: %w", err)
	}
	return session, nil
}

// DeleteSession removes a session by token.
func (s *SessionStore) DeleteSession(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)

	var del *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		del = pipe.Del(ctx, s.sessionKey(token))
		pipe.SRem(ctx, s.indexKey(), token)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: delete session: %w", err)
	}
	if del.Val() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// DeleteAllSessions removes every session listed in the index.
func (s *SessionStore) DeleteAllSessions(ctx context.Context) error {
	tokens, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis: list sessions: %w", err)
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, s.sessionKey(token))
	}
	keys = append(keys, s.indexKey())

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: delete sessions: %w", err)
	}
	return nil
}

// DeleteExpiredSessions prunes index entries whose hashes Redis already expired
// and removes sessions that expire on or before reference.
func (s *SessionStore) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	tokens, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis: list sessions: %w", err)
	}

	for _, token := range tokens {
		session, err := s.GetSession(ctx, token)
		switch {
		case errors.Is(err, persistence.ErrNotFound):
			if err := s.client.SRem(ctx, s.indexKey(), token).Err(); err != nil {
				return fmt.Errorf("redis: prune session index: %w", err)
			}
		case err != nil:
			return err
		case !session.ExpiresAt.After(reference):
			if err := s.DeleteSession(ctx, token); err != nil && !errors.Is(err, persistence.ErrNotFound) {
				return err
			}
		}
	}
	return nil
}
