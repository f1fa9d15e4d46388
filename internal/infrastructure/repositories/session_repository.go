package repositories

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/you/bokohub/domain"
)

const sessionTokenBytes = 32

// SessionStoreImpl implements domain.SessionStore using Redis. A record's
// redis TTL follows its own ExpiresAt. Tokens of authenticated sessions are
// also indexed in a per-user set so they can be revoked together.
type SessionStoreImpl struct {
	client     *redis.Client
	prefix     string
	userPrefix string
	now        func() time.Time
}

// NewSessionStore creates a new session store
func NewSessionStore(client *redis.Client) *SessionStoreImpl {
	return &SessionStoreImpl{
		client:     client,
		prefix:     "session:",
		userPrefix: "session_user:",
		now:        time.Now,
	}
}

// Get implements domain.SessionStore
func (r *SessionStoreImpl) Get(ctx context.Context, token string) (*domain.SessionRecord, error) {
	if token == "" {
		return nil, domain.ErrSessionNotFound
	}

	key := r.prefix + token
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}

	var session domain.SessionRecord
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	session.Token = token

	if session.Expired(r.now()) {
		r.client.Del(ctx, key)
		return nil, domain.ErrSessionExpired
	}

	return &session, nil
}

// Put implements domain.SessionStore. A record without a token gets one here,
// and a record that asked for rotation is moved to a fresh token.
func (r *SessionStoreImpl) Put(ctx context.Context, session *domain.SessionRecord) error {
	if session.RotationRequested() {
		return r.Rotate(ctx, session)
	}
	if session.Token == "" {
		token, err := newSessionToken()
		if err != nil {
			return err
		}
		session.Token = token
		return r.write(ctx, session, true)
	}
	return r.write(ctx, session, false)
}

// Rotate moves a record to a fresh token and deletes the old key
func (r *SessionStoreImpl) Rotate(ctx context.Context, session *domain.SessionRecord) error {
	old := session.Token
	token, err := newSessionToken()
	if err != nil {
		return err
	}
	session.Token = token
	if err := r.write(ctx, session, true); err != nil {
		session.Token = old
		return err
	}
	if old != "" {
		if err := r.client.Del(ctx, r.prefix+old).Err(); err != nil {
			return fmt.Errorf("failed to delete rotated session: %w", err)
		}
	}
	return nil
}

// Destroy implements domain.SessionStore
func (r *SessionStoreImpl) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return r.client.Del(ctx, r.prefix+token).Err()
}

// DestroyUser implements domain.SessionStore. Index entries for tokens that
// already rotated or expired are dropped along with the live ones.
func (r *SessionStoreImpl) DestroyUser(ctx context.Context, userID uint) error {
	indexKey := r.userKey(userID)
	tokens, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}
	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, r.prefix+token)
	}
	keys = append(keys, indexKey)
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to destroy user sessions: %w", err)
	}
	return nil
}

func (r *SessionStoreImpl) userKey(userID uint) string {
	return fmt.Sprintf("%s%d", r.userPrefix, userID)
}

func (r *SessionStoreImpl) write(ctx context.Context, session *domain.SessionRecord, create bool) error {
	ttl := session.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return domain.ErrSessionExpired
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	key := r.prefix + session.Token
	if create {
		ok, err := r.client.SetNX(ctx, key, data, ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("session token collision")
		}
	} else {
		// XX keeps a concurrent write from resurrecting a destroyed session.
		ok, err := r.client.SetXX(ctx, key, data, ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrSessionNotFound
		}
	}

	if session.AuthenticatedUserID != 0 {
		indexKey := r.userKey(session.AuthenticatedUserID)
		_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SAdd(ctx, indexKey, session.Token)
			pipe.Expire(ctx, indexKey, ttl)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to index session: %w", err)
		}
	}

	session.MarkClean()
	return nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
