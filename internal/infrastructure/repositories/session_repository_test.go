package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/bokohub/domain"
)

func TestSessionStoreImpl_PutIssuesDistinctTokens(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	first := storeNewSession(t, store)
	second := storeNewSession(t, store)

	assert.NotEmpty(t, first.Token)
	assert.NotEqual(t, first.Token, second.Token)
	assert.GreaterOrEqual(t, len(first.Token), 43, "token should carry 32 random bytes")
	assert.False(t, first.Dirty())

	ttl := client.TTL(ctx, "session:"+first.Token).Val()
	assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 2)
}

func TestSessionStoreImpl_GetPut(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(t *testing.T, store *SessionStoreImpl) string
		expectedError error
		validate      func(t *testing.T, session *domain.SessionRecord)
	}{
		{
			name: "round trip keeps pending state",
			setup: func(t *testing.T, store *SessionStoreImpl) string {
				session := storeNewSession(t, store)
				session.BeginPending("nonce-1", &domain.UserAccount{ID: 4, Username: "alice"}, time.Now().Add(5*time.Minute))
				require.NoError(t, store.Put(context.Background(), session))
				return session.Token
			},
			validate: func(t *testing.T, session *domain.SessionRecord) {
				assert.Equal(t, "nonce-1", session.PendingStateNonce)
				assert.Equal(t, uint(4), session.PendingUserID)
				assert.Equal(t, "alice", session.PendingUsername)
				assert.False(t, session.PendingExpiresAt.IsZero())
			},
		},
		{
			name: "unknown token",
			setup: func(t *testing.T, store *SessionStoreImpl) string {
				return "missing"
			},
			expectedError: domain.ErrSessionNotFound,
		},
		{
			name: "empty token",
			setup: func(t *testing.T, store *SessionStoreImpl) string {
				return ""
			},
			expectedError: domain.ErrSessionNotFound,
		},
		{
			name: "record past expiry is rejected and removed",
			setup: func(t *testing.T, store *SessionStoreImpl) string {
				session := storeNewSession(t, store)
				store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
				return session.Token
			},
			expectedError: domain.ErrSessionExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := setupTestRedis(t)
			store := NewSessionStore(client)

			token := tt.setup(t, store)
			session, err := store.Get(context.Background(), token)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, session)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, token, session.Token)
			tt.validate(t, session)
		})
	}
}

func TestSessionStoreImpl_PutAssignsToken(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	session := domain.NewSessionRecord(time.Now(), time.Hour)
	session.SetCaptcha("ABCD")
	require.NoError(t, store.Put(ctx, session))

	assert.NotEmpty(t, session.Token)
	assert.False(t, session.Dirty())

	loaded, err := store.Get(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, "ABCD", loaded.CaptchaText)
}

func TestSessionStoreImpl_PutDoesNotResurrectDestroyed(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	session := storeNewSession(t, store)
	require.NoError(t, store.Destroy(ctx, session.Token))

	session.Touch(time.Now(), time.Hour)
	assert.ErrorIs(t, store.Put(ctx, session), domain.ErrSessionNotFound)

	_, err := store.Get(ctx, session.Token)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionStoreImpl_Rotate(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	session := storeNewSession(t, store)
	oldToken := session.Token

	session.Authenticate(&domain.UserAccount{ID: 1, Username: "alice"})
	require.NoError(t, store.Put(ctx, session))
	assert.False(t, session.RotationRequested())

	assert.NotEqual(t, oldToken, session.Token)
	_, err := store.Get(ctx, oldToken)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	loaded, err := store.Get(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, uint(1), loaded.AuthenticatedUserID)
}

func TestSessionStoreImpl_TTLFollowsRollingExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	session := storeNewSession(t, store)

	mr.FastForward(50 * time.Minute)
	session.Touch(time.Now(), time.Hour)
	require.NoError(t, store.Put(ctx, session))

	mr.FastForward(30 * time.Minute)
	_, err := store.Get(ctx, session.Token)
	assert.NoError(t, err, "touched session should outlive the original TTL")
}

func TestSessionStoreImpl_Destroy(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	session := storeNewSession(t, store)

	require.NoError(t, store.Destroy(ctx, session.Token))
	require.NoError(t, store.Destroy(ctx, ""))

	assert.Equal(t, int64(0), client.Exists(ctx, "session:"+session.Token).Val())
}

func TestSessionStoreImpl_DestroyUser(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	alice := &domain.UserAccount{ID: 1, Username: "alice"}
	var aliceTokens []string
	for i := 0; i < 2; i++ {
		session := storeNewSession(t, store)
		session.Authenticate(alice)
		require.NoError(t, store.Put(ctx, session))
		aliceTokens = append(aliceTokens, session.Token)
	}

	bob := storeNewSession(t, store)
	bob.Authenticate(&domain.UserAccount{ID: 2, Username: "bob"})
	require.NoError(t, store.Put(ctx, bob))

	anonymous := storeNewSession(t, store)

	require.NoError(t, store.DestroyUser(ctx, alice.ID))

	for _, token := range aliceTokens {
		_, err := store.Get(ctx, token)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	}
	_, err := store.Get(ctx, bob.Token)
	assert.NoError(t, err)
	_, err = store.Get(ctx, anonymous.Token)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), client.Exists(ctx, "session_user:1").Val())

	require.NoError(t, store.DestroyUser(ctx, 42), "a user without sessions is not an error")
}
