package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	chatdomain "github.com/boddenberg/sellernotes-bot-go/internal/chat/domain"
	"github.com/boddenberg/sellernotes-bot-go/internal/domain"
	"github.com/boddenberg/sellernotes-bot-go/internal/infra/resilience"
	"github.com/boddenberg/sellernotes-bot-go/internal/infra/session"
)

type store interface {
	Load(ctx context.Context, key string) (*chatdomain.Session, error)
	Save(ctx context.Context, sess *chatdomain.Session) error
	Delete(ctx context.Context, key string) error
}

func sampleSession() *chatdomain.Session {
	return &chatdomain.Session{
		Key:         "emulator:user-1",
		AccessToken: "tok",
		Dialog: &chatdomain.DialogState{
			Stage: chatdomain.StageSearch,
			Search: &chatdomain.SearchState{
				Stage:   chatdomain.SearchAwaitingChoice,
				Attempt: 2,
				Candidates: []domain.Customer{
					{ID: 1, Code: 1, Name: "Test customer", VAT: "ABCD"},
					{ID: 2, Code: 2, Name: "Test customer 2", VAT: "CZ123"},
				},
			},
		},
		UpdatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func exerciseStore(t *testing.T, s store) {
	ctx := context.Background()

	got, err := s.Load(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	want := sampleSession()
	require.NoError(t, s.Save(ctx, want))

	got, err = s.Load(ctx, want.Key)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// mutating a loaded copy must not leak into the store
	got.AccessToken = "changed"
	got.Dialog.Search.Candidates[0].Name = "changed"
	again, err := s.Load(ctx, want.Key)
	require.NoError(t, err)
	assert.Equal(t, "tok", again.AccessToken)
	assert.Equal(t, "Test customer", again.Dialog.Search.Candidates[0].Name)

	require.NoError(t, s.Delete(ctx, want.Key))
	got, err = s.Load(ctx, want.Key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore(t *testing.T) {
	s := session.NewMemoryStore(time.Minute)
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
	assert.Zero(t, s.Len())
}

func TestMemoryStore_Expires(t *testing.T) {
	s := session.NewMemoryStore(50 * time.Millisecond)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Save(context.Background(), sampleSession()))

	time.Sleep(100 * time.Millisecond)

	got, err := s.Load(context.Background(), "emulator:user-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	exerciseStore(t, session.NewRedisStore(client, time.Hour, zap.NewNop()))
}

func TestRedisStore_TTLAndPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := session.NewRedisStore(client, 30*time.Minute, zap.NewNop())
	require.NoError(t, s.Save(context.Background(), sampleSession()))

	key := session.KeyPrefix + "emulator:user-1"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 30*time.Minute, mr.TTL(key))

	mr.FastForward(31 * time.Minute)
	got, err := s.Load(context.Background(), "emulator:user-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_CorruptValue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, mr.Set(session.KeyPrefix+"k", "{not json"))

	core, logs := observer.New(zap.WarnLevel)
	s := session.NewRedisStore(client, time.Hour, zap.New(core))
	_, err := s.Load(context.Background(), "k")
	assert.Error(t, err)

	entries := logs.FilterMessage("corrupt session in redis").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "k", entries[0].ContextMap()["session"])
}

func TestRedisStore_SaveFailureLogged(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	core, logs := observer.New(zap.ErrorLevel)
	s := session.NewRedisStore(client, time.Hour, zap.New(core))
	mr.Close()

	err := s.Save(context.Background(), sampleSession())
	assert.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("session write failed").Len())
}

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := resilience.Config{MaxRetries: 1, InitialBackoff: 10 * time.Millisecond}

	client, err := session.ConnectRedis(context.Background(), "redis://"+mr.Addr()+"/0", cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	s := session.NewRedisStore(client, time.Hour, zap.NewNop())
	assert.NoError(t, s.Ping(context.Background()))
}

func TestConnectRedis_BadURL(t *testing.T) {
	_, err := session.ConnectRedis(context.Background(), "://nope", resilience.Config{}, zap.NewNop())
	assert.Error(t, err)
}
