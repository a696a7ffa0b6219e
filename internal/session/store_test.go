package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"member-portal/internal/common/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "nested", "session.json")),
		"redis":  NewRedisStoreWithClient(rdb, "test:", 0),
	}
}

func TestStore_Contract(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.Get(ctx, KeyUser)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set(ctx, KeyUser, `{"firstName":"Ada"}`))
			require.NoError(t, store.Set(ctx, KeyAccessToken, "first"))
			require.NoError(t, store.Set(ctx, KeyAccessToken, "second"))

			v, ok, err := store.Get(ctx, KeyAccessToken)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "second", v)

			require.NoError(t, store.Delete(ctx, KeyAccessToken, KeyUser, "never-set"))
			_, ok, err = store.Get(ctx, KeyAccessToken)
			require.NoError(t, err)
			assert.False(t, ok)
			_, ok, err = store.Get(ctx, KeyUser)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Delete(ctx))
		})
	}
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	require.NoError(t, NewFileStore(path).Set(ctx, KeyPendingUser, `{"userId":"u1","plan":"lifetime-basic"}`))

	v, ok, err := NewFileStore(path).Get(ctx, KeyPendingUser)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"userId":"u1","plan":"lifetime-basic"}`, v)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, _, err := NewFileStore(path).Get(context.Background(), KeyUser)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse session file")
}

func TestRedisStore_PrefixAndTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(config.RedisConfig{Address: mr.Addr(), KeyPrefix: "portal:session:", TTL: 60})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Set(ctx, KeyLegacyToken, "tok"))

	raw, err := mr.Get("portal:session:authToken")
	require.NoError(t, err)
	assert.Equal(t, "tok", raw)
	assert.Equal(t, 60*time.Second, mr.TTL("portal:session:authToken"))

	mr.FastForward(61 * time.Second)
	_, ok, err := store.Get(ctx, KeyLegacyToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_CommandsWithMock(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	store := NewRedisStoreWithClient(db, "p:", time.Hour)

	mock.ExpectSet("p:COOKIES_USER_ACCESS_TOKEN", "tok", time.Hour).SetVal("OK")
	mock.ExpectGet("p:COOKIES_USER_ACCESS_TOKEN").SetVal("tok")
	mock.ExpectDel("p:COOKIES_USER_ACCESS_TOKEN", "p:authToken", "p:user").SetVal(1)
	mock.ExpectGet("p:user").RedisNil()

	require.NoError(t, store.Set(ctx, KeyAccessToken, "tok"))
	v, ok, err := store.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)
	require.NoError(t, store.Delete(ctx, KeyAccessToken, KeyLegacyToken, KeyUser))
	_, ok, err = store.Get(ctx, KeyUser)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_ErrorsAreWrapped(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStoreWithClient(db, "", 0)
	mock.ExpectGet("user").SetErr(assert.AnError)

	_, _, err := store.Get(context.Background(), KeyUser)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestOpen(t *testing.T) {
	s, err := Open(config.SessionConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(config.SessionConfig{Backend: "file", FilePath: filepath.Join(t.TempDir(), "s.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = Open(config.SessionConfig{Backend: "redis"})
	require.Error(t, err)

	_, err = Open(config.SessionConfig{Backend: "cookie"})
	require.Error(t, err)
}
