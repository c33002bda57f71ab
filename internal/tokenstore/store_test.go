package tokenstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjacniacki/neonrain/discord-bot-client/internal/config"
	"github.com/mjacniacki/neonrain/discord-bot-client/pkg/types"
)

func backends(t *testing.T) map[string]KV {
	t.Helper()
	dir := t.TempDir()

	fileKV, err := NewFileKV(filepath.Join(dir, "nested", "token.json"))
	require.NoError(t, err)

	sqliteKV, err := NewSQLiteKV(filepath.Join(dir, "token.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteKV.Close() })

	return map[string]KV{
		"memory": NewMemoryKV(),
		"file":   fileKV,
		"sqlite": sqliteKV,
	}
}

var testData = types.BotTokenData{
	Token:       "secret-token",
	BotID:       "123456789",
	BotUsername: "helper",
	BotAvatar:   "abc123",
}

func TestStore_Lifecycle(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := New(kv, zerolog.Nop())

			assert.False(t, store.HasToken(), "fresh store should be empty")
			_, ok := store.Identity()
			assert.False(t, ok)

			require.NoError(t, store.Save(testData))
			assert.True(t, store.HasToken())

			token, ok := store.Token()
			require.True(t, ok)
			assert.Equal(t, "secret-token", token)

			identity, ok := store.Identity()
			require.True(t, ok)
			assert.Equal(t, testData, *identity)

			require.NoError(t, store.Clear())
			assert.False(t, store.HasToken())
			_, ok = store.Identity()
			assert.False(t, ok)

			// Clear is idempotent
			require.NoError(t, store.Clear())
			assert.False(t, store.HasToken())

			// Saving after a clear makes the token visible again
			require.NoError(t, store.Save(testData))
			assert.True(t, store.HasToken())
		})
	}
}

func TestStore_MalformedIdentityReadsAsAbsent(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := New(kv, zerolog.Nop())
			require.NoError(t, kv.Set(TokenKey, "tok"))
			require.NoError(t, kv.Set(BotDataKey, "{not json"))

			identity, ok := store.Identity()
			assert.False(t, ok)
			assert.Nil(t, identity)
			assert.True(t, store.HasToken(), "token entry is independent of identity entry")
		})
	}
}

func TestStore_SaveRejectsEmptyToken(t *testing.T) {
	store := New(NewMemoryKV(), zerolog.Nop())
	assert.Error(t, store.Save(types.BotTokenData{BotID: "1"}))
	assert.False(t, store.HasToken())
}

func TestFileKV_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")

	first, err := NewFileKV(path)
	require.NoError(t, err)
	require.NoError(t, New(first, zerolog.Nop()).Save(testData))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := NewFileKV(path)
	require.NoError(t, err)
	identity, ok := New(second, zerolog.Nop()).Identity()
	require.True(t, ok)
	assert.Equal(t, "helper", identity.BotUsername)
}

func TestFileKV_CorruptFileIsReplacedOnSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	kv, err := NewFileKV(path)
	require.NoError(t, err)
	store := New(kv, zerolog.Nop())

	assert.False(t, store.HasToken())
	require.NoError(t, store.Save(testData))
	assert.True(t, store.HasToken())
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		cfg     config.ClientConfig
		wantErr bool
	}{
		{"memory", config.ClientConfig{TokenStore: "memory"}, false},
		{"file", config.ClientConfig{TokenStore: "file", TokenPath: filepath.Join(dir, "t.json")}, false},
		{"sqlite", config.ClientConfig{TokenStore: "sqlite", TokenPath: filepath.Join(dir, "t.db")}, false},
		{"unknown", config.ClientConfig{TokenStore: "etcd"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, closeFn, err := Open(&tt.cfg, zerolog.Nop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer closeFn()

			require.NoError(t, store.Save(testData))
			assert.True(t, store.HasToken())
		})
	}
}
