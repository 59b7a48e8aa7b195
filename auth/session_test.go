package auth_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/webbridge/auth"
	"github.com/BaSui01/webbridge/testutil/fixtures"
)

func TestSessionStore_Path(t *testing.T) {
	store := auth.NewSessionStore("/tmp/sessions", "Claude", nil)
	assert.Equal(t, "/tmp/sessions/google_auth_claude.json", store.Path())
}

func TestSessionStore_SaveAndLoad(t *testing.T) {
	store := auth.NewSessionStore(t.TempDir(), "claude", zaptest.NewLogger(t))
	state := fixtures.StorageState()

	require.NoError(t, store.Save(state))
	require.True(t, store.IsValid())

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Cookies, 1)
	assert.Equal(t, "SID", loaded.Cookies[0].Name)
	require.Len(t, loaded.Origins, 1)
	assert.Equal(t, "https://claude.ai", loaded.Origins[0].Origin)
}

func TestSessionStore_IsValid_MissingFile(t *testing.T) {
	store := auth.NewSessionStore(t.TempDir(), "chatgpt", nil)
	assert.False(t, store.IsValid())
}

func TestSessionStore_IsValid_CorruptedFile(t *testing.T) {
	dir := t.TempDir()
	store := auth.NewSessionStore(dir, "claude", zaptest.NewLogger(t))

	path := filepath.Join(dir, "google_auth_claude.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	assert.False(t, store.IsValid())
}

func TestSessionStore_IsValid_NoCookiesKey(t *testing.T) {
	dir := t.TempDir()
	store := auth.NewSessionStore(dir, "claude", nil)

	path := filepath.Join(dir, "google_auth_claude.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"origins":[]}`), 0o600))
	assert.False(t, store.IsValid())
}

func TestSessionStore_Clear(t *testing.T) {
	store := auth.NewSessionStore(t.TempDir(), "claude", nil)
	require.NoError(t, store.Save(fixtures.StorageState()))
	require.True(t, store.IsValid())

	require.NoError(t, store.Clear())
	assert.False(t, store.IsValid())

	// 重复清理不报错
	require.NoError(t, store.Clear())
}

func TestStorageState_RestoreScript(t *testing.T) {
	state := fixtures.StorageState()
	script := state.RestoreScript()
	assert.Contains(t, script, "https://claude.ai")
	assert.Contains(t, script, "localStorage.setItem")

	empty := &auth.StorageState{}
	assert.Empty(t, empty.RestoreScript())
}
