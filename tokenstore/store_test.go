package tokenstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	bs, err := OpenBoltStore(filepath.Join(dir, "tokens.db"), "alice")
	require.NoError(t, err)
	t.Cleanup(func() { bs.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(dir, "tokens.json"), "alice"),
		"bolt":   bs,
	}
}

func TestStore_Lifecycle(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			access, err := s.AccessToken()
			require.NoError(t, err)
			assert.Empty(t, access, "fresh store has no access token")

			require.NoError(t, s.SetTokens("access-1", "refresh-1"))
			access, _ = s.AccessToken()
			refresh, _ := s.RefreshToken()
			assert.Equal(t, "access-1", access)
			assert.Equal(t, "refresh-1", refresh)

			require.NoError(t, s.SetAccessToken("access-2"))
			access, _ = s.AccessToken()
			refresh, _ = s.RefreshToken()
			assert.Equal(t, "access-2", access)
			assert.Equal(t, "refresh-1", refresh, "setting access keeps refresh")

			require.NoError(t, s.RemoveAccessToken())
			access, _ = s.AccessToken()
			assert.Empty(t, access)

			require.NoError(t, s.SetRefreshToken("refresh-2"))
			refresh, _ = s.RefreshToken()
			assert.Equal(t, "refresh-2", refresh)

			require.NoError(t, s.RemoveRefreshToken())
			refresh, _ = s.RefreshToken()
			assert.Empty(t, refresh)
		})
	}
}

func TestStore_RemoveAllClearsBoth(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.SetTokens("a", "r"))
			require.NoError(t, s.RemoveAll())

			access, err := s.AccessToken()
			require.NoError(t, err)
			refresh, err := s.RefreshToken()
			require.NoError(t, err)
			assert.Empty(t, access)
			assert.Empty(t, refresh)

			// Idempotent on an already empty store.
			require.NoError(t, s.RemoveAll())
		})
	}
}

func TestFileStore_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")

	const profiles = 10
	var wg sync.WaitGroup

	wg.Add(profiles)
	for i := 0; i < profiles; i++ {
		go func(id int) {
			defer wg.Done()
			s := NewFileStore(path, fmt.Sprintf("profile-%d", id))
			err := s.SetTokens(fmt.Sprintf("access-%d", id), fmt.Sprintf("refresh-%d", id))
			if err != nil {
				t.Errorf("profile %d: failed to save tokens: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc fileDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Profiles, profiles)

	for i := 0; i < profiles; i++ {
		tok, ok := doc.Profiles[fmt.Sprintf("profile-%d", i)]
		if assert.True(t, ok, "profile %d missing", i) {
			assert.Equal(t, fmt.Sprintf("access-%d", i), tok.AccessToken)
		}
	}

	_, err = os.Stat(path + lockSuffix)
	assert.True(t, os.IsNotExist(err), "lock file left behind")
}

func TestFileStore_PreservesOtherProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	alice := NewFileStore(path, "alice")
	bob := NewFileStore(path, "bob")

	require.NoError(t, alice.SetTokens("alice-access", "alice-refresh"))
	require.NoError(t, bob.SetTokens("bob-access", "bob-refresh"))
	require.NoError(t, alice.RemoveAll())

	access, err := bob.AccessToken()
	require.NoError(t, err)
	assert.Equal(t, "bob-access", access)

	access, err = alice.AccessToken()
	require.NoError(t, err)
	assert.Empty(t, access)
}

func TestFileStore_FilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	s := NewFileStore(path, "")
	require.NoError(t, s.SetTokens("a", "r"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_CorruptFileIsReplacedOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s := NewFileStore(path, "alice")
	_, err := s.AccessToken()
	assert.Error(t, err, "reading a corrupt file reports it")

	require.NoError(t, s.RemoveAll())
	access, err := s.AccessToken()
	require.NoError(t, err)
	assert.Empty(t, access)
}

func TestBoltStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.db")

	s, err := OpenBoltStore(path, "alice")
	require.NoError(t, err)
	require.NoError(t, s.SetTokens("a", "r"))
	require.NoError(t, s.Close())

	s, err = OpenBoltStore(path, "alice")
	require.NoError(t, err)
	defer s.Close()

	access, err := s.AccessToken()
	require.NoError(t, err)
	assert.Equal(t, "a", access)
}

func TestExpiry(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	got, err := Expiry(signed)
	require.NoError(t, err)
	assert.True(t, got.Equal(exp), "got %v, want %v", got, exp)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = Expiry(noExp)
	assert.ErrorIs(t, err, ErrNoExpiry)

	_, err = Expiry("opaque-token")
	assert.Error(t, err)
}
