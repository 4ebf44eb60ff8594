package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/memsafe/errors"
	"github.com/wippyai/memsafe/memory"
)

func newStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	s, err := NewStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLogin(t *testing.T) {
	s := newStore(t, Config{})

	sess, info, err := s.Login("alice", "secret")
	require.NoError(t, err)

	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "alice", info.Username)
	assert.False(t, info.IsAdmin)
	assert.Len(t, info.Raw, memory.UserSize)
	assert.Equal(t, sess.ID, s.Current())

	_, checked, err := s.CheckUser(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, info.Address, checked.Address)
}

func TestLogin_UsernameClamped(t *testing.T) {
	s := newStore(t, Config{})

	_, info, err := s.Login("a_very_long_username_indeed", "pw")
	require.NoError(t, err)
	assert.Equal(t, "a_very_long_use", info.Username)
	assert.Len(t, info.Username, memory.UsernameSize-1)
}

func TestLogin_PasswordOverflowRejected(t *testing.T) {
	s := newStore(t, Config{})
	before := s.Memory().Bytes()
	snapshots := s.Memory().SnapshotCount()

	payloads := []string{
		"secret0123456789876543210",
		"secret0123456789\x01\x00\x00\x00",
		strings.Repeat("A", 16),
	}
	for _, pw := range payloads {
		_, _, err := s.Login("alice", pw)
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindOutOfBounds), "got %v", err)
	}

	assert.Equal(t, before, s.Memory().Bytes(), "rejected logins must not touch memory")
	assert.Equal(t, snapshots, s.Memory().SnapshotCount())
	assert.Empty(t, s.Sessions())
	assert.Empty(t, s.Memory().Allocations())
}

func TestLogin_LongestPasswordFits(t *testing.T) {
	s := newStore(t, Config{})

	_, info, err := s.Login("alice", strings.Repeat("p", 15))
	require.NoError(t, err)
	assert.False(t, info.IsAdmin)
	assert.Equal(t, byte(0), info.Raw[memory.PasswordOffset+15])
}

func TestLogin_ReleasesPreviousUser(t *testing.T) {
	s := newStore(t, Config{})

	first, _, err := s.Login("alice", "one")
	require.NoError(t, err)
	second, _, err := s.Login("bob", "two")
	require.NoError(t, err)

	_, _, err = s.CheckUser(first.ID)
	assert.True(t, errors.IsKind(err, errors.KindDangling), "got %v", err)

	_, info, err := s.CheckUser(second.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", info.Username)
	assert.Len(t, s.Memory().Allocations(), 1)
}

func TestLogoutCorruptCheck(t *testing.T) {
	s := newStore(t, Config{})

	sess, info, err := s.Login("alice", "secret")
	require.NoError(t, err)

	addr, err := s.Logout()
	require.NoError(t, err)
	assert.Equal(t, info.Address, addr)

	_, _, err = s.CheckUser("")
	assert.True(t, errors.IsKind(err, errors.KindDangling), "got %v", err)

	res, err := s.Corrupt()
	require.NoError(t, err)
	assert.True(t, res.Reused, "first fit should reuse the freed slot")
	assert.Equal(t, addr, res.Address)

	raw, err := s.Memory().Read(addr, memory.UserSize)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "CORRUPTED!!!"))

	// The reused bytes are never read through the stale session.
	got, user, err := s.CheckUser(sess.ID)
	assert.True(t, errors.IsKind(err, errors.KindDangling), "got %v", err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Empty(t, user.Username)
	assert.Nil(t, user.Raw)
}

func TestLogout_WithoutUser(t *testing.T) {
	s := newStore(t, Config{})

	_, err := s.Logout()
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))

	_, err = s.Corrupt()
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
}

func TestSecret(t *testing.T) {
	s := newStore(t, Config{Admins: []string{"root"}})

	_, err := s.Secret("")
	assert.True(t, errors.IsKind(err, errors.KindUnauthorized), "no session: %v", err)

	user, _, err := s.Login("alice", "secret")
	require.NoError(t, err)
	_, err = s.Secret(user.ID)
	assert.True(t, errors.IsKind(err, errors.KindUnauthorized), "non-admin: %v", err)

	admin, info, err := s.Login("root", "toor")
	require.NoError(t, err)
	assert.True(t, info.IsAdmin)

	text, err := s.Secret(admin.ID)
	require.NoError(t, err)
	assert.Equal(t, Secret, text)

	_, err = s.Logout()
	require.NoError(t, err)
	_, err = s.Secret(admin.ID)
	assert.True(t, errors.IsKind(err, errors.KindUnauthorized), "after logout: %v", err)
}

func TestSessionLimit(t *testing.T) {
	s := newStore(t, Config{MaxSessions: 2})

	_, _, err := s.Login("a", "1")
	require.NoError(t, err)
	last, _, err := s.Login("b", "2")
	require.NoError(t, err)

	_, _, err = s.Login("c", "3")
	assert.True(t, errors.IsKind(err, errors.KindAllocation), "got %v", err)

	require.NoError(t, s.Expire(last.ID))
	assert.Empty(t, s.Current())
	_, _, err = s.Login("c", "3")
	assert.NoError(t, err)
}

func TestExpire_Unknown(t *testing.T) {
	s := newStore(t, Config{})
	err := s.Expire("missing")
	assert.True(t, errors.IsKind(err, errors.KindNotFound))

	_, _, err = s.CheckUser("missing")
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestSessions_Order(t *testing.T) {
	s := newStore(t, Config{})

	a, _, _ := s.Login("a", "1")
	b, _, _ := s.Login("b", "2")

	list := s.Sessions()
	require.Len(t, list, 2)
	ids := []string{list[0].ID, list[1].ID}
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)
}

func TestNewStore_TooSmall(t *testing.T) {
	_, err := NewStore(Config{MemorySize: 16})
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
}
