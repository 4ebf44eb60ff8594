// Package session keeps authenticated users in bounds-checked memory and
// hands sessions generation-checked handles instead of raw addresses.
//
// Every user record lives in a simulated heap laid out like
//
//	struct { char username[16]; char password[16]; int is_admin; }
//
// Field writes go through fixed regions, so an oversized password is
// rejected before it can reach is_admin. A session refers to its user
// through a resource handle; once the user is released, the handle stops
// resolving and the session fails as dangling, even after the freed slot
// is reused.
package session

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/memsafe/bounds"
	"github.com/wippyai/memsafe/errors"
	"github.com/wippyai/memsafe/memory"
	"github.com/wippyai/memsafe/resource"
)

const (
	// DefaultMaxSessions bounds the session table.
	DefaultMaxSessions = 10

	// DefaultMemorySize is the simulated heap size in bytes.
	DefaultMemorySize = 512

	userTypeID uint32 = 1
)

// Config configures a Store.
type Config struct {
	// Admins lists usernames that log in with is_admin set.
	Admins []string

	// MemorySize is the simulated heap size. 0 means DefaultMemorySize.
	MemorySize uint32

	// MaxSessions bounds concurrent sessions. 0 means DefaultMaxSessions.
	MaxSessions int
}

// Session binds an id to a user handle.
type Session struct {
	Created time.Time
	ID      string
	User    resource.Handle
}

// UserInfo is a decoded user record.
type UserInfo struct {
	Username string
	Raw      []byte
	Address  uint32
	IsAdmin  bool
}

// CorruptResult reports where the reallocation landed.
type CorruptResult struct {
	Address uint32
	Target  uint32
	Reused  bool
}

// user is the owned record behind a user handle. Releasing it frees its
// memory.
type user struct {
	mem      *memory.Memory
	username *bounds.Region
	password *bounds.Region
	address  uint32
}

func newUser(mem *memory.Memory, address uint32) *user {
	return &user{
		mem:      mem,
		address:  address,
		username: bounds.NewRegion(mem, "username", address+memory.UsernameOffset, memory.UsernameSize),
		password: bounds.NewRegion(mem, "password", address+memory.PasswordOffset, memory.PasswordSize),
	}
}

// Drop frees the record's memory.
func (u *user) Drop() {
	if err := u.mem.Free(u.address); err != nil {
		Logger().Warn("free user failed", zap.Uint32("address", u.address), zap.Error(err))
	}
}

func (u *user) info() (UserInfo, error) {
	view := memory.UserView{Mem: u.mem, Base: u.address}
	name, err := view.Username()
	if err != nil {
		return UserInfo{}, err
	}
	adm, err := view.IsAdmin()
	if err != nil {
		return UserInfo{}, err
	}
	raw, err := u.mem.Read(u.address, memory.UserSize)
	if err != nil {
		return UserInfo{}, err
	}
	return UserInfo{Username: name, Raw: raw, Address: u.address, IsAdmin: adm != 0}, nil
}

// Store holds users and sessions. It is safe for concurrent use.
type Store struct {
	mem         *memory.Memory
	table       *resource.UnifiedTable
	users       *resource.Typed[*user]
	sessions    map[string]*Session
	admins      map[string]bool
	current     string
	corrupted   []uint32
	maxSessions int
	freed       uint32
	hasFreed    bool
	active      resource.Handle
	mu          sync.Mutex
}

// NewStore creates an empty store.
func NewStore(cfg Config) (*Store, error) {
	if cfg.MemorySize == 0 {
		cfg.MemorySize = DefaultMemorySize
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.MemorySize < memory.UserSize {
		return nil, errors.InvalidInput(errors.PhaseConfig,
			fmt.Sprintf("memory size %d cannot hold one user (%d bytes)", cfg.MemorySize, memory.UserSize))
	}

	// The whole memory is heap; sessions live in Go.
	mem, err := memory.New(memory.Config{
		Size:           cfg.MemorySize,
		StackStart:     cfg.MemorySize,
		BoundsChecking: true,
	})
	if err != nil {
		return nil, err
	}

	table := resource.NewTable()
	admins := make(map[string]bool, len(cfg.Admins))
	for _, a := range cfg.Admins {
		admins[a] = true
	}

	return &Store{
		mem:         mem,
		table:       table,
		users:       resource.NewTyped[*user](table, userTypeID),
		sessions:    make(map[string]*Session),
		admins:      admins,
		maxSessions: cfg.MaxSessions,
	}, nil
}

// Memory returns the simulated heap holding user records.
func (s *Store) Memory() *memory.Memory {
	return s.mem
}

// Login creates a user record and a session for it. The username is
// clamped to 15 bytes; a password that does not fit its 16 byte field with
// its terminator is rejected and leaves memory unchanged. The previously
// authenticated user is released.
func (s *Store) Login(username, password string) (Session, UserInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) >= s.maxSessions {
		return Session{}, UserInfo{}, errors.AllocationFailed(errors.PhaseServe,
			fmt.Sprintf("session table full (%d sessions)", s.maxSessions))
	}

	if len(password)+1 > memory.PasswordSize {
		err := errors.New(errors.PhaseBounds, errors.KindOutOfBounds).
			Path("user", "password").
			Value(len(password)).
			Detail("password is %d bytes, buffer holds %d including terminator", len(password), memory.PasswordSize).
			Build()
		Logger().Warn("login rejected", zap.String("username", clamp(username)), zap.Error(err))
		return Session{}, UserInfo{}, err
	}

	addr, err := s.mem.Allocate(memory.UserSize)
	if err != nil {
		return Session{}, UserInfo{}, errors.Wrap(errors.PhaseServe, errors.KindAllocation, err, "allocate user")
	}
	u := newUser(s.mem, addr)

	if err := s.fill(u, username, password); err != nil {
		u.Drop()
		return Session{}, UserInfo{}, err
	}

	// There can only be one.
	if s.active != 0 {
		s.releaseActive()
	}

	h := s.users.Insert(u)
	if h == 0 {
		u.Drop()
		return Session{}, UserInfo{}, errors.Closed(errors.PhaseServe, "session store")
	}
	s.active = h

	sess := &Session{ID: uuid.NewString(), User: h, Created: time.Now()}
	s.sessions[sess.ID] = sess
	s.current = sess.ID

	info, err := u.info()
	if err != nil {
		return Session{}, UserInfo{}, err
	}

	Logger().Info("login",
		zap.String("session", sess.ID),
		zap.String("username", info.Username),
		zap.Uint32("address", addr),
		zap.Bool("admin", info.IsAdmin),
	)
	return *sess, info, nil
}

func clamp(username string) string {
	if len(username) > memory.UsernameSize-1 {
		return username[:memory.UsernameSize-1]
	}
	return username
}

// fill writes a zeroed record. Caller holds s.mu.
func (s *Store) fill(u *user, username, password string) error {
	if err := s.mem.WriteBytes(u.address, make([]byte, memory.UserSize), fmt.Sprintf("memset(user@%d, 0)", u.address)); err != nil {
		return err
	}
	name := clamp(username)
	if err := u.username.Write(append([]byte(name), 0)); err != nil {
		return err
	}
	if err := u.password.Write(append([]byte(password), 0)); err != nil {
		return err
	}
	var admin int32
	if s.admins[name] {
		admin = 1
	}
	return s.mem.WriteInt32(u.address+memory.IsAdminOffset, admin)
}

// releaseActive drops the authenticated user. Caller holds s.mu.
func (s *Store) releaseActive() {
	u, ok := s.users.Get(s.active)
	if ok {
		s.freed = u.address
		s.hasFreed = true
	}
	s.users.Remove(s.active)
	s.active = 0
}

// Logout releases the authenticated user and returns the address it held.
// Sessions that referenced it become dangling.
func (s *Store) Logout() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users.Get(s.active)
	if s.active == 0 || !ok {
		return 0, errors.InvalidInput(errors.PhaseServe, "no user to logout")
	}
	addr := u.address
	s.releaseActive()

	Logger().Info("logout", zap.Uint32("address", addr))
	return addr, nil
}

// session resolves id, or the current session when id is empty.
// Caller holds s.mu.
func (s *Store) session(id string) (*Session, error) {
	if id == "" {
		id = s.current
	}
	if id == "" {
		return nil, errors.NotFound(errors.PhaseServe, "session", "current")
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, errors.NotFound(errors.PhaseServe, "session", id)
	}
	return sess, nil
}

// CheckUser returns the session and its user. A session whose user was
// released fails with a dangling fault and reads no memory.
func (s *Store) CheckUser(id string) (Session, UserInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(id)
	if err != nil {
		return Session{}, UserInfo{}, err
	}
	u, ok := s.users.Get(sess.User)
	if !ok {
		return *sess, UserInfo{}, errors.Dangling("session "+sess.ID, "user")
	}
	info, err := u.info()
	if err != nil {
		return *sess, UserInfo{}, err
	}
	return *sess, info, nil
}

// Corrupt allocates a new user-sized block, which first fit places in the
// slot of the last released user, and fills it with 0x42 and "CORRUPTED!!!".
func (s *Store) Corrupt() (CorruptResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasFreed {
		return CorruptResult{}, errors.InvalidInput(errors.PhaseServe,
			"no freed user to corrupt: login, logout, then corrupt")
	}

	addr, err := s.mem.Allocate(memory.UserSize)
	if err != nil {
		return CorruptResult{}, errors.Wrap(errors.PhaseServe, errors.KindAllocation, err, "allocate corrupt block")
	}

	fill := bytes.Repeat([]byte{0x42}, memory.UserSize)
	copy(fill, "CORRUPTED!!!\x00")
	if err := s.mem.WriteBytes(addr, fill, fmt.Sprintf("corrupt(%d)", addr)); err != nil {
		return CorruptResult{}, err
	}
	s.corrupted = append(s.corrupted, addr)

	res := CorruptResult{Address: addr, Target: s.freed, Reused: addr == s.freed}
	Logger().Info("corrupt",
		zap.Uint32("address", addr),
		zap.Uint32("target", s.freed),
		zap.Bool("reused", res.Reused),
	)
	return res, nil
}

// Secret is the text an admin session may read.
const Secret = "MATT WAS A WORDPRESS DEVELOPER AT ONE TIME! SILENCE IS GOLDEN."

// Secret returns the admin page for session id.
func (s *Store) Secret(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(id)
	if err != nil {
		return "", errors.New(errors.PhaseServe, errors.KindUnauthorized).
			Cause(err).
			Detail("no valid session, login first").
			Build()
	}
	u, ok := s.users.Get(sess.User)
	if !ok {
		return "", errors.New(errors.PhaseServe, errors.KindUnauthorized).
			Cause(errors.Dangling("session "+sess.ID, "user")).
			Detail("user no longer exists, login again").
			Build()
	}
	info, err := u.info()
	if err != nil {
		return "", err
	}
	if !info.IsAdmin {
		return "", errors.Unauthorized("you are not an admin")
	}
	return Secret, nil
}

// Expire removes session id. The user it referenced is unaffected.
func (s *Store) Expire(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return errors.NotFound(errors.PhaseServe, "session", id)
	}
	delete(s.sessions, id)
	if s.current == id {
		s.current = ""
	}
	return nil
}

// Sessions returns every session, oldest first.
func (s *Store) Sessions() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}

// Current returns the id of the most recent login, or "".
func (s *Store) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close releases every user.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = 0
	s.sessions = map[string]*Session{}
	s.current = ""
	return s.table.Close()
}
