package demo

import (
	"context"

	"github.com/wippyai/memsafe/errors"
	"github.com/wippyai/memsafe/session"
)

func sessionSection() Section {
	return Section{
		Name:  "session",
		Title: "Login server: overflow and dangling sessions, replayed safely",
		Examples: []Example{
			{Name: "password-overflow", Title: "Demo 1: oversized password cannot set is_admin", Run: sessionOverflow},
			{Name: "dangling-session", Title: "Demo 2: a session outliving its user", Run: sessionDangling},
		},
	}
}

func newDemoStore() (*session.Store, error) {
	return session.NewStore(session.Config{Admins: []string{"root"}})
}

func sessionOverflow(_ context.Context, n *Narrator) error {
	store, err := newDemoStore()
	if err != nil {
		return err
	}
	defer store.Close()

	for _, pw := range []string{
		"secret0123456789876543210",
		"secret0123456789\x01\x00\x00\x00",
	} {
		_, _, err := store.Login("alice", pw)
		if err := expectFault(n, err, errors.KindOutOfBounds, "login with a 16+ byte password"); err != nil {
			return err
		}
	}

	sess, user, err := store.Login("alice", "secret")
	if err != nil {
		return err
	}
	n.Printf("Logged in as %s at address %d, is_admin=%t", user.Username, user.Address, user.IsAdmin)

	_, err = store.Secret(sess.ID)
	if err := expectFault(n, err, errors.KindUnauthorized, "open the admin page as alice"); err != nil {
		return err
	}

	root, _, err := store.Login("root", "toor")
	if err != nil {
		return err
	}
	if _, err := store.Secret(root.ID); err != nil {
		return err
	}
	n.OK("Admin rights come from configuration only; no password can reach is_admin")
	return nil
}

func sessionDangling(_ context.Context, n *Narrator) error {
	store, err := newDemoStore()
	if err != nil {
		return err
	}
	defer store.Close()

	sess, user, err := store.Login("alice", "secret")
	if err != nil {
		return err
	}
	n.Printf("1. login: session %s -> user at %d", sess.ID, user.Address)

	if _, _, err := store.CheckUser(sess.ID); err != nil {
		return err
	}
	n.Printf("2. check-user: %s", user.Username)

	freed, err := store.Logout()
	if err != nil {
		return err
	}
	n.Printf("3. logout: user at %d released, the session still exists", freed)

	res, err := store.Corrupt()
	if err != nil {
		return err
	}
	n.Printf("4. corrupt: new block at %d (reused freed slot: %t)", res.Address, res.Reused)

	_, _, err = store.CheckUser(sess.ID)
	if err := expectFault(n, err, errors.KindDangling, "check-user through the stale session"); err != nil {
		return err
	}
	n.OK("The session names a released user; the reused bytes are never read through it")
	return nil
}
