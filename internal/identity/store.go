// Package identity persists the local user identity so presence survives
// process restarts.
package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/syncroom/collab-platform/internal/event"
)

var bucket = []byte("identity")

var (
	keyUserID   = []byte("user_id")
	keyUserName = []byte("user_name")
	keyAvatar   = []byte("avatar")
)

// Store is a bbolt-backed identity store.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the identity database at path. An empty path
// defaults to the user config directory.
func Open(path string) (*Store, error) {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve config dir: %w", err)
		}
		path = filepath.Join(dir, "collab-platform", "identity.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create identity dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open identity db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create identity bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the stored identity, minting and persisting a fresh user id
// on first use. defaultName is stored when no display name exists yet.
func (s *Store) Load(defaultName string) (event.User, error) {
	var u event.User
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)

		if id := b.Get(keyUserID); id != nil {
			u.ID = string(id)
		} else {
			u.ID = uuid.Must(uuid.NewV7()).String()
			if err := b.Put(keyUserID, []byte(u.ID)); err != nil {
				return err
			}
		}

		if name := b.Get(keyUserName); name != nil {
			u.Name = string(name)
		} else {
			u.Name = defaultName
			if err := b.Put(keyUserName, []byte(u.Name)); err != nil {
				return err
			}
		}

		if avatar := b.Get(keyAvatar); avatar != nil {
			u.Avatar = string(avatar)
		}
		return nil
	})
	if err != nil {
		return event.User{}, fmt.Errorf("load identity: %w", err)
	}
	return u, nil
}

// SetName updates the persisted display name.
func (s *Store) SetName(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(keyUserName, []byte(name))
	})
}

// SetAvatar updates the persisted avatar reference.
func (s *Store) SetAvatar(avatar string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(keyAvatar, []byte(avatar))
	})
}
