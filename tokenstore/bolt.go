package tokenstore

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	boltDirPerm     = fs.FileMode(0o700)
	boltOpenTimeout = 5 * time.Second
)

var tokensBucket = []byte("tokens")

// BoltStore persists tokens in a bbolt database, one record per profile.
type BoltStore struct {
	db      *bolt.DB
	profile string
}

// OpenBoltStore opens (creating if needed) the database at path.
// Close must be called to release the database lock.
func OpenBoltStore(path, profile string) (*BoltStore, error) {
	if profile == "" {
		profile = DefaultProfile
	}

	if err := os.MkdirAll(filepath.Dir(path), boltDirPerm); err != nil {
		return nil, fmt.Errorf("creating token db directory: %w", err)
	}

	db, err := bolt.Open(path, tokenFilePerm, &bolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening token db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(tokensBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing token db: %w", err)
	}

	return &BoltStore{db: db, profile: profile}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) AccessToken() (string, error) {
	t, err := s.get()
	if err != nil {
		return "", err
	}
	return t.AccessToken, nil
}

func (s *BoltStore) RefreshToken() (string, error) {
	t, err := s.get()
	if err != nil {
		return "", err
	}
	return t.RefreshToken, nil
}

func (s *BoltStore) SetAccessToken(token string) error {
	return s.update(func(t *Tokens) { t.AccessToken = token })
}

func (s *BoltStore) RemoveAccessToken() error {
	return s.update(func(t *Tokens) { t.AccessToken = "" })
}

func (s *BoltStore) SetRefreshToken(token string) error {
	return s.update(func(t *Tokens) { t.RefreshToken = token })
}

func (s *BoltStore) RemoveRefreshToken() error {
	return s.update(func(t *Tokens) { t.RefreshToken = "" })
}

func (s *BoltStore) SetTokens(access, refresh string) error {
	return s.update(func(t *Tokens) {
		t.AccessToken = access
		t.RefreshToken = refresh
	})
}

func (s *BoltStore) RemoveAll() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tokensBucket).Delete([]byte(s.profile))
	})
}

func (s *BoltStore) get() (*Tokens, error) {
	t := &Tokens{Profile: s.profile}
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(tokensBucket).Get([]byte(s.profile))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, t)
	})
	if err != nil {
		return nil, fmt.Errorf("reading tokens: %w", err)
	}
	return t, nil
}

func (s *BoltStore) update(mutate func(*Tokens)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(tokensBucket)
		key := []byte(s.profile)

		t := &Tokens{Profile: s.profile}
		if data := b.Get(key); data != nil {
			if err := json.Unmarshal(data, t); err != nil {
				return fmt.Errorf("decoding tokens: %w", err)
			}
		}
		mutate(t)
		t.UpdatedAt = time.Now().UTC()

		if t.empty() {
			return b.Delete(key)
		}

		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encoding tokens: %w", err)
		}
		return b.Put(key, data)
	})
}
