package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"
)

// DefaultProfile is used when a FileStore or BoltStore is opened without one.
const DefaultProfile = "default"

// fileDocument is the on-disk layout of a token file. Several profiles can
// share one file; writes preserve the entries of other profiles.
type fileDocument struct {
	Profiles map[string]*Tokens `json:"profiles"` // key = profile
}

// FileStore persists tokens for one profile in a JSON file. Writes take a
// lock file and replace the token file through an atomic rename, so several
// processes can share the file.
type FileStore struct {
	path    string
	profile string
	policy  lockPolicy

	mu sync.Mutex // serializes read-modify-write cycles within the process
}

// NewFileStore returns a store for profile backed by the file at path.
// The file is created on first write.
func NewFileStore(path, profile string) *FileStore {
	if profile == "" {
		profile = DefaultProfile
	}
	return &FileStore{path: path, profile: profile, policy: defaultLockPolicy}
}

// Path returns the token file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) AccessToken() (string, error) {
	t, err := s.load()
	if err != nil {
		return "", err
	}
	return t.AccessToken, nil
}

func (s *FileStore) RefreshToken() (string, error) {
	t, err := s.load()
	if err != nil {
		return "", err
	}
	return t.RefreshToken, nil
}

func (s *FileStore) SetAccessToken(token string) error {
	return s.update(func(t *Tokens) { t.AccessToken = token })
}

func (s *FileStore) RemoveAccessToken() error {
	return s.update(func(t *Tokens) { t.AccessToken = "" })
}

func (s *FileStore) SetRefreshToken(token string) error {
	return s.update(func(t *Tokens) { t.RefreshToken = token })
}

func (s *FileStore) RemoveRefreshToken() error {
	return s.update(func(t *Tokens) { t.RefreshToken = "" })
}

func (s *FileStore) SetTokens(access, refresh string) error {
	return s.update(func(t *Tokens) {
		t.AccessToken = access
		t.RefreshToken = refresh
	})
}

func (s *FileStore) RemoveAll() error {
	return s.update(func(t *Tokens) {
		t.AccessToken = ""
		t.RefreshToken = ""
	})
}

// load returns the current profile's tokens. A missing file or profile is
// an empty record, not an error.
func (s *FileStore) load() (*Tokens, error) {
	doc, err := readDocument(s.path)
	if err != nil {
		return nil, err
	}
	if t, ok := doc.Profiles[s.profile]; ok {
		return t, nil
	}
	return &Tokens{Profile: s.profile}, nil
}

func (s *FileStore) update(mutate func(*Tokens)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := acquireLock(s.path, s.policy)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer lock.release()

	// Re-read under the lock so entries written by other processes survive.
	doc, err := readDocument(s.path)
	if err != nil {
		// An unreadable file is replaced rather than blocking logout.
		doc = &fileDocument{Profiles: make(map[string]*Tokens)}
	}

	t, ok := doc.Profiles[s.profile]
	if !ok {
		t = &Tokens{Profile: s.profile}
	}
	mutate(t)
	t.UpdatedAt = time.Now().UTC()

	if t.empty() {
		delete(doc.Profiles, s.profile)
	} else {
		doc.Profiles[s.profile] = t
	}

	return writeDocument(s.path, doc)
}

func readDocument(path string) (*fileDocument, error) {
	doc := &fileDocument{}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		doc.Profiles = make(map[string]*Tokens)
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	if doc.Profiles == nil {
		doc.Profiles = make(map[string]*Tokens)
	}
	return doc, nil
}

func writeDocument(path string, doc *fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + tokenFileTmpSuffix
	if err := os.WriteFile(tmp, data, tokenFilePerm); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil {
			return fmt.Errorf(
				"failed to rename temp file: %v; additionally failed to remove temp file: %w",
				err,
				rmErr,
			)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
