package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/filex"
)

var fileNames = map[Collection]string{
	Users:       "users.json",
	Profiles:    "user_profiles.json",
	Preferences: "user_preferences.json",
	Sessions:    "user_sessions.json",
	Events:      "user_actions.json",
}

// FileStore keeps each collection as one JSON object in a data directory.
// Writes go through a temp file and rename, so Load never sees a torn file.
type FileStore struct {
	dir   string
	locks locks
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: data dir: %w", common.ErrStoreIO, err)
	}
	return &FileStore{dir: abs}, nil
}

func (s *FileStore) path(c Collection) string {
	return filepath.Join(s.dir, fileNames[c])
}

func (s *FileStore) Load(ctx context.Context, c Collection) (Records, error) {
	if err := checkCollection(c); err != nil {
		return nil, err
	}
	recs, err := s.read(c)
	if err != nil {
		return nil, ioError("load", c, err)
	}
	return recs, nil
}

func (s *FileStore) read(c Collection) (Records, error) {
	b, err := os.ReadFile(s.path(c))
	if errors.Is(err, fs.ErrNotExist) {
		return Records{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return Records{}, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", fileNames[c], err)
	}
	recs := make(Records, len(raw))
	for k, v := range raw {
		recs[k] = []byte(v)
	}
	return recs, nil
}

func (s *FileStore) write(c Collection, recs Records) error {
	raw := make(map[string]json.RawMessage, len(recs))
	for k, v := range recs {
		raw[k] = json.RawMessage(v)
	}
	// Map keys are sorted by encoding/json, so event sequence keys stay ordered.
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", fileNames[c], err)
	}
	return filex.WriteFileAtomic(s.path(c), b, 0o600)
}

func (s *FileStore) Replace(ctx context.Context, c Collection, recs Records) error {
	if err := checkCollection(c); err != nil {
		return err
	}
	l := s.locks.get(c)
	l.Lock()
	defer l.Unlock()

	if err := s.write(c, recs); err != nil {
		return ioError("replace", c, err)
	}
	return nil
}

func (s *FileStore) Update(ctx context.Context, c Collection, fn UpdateFunc) error {
	if err := checkCollection(c); err != nil {
		return err
	}
	l := s.locks.get(c)
	l.Lock()
	defer l.Unlock()

	recs, err := s.read(c)
	if err != nil {
		return ioError("update", c, err)
	}
	if err := fn(recs); err != nil {
		return err
	}
	if err := s.write(c, recs); err != nil {
		return ioError("update", c, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
