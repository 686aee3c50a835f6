package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileBlacklistStore persists the revocation map as a flat JSON object of
// token id to expiry epoch, one file per process.
type FileBlacklistStore struct {
	path string
}

var _ BlacklistStore = (*FileBlacklistStore)(nil)

func NewFileBlacklistStore(path string) *FileBlacklistStore {
	return &FileBlacklistStore{path: path}
}

// Load reads the persisted map. A missing file is not an error: the store
// simply starts empty.
func (s *FileBlacklistStore) Load() (map[string]int64, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]int64{}, nil
		}
		return nil, fmt.Errorf("read blacklist: %w", err)
	}
	entries := map[string]int64{}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode blacklist: %w", err)
	}
	return entries, nil
}

// Save writes the map through a temp file and rename so a crash mid-write
// cannot truncate the previous blacklist.
func (s *FileBlacklistStore) Save(entries map[string]int64) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create blacklist dir: %w", err)
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode blacklist: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write blacklist: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace blacklist: %w", err)
	}
	return nil
}
