package connectors

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
)

// OutboxStore keeps every composed message as <sha256>.eml in one directory.
// It doubles as the "file" delivery provider.
type OutboxStore struct {
	dir string
}

func NewOutboxStore(dir string) *OutboxStore {
	return &OutboxStore{dir: dir}
}

func (s *OutboxStore) Provider() string { return "file" }

func (s *OutboxStore) Deliver(_ context.Context, msg Message) (string, error) {
	_, path, err := s.Store(msg.Raw)
	if err != nil {
		return "", err
	}
	return filepath.Base(path), nil
}

// Store writes raw unless a file with the same content hash is already there.
func (s *OutboxStore) Store(raw []byte) (hash, path string, err error) {
	sum := sha256.Sum256(raw)
	hash = hex.EncodeToString(sum[:])

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", "", err
	}

	path = filepath.Join(s.dir, hash+".eml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return "", "", err
		}
	}
	return hash, path, nil
}
