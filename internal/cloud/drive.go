package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

type DriveStore struct {
	service  *drive.Service
	folderID string
}

func NewDriveStore(ctx context.Context, folderID string, opts ...option.ClientOption) (*DriveStore, error) {
	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &DriveStore{service: service, folderID: folderID}, nil
}

// Find returns the most recently modified non-trashed file called name.
func (s *DriveStore) Find(ctx context.Context, name string) (*drive.File, error) {
	q := fmt.Sprintf("name = '%s' and trashed = false", escapeQuery(name))
	if s.folderID != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeQuery(s.folderID))
	}
	resp, err := s.service.Files.List().
		Q(q).
		OrderBy("modifiedTime desc").
		PageSize(1).
		Fields("files(id, name, modifiedTime, size)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list drive files: %w", err)
	}
	if len(resp.Files) == 0 {
		return nil, ErrNotFound
	}
	return resp.Files[0], nil
}

func (s *DriveStore) Download(ctx context.Context, name, dest string) error {
	file, err := s.Find(ctx, name)
	if err != nil {
		return err
	}

	resp, err := s.service.Files.Get(file.Id).Context(ctx).Download()
	if err != nil {
		return fmt.Errorf("download %s: %w", name, err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	n, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	log.Info().Str("file", name).Str("id", file.Id).Int64("bytes", n).Msg("downloaded from drive")
	return nil
}

// Upload replaces the content of an existing file with the same name or creates a new one.
func (s *DriveStore) Upload(ctx context.Context, src, name string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	existing, err := s.Find(ctx, name)
	switch {
	case err == nil:
		_, err = s.service.Files.Update(existing.Id, &drive.File{}).Media(in).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("update %s: %w", name, err)
		}
		log.Info().Str("file", name).Str("id", existing.Id).Msg("updated on drive")
		return nil
	case !errors.Is(err, ErrNotFound):
		return err
	}

	meta := &drive.File{Name: name}
	if s.folderID != "" {
		meta.Parents = []string{s.folderID}
	}
	created, err := s.service.Files.Create(meta).Media(in).Fields("id").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	log.Info().Str("file", name).Str("id", created.Id).Msg("created on drive")
	return nil
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
