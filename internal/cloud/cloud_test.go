package cloud

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/api/option"

	"worksync/internal/config"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	remote := t.TempDir()
	local := t.TempDir()
	store := NewLocalStore(remote)
	ctx := context.Background()

	src := filepath.Join(local, "works.xlsx")
	if err := os.WriteFile(src, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Upload(ctx, src, "works.xlsx"); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(local, "copy", "works.xlsx")
	if err := store.Download(ctx, "works.xlsx", dest); err != nil {
		t.Fatal(err)
	}
	blob, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(blob) != "v1" {
		t.Fatalf("content=%q", blob)
	}

	if err := store.Download(ctx, "missing.xlsx", dest); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	store, err := New(ctx, config.Config{CloudProvider: "none"})
	if err != nil || store != nil {
		t.Fatalf("store=%v err=%v", store, err)
	}
	store, err = New(ctx, config.Config{CloudProvider: "local", CloudLocalDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*LocalStore); !ok {
		t.Fatalf("store=%T", store)
	}
	if _, err := New(ctx, config.Config{CloudProvider: "ftp"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestDriveStore(t *testing.T) {
	var uploaded string
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/files"):
			query = r.URL.Query().Get("q")
			_, _ = io.WriteString(w, `{"files":[{"id":"f1","name":"works.xlsx"}]}`)
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/files/f1"):
			if r.URL.Query().Get("alt") != "media" {
				t.Errorf("alt=%q", r.URL.Query().Get("alt"))
			}
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = io.WriteString(w, "remote-bytes")
		case r.Method == http.MethodPatch && strings.HasSuffix(r.URL.Path, "/files/f1"):
			body, _ := io.ReadAll(r.Body)
			uploaded = string(body)
			_, _ = io.WriteString(w, `{"id":"f1"}`)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	store, err := NewDriveStore(ctx, "folder'1", option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(t.TempDir(), "works.xlsx")
	if err := store.Download(ctx, "works.xlsx", dest); err != nil {
		t.Fatal(err)
	}
	blob, _ := os.ReadFile(dest)
	if string(blob) != "remote-bytes" {
		t.Fatalf("content=%q", blob)
	}
	if !strings.Contains(query, `'folder\'1' in parents`) || !strings.Contains(query, "name = 'works.xlsx'") {
		t.Fatalf("query=%q", query)
	}

	src := filepath.Join(t.TempDir(), "local.xlsx")
	if err := os.WriteFile(src, []byte("local-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Upload(ctx, src, "works.xlsx"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(uploaded, "local-bytes") {
		t.Fatalf("uploaded=%q", uploaded)
	}
}

func TestEscapeQuery(t *testing.T) {
	if got := escapeQuery(`a'b\c`); got != `a\'b\\c` {
		t.Fatalf("escape=%s", got)
	}
}
