package filegate

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var fixedNow = time.Date(2024, 3, 15, 9, 30, 12, 0, time.Local)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	root := t.TempDir()
	g, err := New(Config{
		UploadRoot:        filepath.Join(root, "uploads"),
		DownloadRoot:      filepath.Join(root, "downloads"),
		URLPrefix:         "/profile",
		MachineID:         "A",
		AllowedExtensions: []string{"xlsx", "csv"},
		ChunkSize:         4,
		MaxFileSize:       1 << 10,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g.now = func() time.Time { return fixedNow }
	return g
}

func TestNew_RequiresMachine(t *testing.T) {
	if _, err := New(Config{UploadRoot: t.TempDir()}); err == nil {
		t.Fatal("expected error without machine id")
	}
}

func TestStore_RoundTrip(t *testing.T) {
	g := newTestGateway(t)
	g.random = func() string { return "042" }

	content := "name,sex\nAda,F\n"
	stored, err := g.Store(context.Background(), strings.NewReader(content), "Roster.XLSX")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	if stored.Name != "Roster_20240315093012A042.XLSX" {
		t.Errorf("Name = %q", stored.Name)
	}
	wantURL := "/profile/upload/2024/03/15/Roster_20240315093012A042.XLSX"
	if stored.URL != wantURL {
		t.Errorf("URL = %q, want %q", stored.URL, wantURL)
	}
	if stored.Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", stored.Size, len(content))
	}

	p, err := g.PathOf(stored.URL)
	if err != nil {
		t.Fatalf("PathOf: %v", err)
	}
	if p != stored.Path {
		t.Errorf("PathOf = %q, want %q", p, stored.Path)
	}

	dl, err := g.RetrieveByLogicalURL(stored.URL)
	if err != nil {
		t.Fatalf("RetrieveByLogicalURL: %v", err)
	}
	defer dl.Close()
	got, err := io.ReadAll(dl)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != content {
		t.Errorf("content = %q, want %q", got, content)
	}
}

func TestStore_RejectsExtension(t *testing.T) {
	g := newTestGateway(t)
	for _, name := range []string{"payload.exe", "noext", "archive.tar.gz"} {
		_, err := g.Store(context.Background(), strings.NewReader("x"), name)
		if !errors.Is(err, ErrInvalidFileType) {
			t.Errorf("Store(%q) error = %v, want ErrInvalidFileType", name, err)
		}
	}
}

func TestStore_SanitizesOriginalName(t *testing.T) {
	g := newTestGateway(t)
	g.random = func() string { return "001" }

	stored, err := g.Store(context.Background(), strings.NewReader("x"), `..\..\evil..name.csv`)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if HasTraversal(stored.Name) {
		t.Errorf("stored name %q contains traversal", stored.Name)
	}
	if !strings.HasPrefix(stored.Path, g.cfg.UploadRoot) {
		t.Errorf("stored outside upload root: %s", stored.Path)
	}
}

func TestStore_SameSecondCollision(t *testing.T) {
	g := newTestGateway(t)
	suffixes := []string{"007", "007", "008"}
	g.random = func() string {
		s := suffixes[0]
		suffixes = suffixes[1:]
		return s
	}

	first, err := g.Store(context.Background(), strings.NewReader("one"), "a.csv")
	if err != nil {
		t.Fatalf("first Store: %v", err)
	}
	second, err := g.Store(context.Background(), strings.NewReader("two"), "a.csv")
	if err != nil {
		t.Fatalf("second Store: %v", err)
	}
	if first.Name == second.Name {
		t.Fatalf("collision: both stored as %q", first.Name)
	}
	if second.Random != "008" {
		t.Errorf("second random = %q, want 008", second.Random)
	}
}

func TestStore_TooLargeRemovesPartial(t *testing.T) {
	g := newTestGateway(t)
	g.cfg.MaxFileSize = 8
	g.random = func() string { return "100" }

	_, err := g.Store(context.Background(), bytes.NewReader(make([]byte, 20)), "big.csv")
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("error = %v, want ErrFileTooLarge", err)
	}

	dir := filepath.Join(g.cfg.UploadRoot, "upload", "2024", "03", "15")
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("partial file left behind: %v", entries)
	}
}

func TestStore_Canceled(t *testing.T) {
	g := newTestGateway(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Store(ctx, strings.NewReader("data"), "a.csv")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestPathOf_Rejects(t *testing.T) {
	g := newTestGateway(t)
	tests := []string{
		"",
		"/profile/upload/../../etc/passwd",
		"/other/upload/2024/03/15/a_20240315093012A042.csv",
		"/profile/upload/2024/03/15/a_20240315093012B042.csv",
		"/profile/upload/2024/03/15/a_2024031509301A042.csv",
		"/profile/upload/2024/03/15/a_20240315093012A04x.csv",
		"/profile/upload/2024/03/15/plain.csv",
	}
	for _, res := range tests {
		if _, err := g.PathOf(res); !errors.Is(err, ErrInvalidResourceName) {
			t.Errorf("PathOf(%q) error = %v, want ErrInvalidResourceName", res, err)
		}
	}
}

func TestPathOf_AbsoluteURL(t *testing.T) {
	g := newTestGateway(t)
	p, err := g.PathOf("http://files.example.com/profile/upload/2024/03/15/a_20240315093012A042.csv")
	if err != nil {
		t.Fatalf("PathOf: %v", err)
	}
	want := filepath.Join(g.cfg.UploadRoot, "upload", "2024", "03", "15", "a_20240315093012A042.csv")
	if p != want {
		t.Errorf("PathOf = %q, want %q", p, want)
	}
}

func TestRetrieveByLogicalURL_NotFound(t *testing.T) {
	g := newTestGateway(t)
	_, err := g.RetrieveByLogicalURL("/profile/upload/2024/03/15/a_20240315093012A042.csv")
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("error = %v, want ErrFileNotFound", err)
	}
}

func TestRetrieveForDownload(t *testing.T) {
	g := newTestGateway(t)
	p := filepath.Join(g.cfg.DownloadRoot, "report.xlsx")
	if err := os.WriteFile(p, []byte("report"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("invalid names", func(t *testing.T) {
		for _, name := range []string{"", "../secret", "a/../../b", "a\x00b"} {
			if _, err := g.RetrieveForDownload(name, false); !errors.Is(err, ErrInvalidResourceName) {
				t.Errorf("RetrieveForDownload(%q) error = %v", name, err)
			}
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := g.RetrieveForDownload("missing.xlsx", false); !errors.Is(err, ErrFileNotFound) {
			t.Errorf("error = %v, want ErrFileNotFound", err)
		}
	})

	t.Run("keep", func(t *testing.T) {
		dl, err := g.RetrieveForDownload("report.xlsx", false)
		if err != nil {
			t.Fatalf("RetrieveForDownload: %v", err)
		}
		if dl.Size != 6 {
			t.Errorf("Size = %d, want 6", dl.Size)
		}
		dl.Close()
		if _, err := os.Stat(p); err != nil {
			t.Errorf("file removed without delete flag: %v", err)
		}
	})

	t.Run("delete after close", func(t *testing.T) {
		dl, err := g.RetrieveForDownload("report.xlsx", true)
		if err != nil {
			t.Fatalf("RetrieveForDownload: %v", err)
		}
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("file removed before close: %v", err)
		}
		if _, err := io.ReadAll(dl); err != nil {
			t.Fatalf("read: %v", err)
		}
		if err := dl.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if err := dl.Close(); err != nil {
			t.Fatalf("second Close: %v", err)
		}
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("file still present after close: %v", err)
		}
	})
}

func TestDelete(t *testing.T) {
	g := newTestGateway(t)
	g.random = func() string { return "321" }

	stored, err := g.Store(context.Background(), strings.NewReader("x"), "a.csv")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := g.Delete(stored.URL); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(stored.Path); !os.IsNotExist(err) {
		t.Errorf("file still present: %v", err)
	}
	if err := g.Delete(stored.URL); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("second Delete error = %v, want ErrFileNotFound", err)
	}
}

func TestSweepDownloads(t *testing.T) {
	g := newTestGateway(t)
	oldPath := filepath.Join(g.cfg.DownloadRoot, "old.xlsx")
	newPath := filepath.Join(g.cfg.DownloadRoot, "new.xlsx")
	for _, p := range []string{oldPath, newPath} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldPath, past, past); err != nil {
		t.Fatal(err)
	}

	removed, err := g.SweepDownloads(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("SweepDownloads: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("old file should be removed")
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Error("new file should remain")
	}
}

func TestCopyChunks(t *testing.T) {
	var dst bytes.Buffer
	n, err := copyChunks(context.Background(), &dst, strings.NewReader("abcdefghij"), 3, 0)
	if err != nil {
		t.Fatalf("copyChunks: %v", err)
	}
	if n != 10 || dst.String() != "abcdefghij" {
		t.Errorf("copied %d bytes %q", n, dst.String())
	}

	dst.Reset()
	_, err = copyChunks(context.Background(), &dst, strings.NewReader("abcdefghij"), 3, 10)
	if err != nil {
		t.Errorf("limit equal to size should succeed: %v", err)
	}
}
