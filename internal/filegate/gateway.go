// Package filegate stores, names, retrieves and deletes uploaded and
// downloadable file artifacts, and owns every path-safety check.
//
// Uploads land in a date-partitioned tree under the upload root:
//
//	<root>/upload/2024/03/15/roster_20240315093012A042.xlsx
//
// and are addressed externally by a logical URL built from the configured
// prefix, e.g. /profile/upload/2024/03/15/roster_20240315093012A042.xlsx.
package filegate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// maxNameAttempts bounds how many random suffixes are tried when a
// generated name is already taken.
const maxNameAttempts = 10

// Config holds gateway settings.
type Config struct {
	UploadRoot        string
	DownloadRoot      string
	URLPrefix         string
	MachineID         string
	AllowedExtensions []string
	ChunkSize         int64
	MaxFileSize       int64
}

// StoredFile describes a persisted upload.
type StoredFile struct {
	Path         string    `json:"-"`
	URL          string    `json:"url"`
	Name         string    `json:"newFileName"`
	OriginalName string    `json:"originalFilename"`
	CreatedAt    time.Time `json:"createdAt"`
	Machine      string    `json:"machine"`
	Random       string    `json:"random"`
	Size         int64     `json:"size"`
}

// Gateway is safe for concurrent use.
type Gateway struct {
	cfg     Config
	allowed map[string]bool

	now    func() time.Time
	random func() string
}

// New creates a gateway. The upload and download roots are created if missing.
func New(cfg Config) (*Gateway, error) {
	if cfg.MachineID == "" {
		return nil, errors.New("filegate: machine id is required")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	cfg.URLPrefix = strings.TrimRight(cfg.URLPrefix, "/")

	for _, dir := range []string{cfg.UploadRoot, cfg.DownloadRoot} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("filegate: create %s: %w", dir, err)
		}
	}

	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	return &Gateway{
		cfg:     cfg,
		allowed: allowed,
		now:     time.Now,
		random:  randomSuffix,
	}, nil
}

func randomSuffix() string {
	return fmt.Sprintf("%0*d", RandomDigits, rand.IntN(1000))
}

// Store streams r to a newly generated name and returns its handle.
func (g *Gateway) Store(ctx context.Context, r io.Reader, originalName string) (StoredFile, error) {
	base, ext := splitOriginal(originalName)
	if ext == "" || !g.allowed[strings.ToLower(ext)] {
		return StoredFile{}, fmt.Errorf("%w: %q", ErrInvalidFileType, originalName)
	}

	now := g.now()
	partition := path.Join("upload", now.Format("2006"), now.Format("01"), now.Format("02"))
	dir := filepath.Join(g.cfg.UploadRoot, filepath.FromSlash(partition))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return StoredFile{}, fmt.Errorf("create partition %s: %w", partition, err)
	}

	f, meta, err := g.createUnique(dir, base, ext, now)
	if err != nil {
		return StoredFile{}, err
	}
	name := Encode(meta)
	fullPath := filepath.Join(dir, name)

	size, err := copyChunks(ctx, f, r, g.cfg.ChunkSize, g.cfg.MaxFileSize)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close %s: %w", name, closeErr)
	}
	if err != nil {
		if rmErr := os.Remove(fullPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			slog.Warn("failed to remove partial upload", "path", fullPath, "error", rmErr)
		}
		return StoredFile{}, err
	}

	slog.Debug("file stored", "name", name, "size", size)

	return StoredFile{
		Path:         fullPath,
		URL:          g.cfg.URLPrefix + "/" + path.Join(partition, name),
		Name:         name,
		OriginalName: originalName,
		CreatedAt:    meta.CreatedAt,
		Machine:      meta.Machine,
		Random:       meta.Random,
		Size:         size,
	}, nil
}

// createUnique opens a fresh file, drawing a new random suffix whenever the
// generated name is already taken.
func (g *Gateway) createUnique(dir, base, ext string, now time.Time) (*os.File, NameMeta, error) {
	meta := NameMeta{
		Base:      base,
		Ext:       ext,
		CreatedAt: now.Truncate(time.Second),
		Machine:   g.cfg.MachineID,
	}

	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		meta.Random = g.random()
		p := filepath.Join(dir, Encode(meta))

		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, meta, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, NameMeta{}, fmt.Errorf("create %s: %w", p, err)
		}
	}
	return nil, NameMeta{}, fmt.Errorf("no free name for %q after %d attempts", base, maxNameAttempts)
}

// splitOriginal reduces a client supplied file name to a safe base and
// its extension.
func splitOriginal(originalName string) (base, ext string) {
	name := path.Base(strings.ReplaceAll(originalName, `\`, "/"))
	base, ext = splitExt(name)
	for HasTraversal(base) {
		base = strings.ReplaceAll(base, traversalToken, ".")
	}
	base = strings.TrimSpace(base)
	if base == "" || base == "." || base == "/" {
		base = "file"
	}
	return base, ext
}

// RetrieveForDownload opens a file from the download directory. With
// deleteAfter the file is removed when the returned Download is closed,
// which callers do only once the response has been fully written.
func (g *Gateway) RetrieveForDownload(name string, deleteAfter bool) (*Download, error) {
	if name == "" || HasTraversal(name) || strings.ContainsRune(name, 0) {
		return nil, ErrInvalidResourceName
	}

	p := filepath.Join(g.cfg.DownloadRoot, filepath.FromSlash(name))
	return openDownload(p, deleteAfter)
}

// RetrieveByLogicalURL opens an upload addressed by its logical URL.
func (g *Gateway) RetrieveByLogicalURL(resource string) (*Download, error) {
	p, err := g.PathOf(resource)
	if err != nil {
		return nil, err
	}
	return openDownload(p, false)
}

// Delete removes an upload addressed by its logical URL.
func (g *Gateway) Delete(resource string) error {
	p, err := g.PathOf(resource)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrFileNotFound
		}
		return fmt.Errorf("remove %s: %w", path.Base(resource), err)
	}
	return nil
}

// PathOf maps a logical URL to the physical path of the upload. It performs
// no filesystem access; the name must pass every codec check.
func (g *Gateway) PathOf(resource string) (string, error) {
	if HasTraversal(resource) || strings.ContainsRune(resource, 0) {
		return "", ErrInvalidResourceName
	}
	if u, err := url.Parse(resource); err == nil && u.Host != "" {
		resource = u.Path
	}

	rel, ok := strings.CutPrefix(resource, g.cfg.URLPrefix+"/")
	if !ok || rel == "" {
		return "", ErrInvalidResourceName
	}

	name := path.Base(rel)
	if !ValidTimestamp(name) || !ValidMachine(name, g.cfg.MachineID) || !ValidRandom(name) {
		return "", ErrInvalidResourceName
	}

	return filepath.Join(g.cfg.UploadRoot, filepath.FromSlash(path.Clean(rel))), nil
}

// SweepDownloads removes download files last modified before cutoff and
// returns how many were removed.
func (g *Gateway) SweepDownloads(cutoff time.Time) (int, error) {
	removed := 0
	err := filepath.WalkDir(g.cfg.DownloadRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				slog.Warn("sweep: remove failed", "path", p, "error", err)
				return nil
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// Download is an open, seekable file stream.
type Download struct {
	Name    string
	Size    int64
	ModTime time.Time

	file          *os.File
	path          string
	deleteOnClose bool

	once     sync.Once
	closeErr error
}

func openDownload(p string, deleteOnClose bool) (*Download, error) {
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("open %s: %w", filepath.Base(p), err)
	}

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		f.Close()
		return nil, ErrFileNotFound
	}

	return &Download{
		Name:          info.Name(),
		Size:          info.Size(),
		ModTime:       info.ModTime(),
		file:          f,
		path:          p,
		deleteOnClose: deleteOnClose,
	}, nil
}

func (d *Download) Read(p []byte) (int, error) {
	return d.file.Read(p)
}

func (d *Download) Seek(offset int64, whence int) (int64, error) {
	return d.file.Seek(offset, whence)
}

// Close releases the file and, if requested, deletes it. Safe to call twice.
func (d *Download) Close() error {
	d.once.Do(func() {
		d.closeErr = d.file.Close()
		if !d.deleteOnClose {
			return
		}
		if err := os.Remove(d.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("deferred delete failed", "path", d.path, "error", err)
			if d.closeErr == nil {
				d.closeErr = err
			}
		}
	})
	return d.closeErr
}
