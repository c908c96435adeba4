package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/ingest/internal/filegate"
	"github.com/JonMunkholm/ingest/internal/logging"
	"github.com/JonMunkholm/ingest/internal/query"
	"github.com/JonMunkholm/ingest/internal/spreadsheet"
)

// DefaultImportTimeout bounds one import when no timeout is configured.
const DefaultImportTimeout = 10 * time.Minute

// ServiceConfig tunes import execution.
type ServiceConfig struct {
	ImportTimeout        time.Duration
	MaxConcurrentImports int
	MaxWaitTime          time.Duration
}

// ImportRequest is a user-confirmed import of a stored file.
type ImportRequest struct {
	Table   string         `json:"tableName"`
	FileURL string         `json:"fileName"`
	Fields  []FieldMapping `json:"fieldInfo"`
}

// ImportResult summarizes a committed import.
type ImportResult struct {
	ID         uuid.UUID `json:"importId"`
	Table      string    `json:"tableName"`
	Rows       int       `json:"rows"`
	DurationMs int64     `json:"durationMs"`
}

// Service ties the file gateway, column registry, mapping resolver and
// importer together for the transport layer.
type Service struct {
	files    *filegate.Gateway
	store    Store
	columns  *ColumnRegistry
	resolver *Resolver
	importer *Importer
	limiter  *ImportLimiter
	timeout  time.Duration
}

// NewService creates a service over files and store.
func NewService(files *filegate.Gateway, store Store, cfg ServiceConfig) *Service {
	if cfg.ImportTimeout <= 0 {
		cfg.ImportTimeout = DefaultImportTimeout
	}
	columns := NewColumnRegistry(store)
	return &Service{
		files:    files,
		store:    store,
		columns:  columns,
		resolver: NewResolver(columns),
		importer: NewImporter(store),
		limiter:  NewImportLimiter(cfg.MaxConcurrentImports, cfg.MaxWaitTime),
		timeout:  cfg.ImportTimeout,
	}
}

// ListTables returns the importable tables.
func (s *Service) ListTables() []TableInfo {
	defs := All()
	infos := make([]TableInfo, len(defs))
	for i, def := range defs {
		infos[i] = def.Info
	}
	return infos
}

// Columns returns the editable columns of an importable table.
func (s *Service) Columns(ctx context.Context, table string) ([]ColumnDescriptor, error) {
	return s.columns.ColumnsOf(ctx, table)
}

// Upload stores an arbitrary file.
func (s *Service) Upload(ctx context.Context, r io.Reader, originalName string) (filegate.StoredFile, error) {
	stored, err := s.files.Store(ctx, r, originalName)
	if err != nil {
		return filegate.StoredFile{}, err
	}
	logging.FromContext(ctx).Info("file uploaded",
		"name", stored.Name,
		"original", originalName,
		"size", stored.Size,
	)
	return stored, nil
}

// Analyze stores a spreadsheet and previews it against table. The table is
// checked before anything is written.
func (s *Service) Analyze(ctx context.Context, table string, r io.Reader, originalName string) (Preview, error) {
	if _, err := s.columns.ColumnsOf(ctx, table); err != nil {
		return Preview{}, err
	}

	stored, err := s.Upload(ctx, r, originalName)
	if err != nil {
		return Preview{}, err
	}
	return s.resolver.Analyze(ctx, table, stored)
}

// Import builds a plan from req, reads the stored file it references and
// commits every row in one transaction.
func (s *Service) Import(ctx context.Context, req ImportRequest, actor Actor) (ImportResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return ImportResult{}, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()

	path, err := s.files.PathOf(req.FileURL)
	if err != nil {
		return ImportResult{}, err
	}

	plan, err := s.resolver.BuildPlan(ctx, req.Table, req.Fields)
	if err != nil {
		return ImportResult{}, err
	}
	log := logging.WithFields(ctx, "import_id", plan.ID.String(), "table", plan.Table)

	sheet, err := spreadsheet.Read(path)
	if err != nil {
		return ImportResult{}, storedFileError(req.FileURL, err)
	}
	if err := plan.CheckHeaders(sheet.Headers); err != nil {
		return ImportResult{}, err
	}
	log.Info("import started", "fields", len(plan.Mappings), "records", len(sheet.Records))

	n, err := s.importer.Execute(ctx, plan, sheet.Records, AuditContext{Actor: actor})
	if err != nil {
		log.Warn("import failed", "error", err)
		return ImportResult{}, err
	}

	result := ImportResult{
		ID:         plan.ID,
		Table:      plan.Table,
		Rows:       n,
		DurationMs: time.Since(start).Milliseconds(),
	}
	log.Info("import committed", "rows", n, "duration_ms", result.DurationMs)
	return result, nil
}

// storedFileError reports a stored file that vanished after upload as
// filegate.ErrFileNotFound.
func storedFileError(resource string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", filegate.ErrFileNotFound, resource)
	}
	return err
}

// Download opens a file from the download directory.
func (s *Service) Download(name string, deleteAfter bool) (*filegate.Download, error) {
	return s.files.RetrieveForDownload(name, deleteAfter)
}

// DownloadResource opens an upload by its logical URL.
func (s *Service) DownloadResource(resource string) (*filegate.Download, error) {
	return s.files.RetrieveByLogicalURL(resource)
}

// DeleteResource removes an upload by its logical URL.
func (s *Service) DeleteResource(resource string) error {
	return s.files.Delete(resource)
}

// ListData returns a page of imported rows visible to actor: rows of the
// actor's department, or of every department in the actor's scope.
func (s *Service) ListData(ctx context.Context, table string, actor Actor, req query.PageRequest) (query.Page, error) {
	if _, err := s.columns.ColumnsOf(ctx, table); err != nil {
		return query.Page{}, err
	}
	page, err := s.store.Page(ctx, table, DataScope(actor), req.Normalize())
	if err != nil {
		return query.Page{}, fmt.Errorf("list %s: %w", table, err)
	}
	return page, nil
}

// DataScope restricts rows to the departments actor may see.
func DataScope(actor Actor) query.Predicate {
	if len(actor.ScopeDepts) == 0 {
		return query.Eq(FieldDeptID, actor.DeptID)
	}
	depts := make([]any, len(actor.ScopeDepts))
	for i, d := range actor.ScopeDepts {
		depts[i] = d
	}
	return query.In(FieldDeptID, depts...)
}

// LimiterStatus reports import slot occupancy.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until running imports finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// Health reports whether the storage collaborator is reachable, for stores
// that can tell.
func (s *Service) Health(ctx context.Context) error {
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
