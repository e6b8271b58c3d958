package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.DocumentSyncer = (*DocumentSync)(nil)

const (
	// DefaultScanWindow is how far back a reconciliation scan looks
	DefaultScanWindow = 30 * time.Minute
	// maxFolderDepth bounds parent walks and folder recursion
	maxFolderDepth = 32
	// defaultScanConcurrency is the number of files a scan ingests at once
	defaultScanConcurrency = 4
)

// DocumentSync applies file store changes to the vector index. Every upsert
// replaces the document's chunks wholesale, so replays never duplicate.
type DocumentSync struct {
	tracker     driving.SyncStateTracker
	files       driven.FileStore
	index       driven.VectorIndex
	ingestion   driven.IngestionService
	access      *AccessController
	archive     driven.ObjectArchive
	logger      *slog.Logger
	tempDir     string
	concurrency int
}

// DocumentSyncConfig holds dependencies for DocumentSync.
type DocumentSyncConfig struct {
	Tracker     driving.SyncStateTracker
	Files       driven.FileStore
	Index       driven.VectorIndex
	Ingestion   driven.IngestionService
	Access      *AccessController
	Archive     driven.ObjectArchive // Optional: keep a copy of every ingested file
	Logger      *slog.Logger
	TempDir     string // Parent of per-download temp dirs (default: os.TempDir())
	Concurrency int    // Files ingested in parallel during a scan (default: 4)
}

// NewDocumentSync creates a new document syncer.
func NewDocumentSync(cfg DocumentSyncConfig) *DocumentSync {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	access := cfg.Access
	if access == nil {
		access = NewAccessController(logger)
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultScanConcurrency
	}
	return &DocumentSync{
		tracker:     cfg.Tracker,
		files:       cfg.Files,
		index:       cfg.Index,
		ingestion:   cfg.Ingestion,
		access:      access,
		archive:     cfg.Archive,
		logger:      logger,
		tempDir:     cfg.TempDir,
		concurrency: concurrency,
	}
}

// UpsertDocument (re)ingests a file. Unsupported types and documents already
// current are skipped. On failure the record is marked FAILED and the
// previous LastModifiedAt is kept so the next observation retries.
func (s *DocumentSync) UpsertDocument(ctx context.Context, meta *domain.FileMetadata) (*domain.SyncResult, error) {
	start := time.Now()
	result := &domain.SyncResult{SourceDocID: meta.ID}
	defer func() { result.Duration = time.Since(start) }()

	if meta.Trashed {
		return s.DeleteDocument(ctx, meta.ID)
	}

	fileType := domain.ClassifyFileType(meta.MimeType, meta.Name)
	if fileType == domain.FileTypeUnsupported {
		s.logger.Debug("skipping unsupported file type", "doc_id", meta.ID, "mime_type", meta.MimeType)
		result.Action = domain.SyncActionUnsupported
		return result, nil
	}

	needs, err := s.tracker.NeedsSync(ctx, meta.ID, meta.ModifiedAt)
	if err != nil {
		result.Action = domain.SyncActionFailed
		result.Error = err.Error()
		return result, err
	}
	if !needs {
		s.logger.Debug("document already current", "doc_id", meta.ID, "modified_at", meta.ModifiedAt)
		result.Action = domain.SyncActionSkipped
		return result, nil
	}

	if _, err := s.tracker.Track(ctx, meta.ID, meta.Name, meta.ModifiedAt); err != nil {
		result.Action = domain.SyncActionFailed
		result.Error = err.Error()
		return result, err
	}

	if err := s.index.DeleteByDocument(ctx, meta.ID); err != nil {
		return s.fail(ctx, result, fmt.Errorf("%w: delete existing chunks: %v", domain.ErrIndexWrite, err))
	}

	segments := s.resolvePath(ctx, meta)
	access := s.access.ClassifyPath(segments)

	chunks, err := s.ingest(ctx, &domain.DocumentContent{
		Metadata: meta,
		FileType: fileType,
		Access:   access,
		Folder:   strings.Join(segments, "/"),
	})
	if err != nil {
		return s.fail(ctx, result, err)
	}
	if len(chunks) == 0 {
		return s.fail(ctx, result, domain.ErrNoChunks)
	}

	chunks = s.postprocess(meta, access, chunks)

	if err := s.index.Upsert(ctx, chunks); err != nil {
		return s.fail(ctx, result, fmt.Errorf("%w: %v", domain.ErrIndexWrite, err))
	}

	if err := s.tracker.MarkSynced(ctx, meta.ID, meta.ModifiedAt); err != nil {
		result.Action = domain.SyncActionFailed
		result.Error = err.Error()
		return result, err
	}

	result.Action = domain.SyncActionIndexed
	result.Chunks = len(chunks)
	s.logger.Info("document indexed",
		"doc_id", meta.ID,
		"name", meta.Name,
		"chunks", len(chunks),
		"is_pi", access.IsPI,
	)
	return result, nil
}

// fail records a failed attempt and returns err
func (s *DocumentSync) fail(ctx context.Context, result *domain.SyncResult, err error) (*domain.SyncResult, error) {
	reason := err.Error()
	if errors.Is(err, domain.ErrNoChunks) {
		reason = domain.ErrNoChunks.Error()
	}
	if merr := s.tracker.MarkFailed(ctx, result.SourceDocID, reason); merr != nil {
		s.logger.Error("failed to record sync failure", "doc_id", result.SourceDocID, "error", merr)
	}
	s.logger.Warn("document sync failed", "doc_id", result.SourceDocID, "error", err)
	result.Action = domain.SyncActionFailed
	result.Error = reason
	return result, err
}

// ingest downloads the file into a private temp dir and hands it to the
// ingestion service. The temp dir is removed before returning.
func (s *DocumentSync) ingest(ctx context.Context, content *domain.DocumentContent) ([]*domain.IndexedChunk, error) {
	meta := content.Metadata

	dir, err := os.MkdirTemp(s.tempDir, "sercha-drive-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp dir: %v", domain.ErrDownloadFailed, err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("failed to remove temp dir", "path", dir, "error", err)
		}
	}()

	path := filepath.Join(dir, localName(meta))
	if err := s.download(ctx, meta.ID, path); err != nil {
		return nil, err
	}
	content.Path = path

	s.archiveCopy(ctx, meta, path)

	chunks, err := s.ingestion.Ingest(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProcessingFailed, err)
	}
	return chunks, nil
}

func (s *DocumentSync) download(ctx context.Context, fileID, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	if err := s.files.Download(ctx, fileID, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	return nil
}

// archiveCopy stores the downloaded file in the object archive. Archive
// failures never fail the sync.
func (s *DocumentSync) archiveCopy(ctx context.Context, meta *domain.FileMetadata, path string) {
	if s.archive == nil {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		s.logger.Warn("failed to open file for archive", "doc_id", meta.ID, "error", err)
		return
	}
	defer f.Close()

	if err := s.archive.Put(ctx, ArchiveKey(meta.ID), f, meta.MimeType); err != nil {
		s.logger.Warn("failed to archive source file", "doc_id", meta.ID, "error", err)
	}
}

// postprocess stamps document identity and the derived access metadata onto
// every chunk and drops empty ones. Access always comes from the folder path,
// never from what the ingestion service returned.
func (s *DocumentSync) postprocess(meta *domain.FileMetadata, access domain.AccessMetadata, chunks []*domain.IndexedChunk) []*domain.IndexedChunk {
	out := chunks[:0]
	for i, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		if c.ChunkID == "" {
			c.ChunkID = fmt.Sprintf("%s-%d", meta.ID, i)
		}
		c.SourceDocID = meta.ID
		c.DocumentName = meta.Name
		c.Access = access
		out = append(out, c)
	}
	return out
}

// resolvePath walks parent links upward and returns folder names from the
// root down. The walk stops at maxFolderDepth, on a cycle, or on the first
// lookup error.
func (s *DocumentSync) resolvePath(ctx context.Context, meta *domain.FileMetadata) []string {
	var reversed []string
	visited := map[string]bool{meta.ID: true}

	parents := meta.Parents
	for depth := 0; len(parents) > 0 && depth < maxFolderDepth; depth++ {
		parentID := parents[0]
		if visited[parentID] {
			s.logger.Warn("cycle in folder parents", "doc_id", meta.ID, "folder_id", parentID)
			break
		}
		visited[parentID] = true

		parent, err := s.files.GetMetadata(ctx, parentID)
		if err != nil {
			s.logger.Debug("stopping parent walk", "doc_id", meta.ID, "folder_id", parentID, "error", err)
			break
		}
		reversed = append(reversed, parent.Name)
		parents = parent.Parents
	}

	segments := make([]string, len(reversed))
	for i, name := range reversed {
		segments[len(reversed)-1-i] = name
	}
	return segments
}

// DeleteDocument removes every chunk of a document and marks it DELETED.
// Chunks are removed first; if that fails the record is left as is.
func (s *DocumentSync) DeleteDocument(ctx context.Context, docID string) (*domain.SyncResult, error) {
	start := time.Now()
	result := &domain.SyncResult{SourceDocID: docID}
	defer func() { result.Duration = time.Since(start) }()

	if err := s.index.DeleteByDocument(ctx, docID); err != nil {
		err = fmt.Errorf("%w: delete chunks of %s: %v", domain.ErrIndexWrite, docID, err)
		result.Action = domain.SyncActionFailed
		result.Error = err.Error()
		return result, err
	}

	if err := s.tracker.MarkDeleted(ctx, docID); err != nil {
		result.Action = domain.SyncActionFailed
		result.Error = err.Error()
		return result, err
	}

	if s.archive != nil {
		if err := s.archive.Delete(ctx, ArchiveKey(docID)); err != nil {
			s.logger.Warn("failed to delete archived copy", "doc_id", docID, "error", err)
		}
	}

	s.logger.Info("document deleted", "doc_id", docID)
	result.Action = domain.SyncActionDeleted
	return result, nil
}

// ScanFolder reconciles every file under folderID that was modified or
// created within window, recursing into subfolders. Per-file failures are
// reported in the results; only a failure to list folderID itself is an error.
func (s *DocumentSync) ScanFolder(ctx context.Context, folderID string, window time.Duration) ([]*domain.SyncResult, error) {
	if window <= 0 {
		window = DefaultScanWindow
	}
	cutoff := time.Now().Add(-window)

	files, err := s.collect(ctx, folderID, cutoff)
	if err != nil {
		return nil, err
	}

	s.logger.Info("folder scan started", "folder_id", folderID, "window", window, "candidates", len(files))

	results := make([]*domain.SyncResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, meta := range files {
		g.Go(func() error {
			res, err := s.UpsertDocument(gctx, meta)
			if err != nil {
				s.logger.Warn("scan upsert failed", "folder_id", folderID, "doc_id", meta.ID, "error", err)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	var indexed, failed int
	for _, r := range results {
		switch r.Action {
		case domain.SyncActionIndexed:
			indexed++
		case domain.SyncActionFailed:
			failed++
		}
	}
	s.logger.Info("folder scan complete", "folder_id", folderID, "indexed", indexed, "failed", failed, "checked", len(results))
	return results, nil
}

// collect lists files changed after cutoff under root, breadth first. A
// folder that cannot be listed is skipped unless it is root.
func (s *DocumentSync) collect(ctx context.Context, root string, cutoff time.Time) ([]*domain.FileMetadata, error) {
	type level struct {
		id    string
		depth int
	}

	var (
		files  []*domain.FileMetadata
		queue  = []level{{id: root}}
		seen   = map[string]bool{root: true}
		picked = map[string]bool{}
	)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		children, err := s.files.ListChildren(ctx, current.id, cutoff)
		if err != nil {
			if current.id == root {
				return nil, fmt.Errorf("list folder %s: %w", root, err)
			}
			s.logger.Warn("failed to list subfolder", "folder_id", current.id, "error", err)
			continue
		}

		for _, child := range children {
			switch {
			case child.IsFolder():
				if seen[child.ID] || current.depth+1 >= maxFolderDepth {
					continue
				}
				seen[child.ID] = true
				queue = append(queue, level{id: child.ID, depth: current.depth + 1})
			case child.Trashed || !child.ChangedWithin(cutoff) || picked[child.ID]:
				continue
			default:
				picked[child.ID] = true
				files = append(files, child)
			}
		}
	}
	return files, nil
}

// ArchiveKey is the object key of a document's archived source file
func ArchiveKey(docID string) string {
	return "documents/" + docID
}

// localName is the on-disk name for a download. Only the extension of the
// remote name is kept.
func localName(meta *domain.FileMetadata) string {
	ext := strings.ToLower(filepath.Ext(meta.Name))
	if strings.ContainsAny(ext, `/\`) || len(ext) > 10 {
		ext = ""
	}
	return "source" + ext
}
