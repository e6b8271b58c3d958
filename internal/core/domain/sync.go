package domain

import "time"

// SyncStatus represents the sync state of a single source document
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "PENDING"
	SyncStatusSynced  SyncStatus = "SYNCED"
	SyncStatusFailed  SyncStatus = "FAILED"
	SyncStatusDeleted SyncStatus = "DELETED" // terminal
)

// IsValid reports whether the status is one of the known values
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusPending, SyncStatusSynced, SyncStatusFailed, SyncStatusDeleted:
		return true
	}
	return false
}

// DocumentSyncRecord tracks the sync state of one document in the file store
type DocumentSyncRecord struct {
	SourceDocID    string     `json:"source_doc_id"`
	SourceDocName  string     `json:"source_doc_name"`
	LastModifiedAt *time.Time `json:"last_modified_at,omitempty"` // as reported by the file store
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty"`
	Status         SyncStatus `json:"sync_status"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	RetryCount     int        `json:"retry_count"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NormalizeTime converts t to the precision used for storage and comparison:
// UTC, truncated to milliseconds.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// NewDocumentSyncRecord creates a pending record for a newly observed document
func NewDocumentSyncRecord(docID, name string, modifiedAt time.Time) *DocumentSyncRecord {
	now := time.Now().UTC()
	r := &DocumentSyncRecord{
		SourceDocID:   docID,
		SourceDocName: name,
		Status:        SyncStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if !modifiedAt.IsZero() {
		m := NormalizeTime(modifiedAt)
		r.LastModifiedAt = &m
	}
	return r
}

// NeedsSync reports whether a document observed with modification time
// candidate must be (re)ingested. DELETED records never need sync.
func (r *DocumentSyncRecord) NeedsSync(candidate time.Time) bool {
	if r.Status == SyncStatusDeleted {
		return false
	}
	if r.Status != SyncStatusSynced {
		return true
	}
	if r.LastSyncedAt == nil {
		return true
	}
	if r.LastModifiedAt == nil {
		return !candidate.IsZero()
	}
	return NormalizeTime(candidate).After(*r.LastModifiedAt)
}

// Observe records a re-observation of the document. It never leaves DELETED.
func (r *DocumentSyncRecord) Observe(name string) {
	if name != "" {
		r.SourceDocName = name
	}
	r.UpdatedAt = time.Now().UTC()
}

// MarkSynced records a successful ingestion of the version modified at modifiedAt
func (r *DocumentSyncRecord) MarkSynced(modifiedAt time.Time) {
	now := time.Now().UTC()
	r.Status = SyncStatusSynced
	r.LastSyncedAt = &now
	if !modifiedAt.IsZero() {
		m := NormalizeTime(modifiedAt)
		r.LastModifiedAt = &m
	}
	r.ErrorMessage = ""
	r.RetryCount = 0
	r.UpdatedAt = now
}

// MarkFailed records a failed attempt. LastModifiedAt is left untouched so the
// next observation retries.
func (r *DocumentSyncRecord) MarkFailed(reason string) {
	r.Status = SyncStatusFailed
	r.ErrorMessage = reason
	r.RetryCount++
	r.UpdatedAt = time.Now().UTC()
}

// MarkDeleted moves the record to the terminal DELETED state
func (r *DocumentSyncRecord) MarkDeleted() {
	r.Status = SyncStatusDeleted
	r.ErrorMessage = ""
	r.UpdatedAt = time.Now().UTC()
}

// SyncStats holds counts of sync records by status
type SyncStats struct {
	Pending int `json:"pending"`
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
	Deleted int `json:"deleted"`
	Total   int `json:"total"`
}

// Add increments the counter for status by n
func (s *SyncStats) Add(status SyncStatus, n int) {
	switch status {
	case SyncStatusPending:
		s.Pending += n
	case SyncStatusSynced:
		s.Synced += n
	case SyncStatusFailed:
		s.Failed += n
	case SyncStatusDeleted:
		s.Deleted += n
	}
	s.Total += n
}

// SyncResult summarises the outcome of processing one document
type SyncResult struct {
	SourceDocID string        `json:"source_doc_id"`
	Action      SyncAction    `json:"action"`
	Chunks      int           `json:"chunks"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// SyncAction describes what the processor did with a document
type SyncAction string

const (
	SyncActionIndexed     SyncAction = "indexed"
	SyncActionDeleted     SyncAction = "deleted"
	SyncActionSkipped     SyncAction = "skipped"     // already current
	SyncActionUnsupported SyncAction = "unsupported" // file type not ingested
	SyncActionFailed      SyncAction = "failed"
)
