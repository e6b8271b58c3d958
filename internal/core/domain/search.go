package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FilterKind is the shape of an access predicate pushed down to the index
type FilterKind string

const (
	// FilterNonPIOnly matches is_pi == false
	FilterNonPIOnly FilterKind = "non_pi_only"
	// FilterNonPIOrOwned matches is_pi == false OR (is_pi AND owner_uid == OwnerUID)
	FilterNonPIOrOwned FilterKind = "non_pi_or_owned"
	// FilterDenyAll matches nothing
	FilterDenyAll FilterKind = "deny_all"
)

// AccessFilter is the index-level access predicate for one user
type AccessFilter struct {
	Kind     FilterKind `json:"kind"`
	OwnerUID string     `json:"owner_uid,omitempty"`
}

// Matches evaluates the predicate against chunk access metadata.
// Index adapters without native filtering use it.
func (f AccessFilter) Matches(a AccessMetadata) bool {
	switch f.Kind {
	case FilterNonPIOnly:
		return !a.IsPI
	case FilterNonPIOrOwned:
		return !a.IsPI || (a.OwnerUID != nil && f.OwnerUID != "" && *a.OwnerUID == f.OwnerUID)
	default:
		return false
	}
}

// String renders the predicate for logs
func (f AccessFilter) String() string {
	switch f.Kind {
	case FilterNonPIOnly:
		return "is_pi == false"
	case FilterNonPIOrOwned:
		return fmt.Sprintf("is_pi == false OR (is_pi == true AND owner_uid == %q)", f.OwnerUID)
	default:
		return "deny_all"
	}
}

// ScoredChunk is a chunk returned by similarity search
type ScoredChunk struct {
	Chunk *IndexedChunk `json:"chunk"`
	Score float64       `json:"score"`
}

// RetrievalRequest is one question asked by a user
type RetrievalRequest struct {
	Query        string `json:"query"`
	User         User   `json:"user"`
	TopKPre      int    `json:"top_k_pre"`
	TopKPost     int    `json:"top_k_post"`
	SessionID    string `json:"session_id,omitempty"`
	Conversation string `json:"conversation,omitempty"` // pre-formatted prior turns
}

// RetrievalResponse is the answer to a RetrievalRequest
type RetrievalResponse struct {
	Answer         string   `json:"answer"`
	SanitizedQuery string   `json:"sanitized_query"`
	ChunkCitations []string `json:"chunk_citations"`
	SessionID      string   `json:"session_id"`
	AuditID        string   `json:"audit_id,omitempty"`
}

// AuditRecord is a write-once entry describing what a retrieval returned
type AuditRecord struct {
	AuditID          string    `json:"audit_id"`
	UserID           string    `json:"user_id"`
	UserRole         Role      `json:"user_role"`
	SanitizedQuery   string    `json:"sanitized_query"`
	ChunkIDsReturned []string  `json:"chunk_ids_returned"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewAuditID builds the audit id for a user at t. The random suffix keeps
// ids unique when one user retrieves twice within a millisecond.
func NewAuditID(userID string, t time.Time) string {
	return fmt.Sprintf("audit-%d-%s-%s", t.UnixMilli(), userID, uuid.NewString())
}

// AccessSummary describes which buckets a user can read
type AccessSummary struct {
	UserID       string     `json:"user_id"`
	Role         Role       `json:"role"`
	CanReadPI    bool       `json:"can_read_pi"`
	PIScope      string     `json:"pi_scope"` // "none" or "own"
	CanReadNonPI bool       `json:"can_read_non_pi"`
	Filter       FilterKind `json:"filter"`
}
