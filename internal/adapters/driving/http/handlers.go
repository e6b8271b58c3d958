package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/swaggo/swag"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

// Google push notification headers
const (
	headerChannelID     = "X-Goog-Channel-ID"
	headerChannelToken  = "X-Goog-Channel-Token"
	headerResourceID    = "X-Goog-Resource-ID"
	headerResourceState = "X-Goog-Resource-State"
	headerMessageNumber = "X-Goog-Message-Number"
	headerChanged       = "X-Goog-Changed"
)

const (
	defaultFailedLimit = 50
	maxFailedLimit     = 500
	readyCheckTimeout  = 3 * time.Second
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ReadyResponse reports dependency health and AI capabilities
// @Description Readiness report
type ReadyResponse struct {
	Status       string            `json:"status" example:"ready"`
	Components   map[string]string `json:"components"`
	IndexBackend string            `json:"index_backend,omitempty" example:"pgvector"`
	QueueBackend string            `json:"queue_backend,omitempty" example:"redis"`
	CanIngest    bool              `json:"can_ingest"`
	CanAnswer    bool              `json:"can_answer"`
}

// WebhookStatusResponse summarises channel and sync state
// @Description Push notification status
type WebhookStatusResponse struct {
	ActiveChannels int                      `json:"active_channels" example:"2"`
	Channels       []*domain.WebhookChannel `json:"channels"`
	SyncStats      *domain.SyncStats        `json:"sync_stats"`
	Queue          *driven.QueueStats       `json:"queue,omitempty"`
}

// CreateChannelRequest registers a channel for a folder
// @Description Channel creation request
type CreateChannelRequest struct {
	FolderID  string `json:"folder_id" example:"1AbCdEfGh"`
	Recursive bool   `json:"recursive,omitempty" example:"false"`
}

// RenewChannelsRequest triggers a manual renewal pass
// @Description Manual renewal request
type RenewChannelsRequest struct {
	ThresholdHours int  `json:"threshold_hours,omitempty" example:"24"`
	Async          bool `json:"async,omitempty"`
}

// ScanFolderRequest triggers a reconciliation scan
// @Description Manual folder scan request
type ScanFolderRequest struct {
	FolderID      string `json:"folder_id" example:"1AbCdEfGh"`
	WindowMinutes int    `json:"window_minutes,omitempty" example:"60"`
	Async         bool   `json:"async,omitempty"`
}

// ScanFolderResponse lists per-document scan results
// @Description Folder scan results
type ScanFolderResponse struct {
	FolderID string               `json:"folder_id"`
	Count    int                  `json:"count"`
	Results  []*domain.SyncResult `json:"results"`
}

// TaskAcceptedResponse identifies a queued background task
// @Description Queued task
type TaskAcceptedResponse struct {
	TaskID string `json:"task_id"`
	Type   string `json:"type" example:"scan_folder"`
}

// RetrieveRequest is the body of a retrieval call
// @Description Retrieval request
type RetrieveRequest struct {
	Query        string `json:"query" example:"What did the Q3 report conclude?"`
	TopKPre      int    `json:"top_k_pre,omitempty" example:"20"`
	TopKPost     int    `json:"top_k_post,omitempty" example:"5"`
	SessionID    string `json:"session_id,omitempty"`
	Conversation string `json:"conversation,omitempty"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the database, cache and vector index
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse  "A dependency is unreachable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Components: make(map[string]string)}
	status := http.StatusOK

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		check := s.checks[name]
		if check == nil {
			continue
		}
		if err := check.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", "component", name, "error", err)
			resp.Components[name] = "unavailable"
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Components[name] = "ok"
	}

	if s.runtime != nil {
		resp.IndexBackend = s.runtime.IndexBackend
		resp.QueueBackend = s.runtime.QueueBackend
		resp.CanIngest = s.runtime.CanIngest()
		resp.CanAnswer = s.runtime.CanAnswer()
	}

	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// handleSwaggerDoc serves the registered OpenAPI document
func (s *Server) handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusNotFound, "api documentation not available")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// Push notifications

// handleDriveWebhook godoc
// @Summary      Receive a Drive change notification
// @Description  Acknowledges every notification with 200. Verification, de-duplication and dispatch happen behind the acknowledgement; failures are logged, never returned.
// @Tags         Webhooks
// @Produce      json
// @Param        X-Goog-Channel-ID      header    string  true   "Channel id"
// @Param        X-Goog-Channel-Token   header    string  false  "Channel token"
// @Param        X-Goog-Resource-ID     header    string  false  "Resource id"
// @Param        X-Goog-Resource-State  header    string  true   "sync, add, update, remove or trash"
// @Param        X-Goog-Message-Number  header    string  false  "Message number"
// @Param        X-Goog-Changed         header    string  false  "Changed aspects"
// @Success      200  {object}  StatusResponse
// @Router       /webhooks/drive [post]
func (s *Server) handleDriveWebhook(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic handling notification", "panic", rec)
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}()

	event := &domain.ChangeEvent{
		ChannelID:     r.Header.Get(headerChannelID),
		Token:         r.Header.Get(headerChannelToken),
		ResourceID:    r.Header.Get(headerResourceID),
		ResourceState: domain.ResourceState(r.Header.Get(headerResourceState)),
		MessageNumber: r.Header.Get(headerMessageNumber),
		Changed:       r.Header.Get(headerChanged),
	}

	if s.notifications == nil {
		s.logger.Warn("notification received with no processor configured", "channel_id", event.ChannelID)
		return
	}

	outcome := s.notifications.Accept(r.Context(), event)
	s.logger.Debug("notification acknowledged",
		"channel_id", event.ChannelID,
		"state", event.ResourceState,
		"message_number", event.MessageNumber,
		"outcome", outcome,
	)
}

// handleWebhookStatus godoc
// @Summary      Push notification status
// @Description  Active channels and document sync counts
// @Tags         Webhooks
// @Produce      json
// @Success      200  {object}  WebhookStatusResponse
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /webhooks/drive/status [get]
func (s *Server) handleWebhookStatus(w http.ResponseWriter, r *http.Request) {
	channels, err := s.channels.ListActive(r.Context())
	if err != nil {
		s.writeServiceError(w, "list channels", err)
		return
	}
	stats, err := s.tracker.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, "sync stats", err)
		return
	}

	if channels == nil {
		channels = []*domain.WebhookChannel{}
	}
	resp := WebhookStatusResponse{
		ActiveChannels: len(channels),
		Channels:       channels,
		SyncStats:      stats,
	}
	if s.queue != nil {
		// queue depth is best effort; the status page still renders without it
		if qs, err := s.queue.Stats(r.Context()); err == nil {
			resp.Queue = qs
		} else {
			s.logger.Warn("queue stats unavailable", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Channel endpoints

// handleCreateChannel godoc
// @Summary      Create a watch channel
// @Description  Registers a push channel for a folder, replacing any active one. With recursive, every folder in the tree without a live channel gets one (admin only)
// @Tags         Channels
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      CreateChannelRequest  true  "Folder to watch"
// @Success      201      {object}  domain.WebhookChannel
// @Success      200      {object}  domain.WatchTreeReport  "recursive: one channel per folder in the tree"
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      403      {object}  ErrorResponse  "Forbidden - admin only"
// @Failure      503      {object}  ErrorResponse  "Webhook URL not configured"
// @Router       /api/v1/channels [post]
func (s *Server) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var req CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FolderID == "" {
		writeError(w, http.StatusBadRequest, "folder_id is required")
		return
	}
	if s.webhookURL == "" {
		writeError(w, http.StatusServiceUnavailable, "webhook url not configured")
		return
	}

	if req.Recursive {
		report, err := s.channels.WatchTree(r.Context(), req.FolderID, s.webhookURL)
		if err != nil {
			s.writeServiceError(w, "watch folder tree", err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}

	channel, err := s.channels.Create(r.Context(), req.FolderID, s.webhookURL)
	if err != nil {
		s.writeServiceError(w, "create channel", err)
		return
	}

	writeJSON(w, http.StatusCreated, channel)
}

// handleListChannels godoc
// @Summary      List active channels
// @Tags         Channels
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.WebhookChannel
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      403  {object}  ErrorResponse  "Forbidden - admin only"
// @Router       /api/v1/channels [get]
func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.channels.ListActive(r.Context())
	if err != nil {
		s.writeServiceError(w, "list channels", err)
		return
	}
	if channels == nil {
		channels = []*domain.WebhookChannel{}
	}
	writeJSON(w, http.StatusOK, channels)
}

// handleGetChannel godoc
// @Summary      Get a channel
// @Tags         Channels
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Channel id"
// @Success      200  {object}  domain.WebhookChannel
// @Failure      404  {object}  ErrorResponse  "Channel not found"
// @Router       /api/v1/channels/{id} [get]
func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	channel, err := s.channels.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, "get channel", err)
		return
	}
	writeJSON(w, http.StatusOK, channel)
}

// handleStopChannel godoc
// @Summary      Stop a channel
// @Description  Stops the channel at Drive and deactivates it. purge=true also removes the record.
// @Tags         Channels
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string  true   "Channel id"
// @Param        purge  query     bool    false  "Remove the record after stopping"
// @Success      200    {object}  StatusResponse
// @Failure      404    {object}  ErrorResponse  "Channel not found"
// @Router       /api/v1/channels/{id} [delete]
func (s *Server) handleStopChannel(w http.ResponseWriter, r *http.Request) {
	channelID := r.PathValue("id")
	if err := s.channels.Stop(r.Context(), channelID); err != nil {
		s.writeServiceError(w, "stop channel", err)
		return
	}

	status := "stopped"
	if purge, _ := strconv.ParseBool(r.URL.Query().Get("purge")); purge {
		if err := s.channels.Delete(r.Context(), channelID); err != nil {
			s.writeServiceError(w, "delete channel", err)
			return
		}
		status = "deleted"
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// handleRenewChannels godoc
// @Summary      Renew expiring channels
// @Description  Replaces active channels expiring within the threshold (admin only)
// @Tags         Channels
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      RenewChannelsRequest  false  "Renewal threshold"
// @Success      200      {object}  domain.RenewalReport
// @Success      202      {object}  TaskAcceptedResponse  "Queued when async is set"
// @Failure      503      {object}  ErrorResponse  "No task queue configured"
// @Router       /api/v1/channels/renew [post]
func (s *Server) handleRenewChannels(w http.ResponseWriter, r *http.Request) {
	var req RenewChannelsRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	threshold := s.renewalThreshold
	if req.ThresholdHours > 0 {
		threshold = time.Duration(req.ThresholdHours) * time.Hour
	}

	if req.Async {
		s.enqueue(r.Context(), w, domain.NewRenewChannelsTask(threshold))
		return
	}

	report, err := s.channels.RenewExpiring(r.Context(), threshold)
	if err != nil {
		s.writeServiceError(w, "renew channels", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Sync endpoints

// handleScanFolder godoc
// @Summary      Scan a folder
// @Description  Reconciles files modified within the window under a folder (admin only)
// @Tags         Sync
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      ScanFolderRequest  true  "Folder and window"
// @Success      200      {object}  ScanFolderResponse
// @Success      202      {object}  TaskAcceptedResponse  "Queued when async is set"
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      404      {object}  ErrorResponse  "Folder not found"
// @Router       /api/v1/sync/scan [post]
func (s *Server) handleScanFolder(w http.ResponseWriter, r *http.Request) {
	var req ScanFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FolderID == "" {
		writeError(w, http.StatusBadRequest, "folder_id is required")
		return
	}
	if req.WindowMinutes < 0 {
		writeError(w, http.StatusBadRequest, "window_minutes must not be negative")
		return
	}

	window := s.defaultScanWindow
	if req.WindowMinutes > 0 {
		window = time.Duration(req.WindowMinutes) * time.Minute
	}

	if req.Async {
		s.enqueue(r.Context(), w, domain.NewScanFolderTask(req.FolderID, window))
		return
	}

	results, err := s.syncer.ScanFolder(r.Context(), req.FolderID, window)
	if err != nil {
		s.writeServiceError(w, "scan folder", err)
		return
	}
	if results == nil {
		results = []*domain.SyncResult{}
	}

	writeJSON(w, http.StatusOK, ScanFolderResponse{
		FolderID: req.FolderID,
		Count:    len(results),
		Results:  results,
	})
}

// handleSyncStats godoc
// @Summary      Sync statistics
// @Tags         Sync
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.SyncStats
// @Router       /api/v1/sync/stats [get]
func (s *Server) handleSyncStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.tracker.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, "sync stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleListFailed godoc
// @Summary      List failed documents
// @Tags         Sync
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query     int  false  "Maximum records (default 50, max 500)"
// @Success      200    {array}   domain.DocumentSyncRecord
// @Failure      400    {object}  ErrorResponse  "Invalid limit"
// @Router       /api/v1/sync/failed [get]
func (s *Server) handleListFailed(w http.ResponseWriter, r *http.Request) {
	limit := defaultFailedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxFailedLimit)
	}

	records, err := s.tracker.ListByStatus(r.Context(), domain.SyncStatusFailed, limit)
	if err != nil {
		s.writeServiceError(w, "list failed", err)
		return
	}
	if records == nil {
		records = []*domain.DocumentSyncRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleGetSyncRecord godoc
// @Summary      Get a document's sync record
// @Tags         Sync
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Source document id"
// @Success      200  {object}  domain.DocumentSyncRecord
// @Failure      404  {object}  ErrorResponse  "Document not tracked"
// @Router       /api/v1/sync/documents/{id} [get]
func (s *Server) handleGetSyncRecord(w http.ResponseWriter, r *http.Request) {
	record, err := s.tracker.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, "get sync record", err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleGetTask godoc
// @Summary      Get a queued task
// @Description  Looks up a task returned by an asynchronous scan or renewal request
// @Tags         Sync
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Task id"
// @Success      200  {object}  domain.Task
// @Failure      404  {object}  ErrorResponse  "Task unknown or expired"
// @Failure      503  {object}  ErrorResponse  "No task queue configured"
// @Router       /api/v1/sync/tasks/{id} [get]
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "tasks run inline; no queue configured")
		return
	}
	task, err := s.queue.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, "get task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Retrieval endpoints

// handleRetrieve godoc
// @Summary      Ask a question
// @Description  Answers from the documents the caller may read. Backend failures produce a fixed apology answer rather than an error.
// @Tags         Retrieval
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      RetrieveRequest  true  "Question"
// @Success      200      {object}  domain.RetrievalResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Router       /api/v1/retrieve [post]
func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.retrieval.Retrieve(r.Context(), &domain.RetrievalRequest{
		Query:        req.Query,
		User:         authCtx.User(),
		TopKPre:      req.TopKPre,
		TopKPost:     req.TopKPost,
		SessionID:    req.SessionID,
		Conversation: req.Conversation,
	})
	if err != nil {
		s.writeServiceError(w, "retrieve", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleMyAccess godoc
// @Summary      Describe the caller's access
// @Tags         Retrieval
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.AccessSummary
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Router       /api/v1/me/access [get]
func (s *Server) handleMyAccess(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, s.access.Summary(authCtx.User()))
}

// Helper functions

// enqueue hands a task to the background queue and answers 202
func (s *Server) enqueue(ctx context.Context, w http.ResponseWriter, task *domain.Task) {
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "no task queue configured")
		return
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.writeServiceError(w, "enqueue task", err)
		return
	}
	writeJSON(w, http.StatusAccepted, TaskAcceptedResponse{TaskID: task.ID, Type: string(task.Type)})
}

// statusForError maps domain errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrResourceMissing):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupportedType):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrChannelInactive):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrTokenInvalid),
		errors.Is(err, domain.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrConfigMissing), errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with its mapped status. Internal errors are
// logged and replaced with a generic message.
func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "op", op, "error", err)
		writeError(w, status, op+" failed")
		return
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
