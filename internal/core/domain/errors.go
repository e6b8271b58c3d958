package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the user lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrTokenMismatch indicates a notification carried the wrong shared secret
	ErrTokenMismatch = errors.New("notification token mismatch")

	// ErrChannelInactive indicates the channel exists but is no longer the active one
	ErrChannelInactive = errors.New("channel inactive")

	// ErrResourceMissing indicates the file store could not see the resource (yet)
	ErrResourceMissing = errors.New("resource missing")

	// ErrUnsupportedType indicates the file type cannot be ingested
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrDownloadFailed indicates the source file could not be downloaded
	ErrDownloadFailed = errors.New("download failed")

	// ErrProcessingFailed indicates parsing, chunking or embedding failed
	ErrProcessingFailed = errors.New("processing failed")

	// ErrNoChunks indicates ingestion produced no chunks
	ErrNoChunks = errors.New("no chunks generated")

	// ErrIndexWrite indicates the vector index rejected a write
	ErrIndexWrite = errors.New("index write failed")

	// ErrConfigMissing indicates required configuration is absent
	ErrConfigMissing = errors.New("configuration missing")

	// ErrAccessDenied indicates the role grants no access to any chunk
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates an AI or index service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")
)
