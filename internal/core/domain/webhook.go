package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ChannelStatus is the lifecycle state of a webhook channel
type ChannelStatus string

const (
	ChannelStatusActive   ChannelStatus = "active"
	ChannelStatusInactive ChannelStatus = "inactive"
)

// DefaultChannelPrefix prefixes every channel id this service creates
const DefaultChannelPrefix = "sdw"

// WebhookChannel is a registered push-notification subscription on a folder
type WebhookChannel struct {
	ID         string        `json:"id"`
	ChannelID  string        `json:"channel_id"`
	ResourceID string        `json:"resource_id"`
	FolderID   string        `json:"folder_id"`
	WebhookURL string        `json:"webhook_url"`
	Expiration int64         `json:"expiration"` // epoch ms
	Status     ChannelStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// IsActive reports whether the channel is the live subscription for its folder
func (c *WebhookChannel) IsActive() bool {
	return c.Status == ChannelStatusActive
}

// ExpiresAt returns the expiration as a time
func (c *WebhookChannel) ExpiresAt() time.Time {
	return time.UnixMilli(c.Expiration)
}

// ExpiresWithin reports whether the channel expires within threshold of now
func (c *WebhookChannel) ExpiresWithin(now time.Time, threshold time.Duration) bool {
	return c.Expiration-now.UnixMilli() <= threshold.Milliseconds()
}

// EncodeChannelID builds a channel id that embeds the full folder id
// unambiguously: {prefix}-{len(folderID)}-{folderID}-{suffix}.
func EncodeChannelID(prefix, folderID, suffix string) string {
	return fmt.Sprintf("%s-%d-%s-%s", prefix, len(folderID), folderID, suffix)
}

// DecodeChannelID extracts the folder id from a channel id produced by
// EncodeChannelID. Any id not matching the encoding exactly is rejected.
func DecodeChannelID(prefix, channelID string) (string, error) {
	rest, ok := strings.CutPrefix(channelID, prefix+"-")
	if !ok {
		return "", fmt.Errorf("channel id %q: %w", channelID, ErrInvalidInput)
	}
	lenStr, rest, ok := strings.Cut(rest, "-")
	if !ok {
		return "", fmt.Errorf("channel id %q: %w", channelID, ErrInvalidInput)
	}
	n, err := strconv.Atoi(lenStr)
	if err != nil || n <= 0 || strconv.Itoa(n) != lenStr || n > len(rest) {
		return "", fmt.Errorf("channel id %q: %w", channelID, ErrInvalidInput)
	}
	folderID, tail := rest[:n], rest[n:]
	suffix, ok := strings.CutPrefix(tail, "-")
	if !ok || suffix == "" {
		return "", fmt.Errorf("channel id %q: %w", channelID, ErrInvalidInput)
	}
	return folderID, nil
}

// WatchRequest asks the file store to push changes for a folder
type WatchRequest struct {
	ChannelID  string
	FolderID   string
	WebhookURL string
	Token      string
	TTL        time.Duration
}

// WatchRegistration is the file store's answer to a WatchRequest
type WatchRegistration struct {
	ResourceID string
	Expiration int64 // epoch ms
}

// RenewalReport summarises one renewal pass
type RenewalReport struct {
	Checked int      `json:"checked"`
	Renewed int      `json:"renewed"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// WatchTreeReport summarises one WatchTree walk
type WatchTreeReport struct {
	RootFolderID string   `json:"root_folder_id"`
	Folders      int      `json:"folders"`
	Created      int      `json:"created"`
	Existing     int      `json:"existing"`
	Failed       int      `json:"failed"`
	Errors       []string `json:"errors,omitempty"`
}
