package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.FileStore = (*FileStore)(nil)

const (
	fileFields = "id,name,mimeType,parents,modifiedTime,createdTime,trashed,size"
	pageSize   = 1000
)

// Config holds Google Drive client configuration
type Config struct {
	// CredentialsFile is a service-account JSON key path
	CredentialsFile string

	// CredentialsJSON is the service-account key itself; takes precedence over CredentialsFile
	CredentialsJSON []byte

	// Scopes default to read-only Drive access
	Scopes []string

	// Endpoint overrides the API base URL and disables authentication (tests, emulators)
	Endpoint string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// FileStore implements driven.FileStore on the Drive v3 API
type FileStore struct {
	svc    *drive.Service
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Drive-backed FileStore
func New(ctx context.Context, cfg Config) (*FileStore, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts []option.ClientOption
	switch {
	case cfg.Endpoint != "":
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	case len(cfg.CredentialsJSON) > 0:
		opts = append(opts, option.WithCredentialsJSON(cfg.CredentialsJSON))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	default:
		return nil, fmt.Errorf("google credentials: %w", domain.ErrConfigMissing)
	}
	if cfg.Endpoint == "" {
		scopes := cfg.Scopes
		if len(scopes) == 0 {
			scopes = []string{drive.DriveReadonlyScope}
		}
		opts = append(opts, option.WithScopes(scopes...))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &FileStore{svc: svc, logger: logger, now: time.Now}, nil
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

// Classify looks the resource up once. A 404 means missing, not an error.
func (s *FileStore) Classify(ctx context.Context, resourceID string) (domain.ResourceKind, *domain.FileMetadata, error) {
	meta, err := s.GetMetadata(ctx, resourceID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ResourceKindMissing, nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	return meta.Kind(), meta, nil
}

// GetMetadata retrieves metadata for a resource
func (s *FileStore) GetMetadata(ctx context.Context, resourceID string) (*domain.FileMetadata, error) {
	f, err := s.svc.Files.Get(resourceID).
		Fields(fileFields).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if isNotFound(err) {
		return nil, fmt.Errorf("file %s: %w", resourceID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", resourceID, err)
	}
	return toMetadata(f), nil
}

// ListChildren pages through a folder. With a non-zero since, files changed
// before since are dropped; subfolders are always kept.
func (s *FileStore) ListChildren(ctx context.Context, folderID string, since time.Time) ([]*domain.FileMetadata, error) {
	q := fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(folderID))
	call := s.svc.Files.List().
		Q(q).
		Fields(googleapi.Field("nextPageToken, files(" + fileFields + ")")).
		PageSize(pageSize).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true)

	var out []*domain.FileMetadata
	err := call.Pages(ctx, func(page *drive.FileList) error {
		for _, f := range page.Files {
			meta := toMetadata(f)
			if !since.IsZero() && !meta.IsFolder() && !meta.ChangedWithin(since) {
				continue
			}
			out = append(out, meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list children of %s: %w", folderID, err)
	}
	return out, nil
}

// Download streams file content into w
func (s *FileStore) Download(ctx context.Context, fileID string, w io.Writer) error {
	resp, err := s.svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if isNotFound(err) {
		return fmt.Errorf("file %s: %w", fileID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("download %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("read %s: %w", fileID, err)
	}
	return nil
}

// Watch opens a web_hook channel on a folder
func (s *FileStore) Watch(ctx context.Context, req domain.WatchRequest) (*domain.WatchRegistration, error) {
	ch := &drive.Channel{
		Id:      req.ChannelID,
		Type:    "web_hook",
		Address: req.WebhookURL,
		Token:   req.Token,
		Payload: true,
	}
	if req.TTL > 0 {
		ch.Expiration = s.now().Add(req.TTL).UnixMilli()
	}

	got, err := s.svc.Files.Watch(req.FolderID, ch).SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("watch folder %s: %w", req.FolderID, err)
	}
	s.logger.Info("drive watch registered",
		"channel_id", got.Id,
		"folder_id", req.FolderID,
		"resource_id", got.ResourceId,
		"expiration", got.Expiration,
	)
	return &domain.WatchRegistration{ResourceID: got.ResourceId, Expiration: got.Expiration}, nil
}

// StopWatch stops a channel. A channel Drive no longer knows is already stopped.
func (s *FileStore) StopWatch(ctx context.Context, channelID, resourceID string) error {
	err := s.svc.Channels.Stop(&drive.Channel{Id: channelID, ResourceId: resourceID}).Context(ctx).Do()
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("stop channel %s: %w", channelID, err)
	}
	return nil
}

// escapeQuery escapes a value for use inside a single-quoted Drive query string
func escapeQuery(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `'`, `\'`)
}

func toMetadata(f *drive.File) *domain.FileMetadata {
	return &domain.FileMetadata{
		ID:         f.Id,
		Name:       f.Name,
		MimeType:   f.MimeType,
		Parents:    f.Parents,
		ModifiedAt: parseTime(f.ModifiedTime),
		CreatedAt:  parseTime(f.CreatedTime),
		Trashed:    f.Trashed,
		Size:       f.Size,
	}
}

func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return domain.NormalizeTime(t)
}
