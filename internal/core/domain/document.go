package domain

import (
	"path"
	"strings"
	"time"
)

// FolderMimeType is the mime type the file store reports for folders
const FolderMimeType = "application/vnd.google-apps.folder"

// ResourceKind is the explicit classification of a resource lookup
type ResourceKind string

const (
	ResourceKindFile    ResourceKind = "file"
	ResourceKindFolder  ResourceKind = "folder"
	ResourceKindMissing ResourceKind = "missing"
)

// FileMetadata is the authoritative metadata of a file store resource
type FileMetadata struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	MimeType   string    `json:"mime_type"`
	Parents    []string  `json:"parents,omitempty"`
	ModifiedAt time.Time `json:"modified_at"`
	CreatedAt  time.Time `json:"created_at"`
	Trashed    bool      `json:"trashed"`
	Size       int64     `json:"size"`
}

// IsFolder reports whether the resource is a folder
func (m *FileMetadata) IsFolder() bool {
	return m.MimeType == FolderMimeType
}

// Kind returns the resource kind for known metadata
func (m *FileMetadata) Kind() ResourceKind {
	if m == nil {
		return ResourceKindMissing
	}
	if m.IsFolder() {
		return ResourceKindFolder
	}
	return ResourceKindFile
}

// ChangedWithin reports whether the file was modified or created after cutoff
func (m *FileMetadata) ChangedWithin(cutoff time.Time) bool {
	return m.ModifiedAt.After(cutoff) || m.CreatedAt.After(cutoff)
}

// FileType is the ingestion category of a file
type FileType string

const (
	FileTypePDF         FileType = "pdf"
	FileTypeDOCX        FileType = "docx"
	FileTypeText        FileType = "text"
	FileTypeSpreadsheet FileType = "xlsx"
	FileTypeImage       FileType = "image"
	FileTypeUnsupported FileType = ""
)

// Mime types of the supported document formats
const (
	MimeTypePDF  = "application/pdf"
	MimeTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeTypeText = "text/plain"
	MimeTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var mimeFileTypes = map[string]FileType{
	MimeTypePDF:  FileTypePDF,
	MimeTypeDOCX: FileTypeDOCX,
	MimeTypeText: FileTypeText,
	MimeTypeXLSX: FileTypeSpreadsheet,
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".webp": true,
}

// ClassifyFileType derives the ingestion category from mime type and name.
// Images are accepted only when the extension is a known raster format.
func ClassifyFileType(mimeType, name string) FileType {
	if ft, ok := mimeFileTypes[mimeType]; ok {
		return ft
	}
	if strings.HasPrefix(mimeType, "image/") {
		if imageExtensions[strings.ToLower(path.Ext(name))] {
			return FileTypeImage
		}
	}
	return FileTypeUnsupported
}

// IndexedChunk is a chunk as stored in the vector index
type IndexedChunk struct {
	ChunkID      string         `json:"chunk_id"`
	SourceDocID  string         `json:"source_doc_id"`
	DocumentName string         `json:"document_name"`
	Page         int            `json:"page"`
	Position     int            `json:"position"`
	Text         string         `json:"text"`
	Embedding    []float32      `json:"embedding,omitempty"`
	Access       AccessMetadata `json:"access"`
}

// DocumentContent is a downloaded file handed to the ingestion service
type DocumentContent struct {
	Path     string         `json:"path"` // local path of the downloaded file
	Metadata *FileMetadata  `json:"metadata"`
	FileType FileType       `json:"file_type"`
	Access   AccessMetadata `json:"access"`
	Folder   string         `json:"folder"` // resolved logical folder path
}
