package domain

import (
	"testing"
	"time"
)

func TestClassifyFileType(t *testing.T) {
	tests := []struct {
		mime string
		name string
		want FileType
	}{
		{"application/pdf", "report.pdf", FileTypePDF},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "notes.docx", FileTypeDOCX},
		{"text/plain", "readme.txt", FileTypeText},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "data.xlsx", FileTypeSpreadsheet},
		{"image/png", "scan.PNG", FileTypeImage},
		{"image/jpeg", "photo.jpeg", FileTypeImage},
		{"image/webp", "pic.webp", FileTypeImage},
		{"image/tiff", "scan.tiff", FileTypeUnsupported},
		{"image/png", "noextension", FileTypeUnsupported},
		{"application/vnd.google-apps.document", "Doc", FileTypeUnsupported},
		{FolderMimeType, "Folder", FileTypeUnsupported},
		{"", "", FileTypeUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.mime+"/"+tt.name, func(t *testing.T) {
			if got := ClassifyFileType(tt.mime, tt.name); got != tt.want {
				t.Errorf("ClassifyFileType(%q, %q) = %q, want %q", tt.mime, tt.name, got, tt.want)
			}
		})
	}
}

func TestFileMetadata_Kind(t *testing.T) {
	var missing *FileMetadata
	if missing.Kind() != ResourceKindMissing {
		t.Errorf("expected missing for nil metadata, got %s", missing.Kind())
	}

	folder := &FileMetadata{ID: "f", MimeType: FolderMimeType}
	if folder.Kind() != ResourceKindFolder {
		t.Errorf("expected folder, got %s", folder.Kind())
	}
	if !folder.IsFolder() {
		t.Error("expected IsFolder")
	}

	file := &FileMetadata{ID: "d", MimeType: "application/pdf"}
	if file.Kind() != ResourceKindFile {
		t.Errorf("expected file, got %s", file.Kind())
	}
}

func TestFileMetadata_ChangedWithin(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-30 * time.Minute)

	tests := []struct {
		name     string
		modified time.Time
		created  time.Time
		want     bool
	}{
		{"recently modified", now.Add(-5 * time.Minute), now.Add(-48 * time.Hour), true},
		{"recently created", now.Add(-48 * time.Hour), now.Add(-time.Minute), true},
		{"old", now.Add(-2 * time.Hour), now.Add(-3 * time.Hour), false},
		{"exactly at cutoff", cutoff, cutoff, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &FileMetadata{ModifiedAt: tt.modified, CreatedAt: tt.created}
			if got := m.ChangedWithin(cutoff); got != tt.want {
				t.Errorf("ChangedWithin() = %v, want %v", got, tt.want)
			}
		})
	}
}
