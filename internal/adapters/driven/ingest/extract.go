package ingest

import (
	"context"
	"fmt"
	"os"
	"strings"

	"code.sajari.com/docconv"
	"github.com/xuri/excelize/v2"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
)

// page is the extracted text of one page, or one sheet for spreadsheets.
// Numbers start at 1.
type page struct {
	number int
	text   string
}

// extractor pulls raw text out of a downloaded file
type extractor func(ctx context.Context, path, mimeType string) ([]page, error)

func defaultExtractors() map[domain.FileType]extractor {
	return map[domain.FileType]extractor{
		domain.FileTypePDF:         extractPDF,
		domain.FileTypeDOCX:        extractDocconv,
		domain.FileTypeImage:       extractDocconv,
		domain.FileTypeText:        extractText,
		domain.FileTypeSpreadsheet: extractSpreadsheet,
	}
}

func convert(path, mimeType string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	res, err := docconv.Convert(f, mimeType, false)
	if err != nil {
		return "", fmt.Errorf("docconv %s: %w", mimeType, err)
	}
	return res.Body, nil
}

// extractDocconv returns the whole document as page 1
func extractDocconv(_ context.Context, path, mimeType string) ([]page, error) {
	body, err := convert(path, mimeType)
	if err != nil {
		return nil, err
	}
	return []page{{number: 1, text: body}}, nil
}

// extractPDF splits on form feeds when the converter emits page breaks
func extractPDF(ctx context.Context, path, mimeType string) ([]page, error) {
	body, err := convert(path, mimeType)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(body, "\f")
	pages := make([]page, 0, len(parts))
	for i, text := range parts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, page{number: i + 1, text: text})
	}
	return pages, nil
}

func extractText(_ context.Context, path, _ string) ([]page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return []page{{number: 1, text: string(data)}}, nil
}

// extractSpreadsheet emits one page per sheet: the sheet name followed by
// its rows as tab separated lines
func extractSpreadsheet(ctx context.Context, path, _ string) ([]page, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var pages []page
	for i, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}

		var b strings.Builder
		b.WriteString("Sheet: " + sheet + "\n")
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteByte('\n')
		}
		pages = append(pages, page{number: i + 1, text: b.String()})
	}
	return pages, nil
}
