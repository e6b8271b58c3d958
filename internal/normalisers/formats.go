package normalisers

import (
	"strings"
	"unicode"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.Normaliser = (*PlaintextNormaliser)(nil)
	_ driven.Normaliser = (*PDFNormaliser)(nil)
	_ driven.Normaliser = (*WordNormaliser)(nil)
	_ driven.Normaliser = (*SpreadsheetNormaliser)(nil)
)

// PlaintextNormaliser is the fallback for any type
type PlaintextNormaliser struct{}

func (n *PlaintextNormaliser) Normalise(content string, _ string) string {
	return strings.TrimSpace(cleanText(content))
}

func (n *PlaintextNormaliser) SupportedTypes() []string {
	return []string{domain.MimeTypeText, "*/*"}
}

func (n *PlaintextNormaliser) Priority() int {
	return 1
}

// PDFNormaliser repairs the layout artefacts of pdftotext output:
// words hyphenated across lines and hard-wrapped paragraphs.
type PDFNormaliser struct{}

func (n *PDFNormaliser) Normalise(content string, _ string) string {
	content = cleanText(content)
	content = strings.ReplaceAll(content, "\f", "\n\n")

	paragraphs := strings.Split(content, "\n\n")
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if joined := joinWrappedLines(p); joined != "" {
			out = append(out, joined)
		}
	}
	return strings.Join(out, "\n\n")
}

func (n *PDFNormaliser) SupportedTypes() []string {
	return []string{domain.MimeTypePDF}
}

func (n *PDFNormaliser) Priority() int {
	return 60
}

// joinWrappedLines merges the lines of one paragraph into a single line
func joinWrappedLines(paragraph string) string {
	var b strings.Builder
	for _, line := range strings.Split(paragraph, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if b.Len() > 0 {
			cur := b.String()
			if strings.HasSuffix(cur, "-") && startsLower(line) {
				b.Reset()
				b.WriteString(strings.TrimSuffix(cur, "-"))
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(line)
	}
	return b.String()
}

func startsLower(s string) bool {
	for _, r := range s {
		return unicode.IsLower(r)
	}
	return false
}

// WordNormaliser handles docx output, one paragraph per line
type WordNormaliser struct{}

func (n *WordNormaliser) Normalise(content string, _ string) string {
	lines := strings.Split(cleanText(content), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = collapseSpaces(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n\n")
}

func (n *WordNormaliser) SupportedTypes() []string {
	return []string{domain.MimeTypeDOCX}
}

func (n *WordNormaliser) Priority() int {
	return 60
}

// SpreadsheetNormaliser trims empty cells from tab separated rows and
// drops rows with no values.
type SpreadsheetNormaliser struct{}

func (n *SpreadsheetNormaliser) Normalise(content string, _ string) string {
	rows := strings.Split(cleanText(content), "\n")
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		cells := strings.Split(row, "\t")
		values := cells[:0]
		for _, c := range cells {
			if c = strings.TrimSpace(c); c != "" {
				values = append(values, c)
			}
		}
		if len(values) > 0 {
			out = append(out, strings.Join(values, " | "))
		}
	}
	return strings.Join(out, "\n")
}

func (n *SpreadsheetNormaliser) SupportedTypes() []string {
	return []string{domain.MimeTypeXLSX}
}

func (n *SpreadsheetNormaliser) Priority() int {
	return 60
}

// cleanText normalizes line endings and strips the BOM and control
// characters other than tab, newline and form feed.
func cleanText(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\f' {
			return r
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, s)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
