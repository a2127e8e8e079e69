package export

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"cardsync/internal/domain"
)

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename replaces non-alphanumeric chars (except - _) with _,
// collapses consecutive underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a download name for an export.
// JSON keeps the artifact name; other formats use {prefix}_{YYYY-MM-DD}.{ext}.
func BuildFilename(prefix string, format domain.ExportFormat) string {
	if format == domain.ExportJSON {
		return ArtifactName
	}
	sanitized := SanitizeFilename(prefix)
	if sanitized == "" {
		sanitized = "extracted_data"
	}
	return fmt.Sprintf("%s_%s.%s", sanitized, time.Now().Format("2006-01-02"), format)
}

// ContentType returns the MIME type of an export format.
func ContentType(format domain.ExportFormat) string {
	switch format {
	case domain.ExportCSV:
		return "text/csv; charset=utf-8"
	case domain.ExportXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// Render encodes records in the requested format.
func Render(records []domain.Record, format domain.ExportFormat) ([]byte, error) {
	switch format {
	case domain.ExportJSON:
		return JSON(records)
	case domain.ExportCSV:
		var b strings.Builder
		if err := WriteCSV(&b, records); err != nil {
			return nil, fmt.Errorf("export.Render: %w", err)
		}
		return []byte(b.String()), nil
	case domain.ExportXLSX:
		return XLSX(records)
	default:
		return nil, fmt.Errorf("export.Render: %w: %q", domain.ErrInvalidFormat, format)
	}
}
