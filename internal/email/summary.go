// Package email renders the run summary mail shared by every sender.
package email

import (
	"fmt"
	"html"
	"strings"

	"cardsync/internal/domain"
)

// SummarySubject returns the subject line of a run summary mail.
func SummarySubject(s domain.RunSummaryMail) string {
	subject := fmt.Sprintf("cardsync run %s: %d new, %d updated", shortID(s), s.Counts.New, s.Counts.Updated)
	if len(s.ChunkFailures) > 0 || s.ReadFailed {
		subject += " (with store errors)"
	}
	return subject
}

// SummaryText returns the plain text body.
func SummaryText(s domain.RunSummaryMail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s processed %d image(s).\n\n", s.RunID, s.Images)
	fmt.Fprintf(&b, "New:     %d\nUpdated: %d\nSkipped: %d\nErrors:  %d\nFailed:  %d\n",
		s.Counts.New, s.Counts.Updated, s.Counts.Skipped, s.Counts.Errors, s.Counts.Failed)
	if s.ReadFailed {
		b.WriteString("\nExisting rows could not be read; every record was treated as new.\n")
	}
	if len(s.ChunkFailures) > 0 {
		b.WriteString("\nWrites the store rejected:\n")
		for _, f := range s.ChunkFailures {
			fmt.Fprintf(&b, "- %s chunk %d (%d records): %s\n", f.Operation, f.Chunk+1, f.Size, f.Error)
		}
	}
	if s.ArtifactURL != "" {
		fmt.Fprintf(&b, "\nDownload the extracted data: %s\n", s.ArtifactURL)
	}
	return b.String()
}

// SummaryHTML returns the HTML body.
func SummaryHTML(s domain.RunSummaryMail) string {
	var rows strings.Builder
	for _, r := range []struct {
		label string
		n     int
	}{
		{"New", s.Counts.New},
		{"Updated", s.Counts.Updated},
		{"Skipped", s.Counts.Skipped},
		{"Errors", s.Counts.Errors},
		{"Failed", s.Counts.Failed},
	} {
		fmt.Fprintf(&rows, `    <tr><td style="padding: 4px 12px;">%s</td><td style="padding: 4px 12px; text-align: right;">%d</td></tr>`+"\n", r.label, r.n)
	}

	var notes strings.Builder
	if s.ReadFailed {
		notes.WriteString(`  <p style="color: #B45309;">Existing rows could not be read; every record was treated as new.</p>` + "\n")
	}
	if len(s.ChunkFailures) > 0 {
		notes.WriteString(`  <p style="color: #B91C1C;">Writes the store rejected:</p>` + "\n  <ul>\n")
		for _, f := range s.ChunkFailures {
			fmt.Fprintf(&notes, "    <li>%s chunk %d (%d records): %s</li>\n",
				html.EscapeString(f.Operation), f.Chunk+1, f.Size, html.EscapeString(f.Error))
		}
		notes.WriteString("  </ul>\n")
	}
	if s.ArtifactURL != "" {
		fmt.Fprintf(&notes, `  <p style="text-align: center; margin: 30px 0;">
    <a href="%s" style="background-color: #4F46E5; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">Download extracted data</a>
  </p>`+"\n", html.EscapeString(s.ArtifactURL))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">Run summary</h2>
  <p>Run %s processed %d image(s).</p>
  <table style="border-collapse: collapse;">
%s  </table>
%s  <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
  <p style="color: #999; font-size: 12px;">cardsync - business card sync</p>
</body>
</html>`, html.EscapeString(s.RunID.String()), s.Images, rows.String(), notes.String())
}

func shortID(s domain.RunSummaryMail) string {
	id := s.RunID.String()
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
