package ocr

import "strings"

// Paragraphs groups tesseract output into paragraphs. Paragraphs are
// separated by blank lines; the lines of a paragraph are joined with
// single spaces.
func Paragraphs(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\f", "\n")

	var (
		out     []string
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.Join(current, " "))
			current = current[:0]
		}
	}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return out
}

// JoinParagraphs renders recognized paragraphs as the text handed to the
// structurer.
func JoinParagraphs(paragraphs []string) string {
	return strings.Join(paragraphs, "\n")
}
