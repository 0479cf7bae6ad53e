package services

import (
	"bytes"
	"fmt"
	"strings"

	"docchat-platform/internal/logger"

	"github.com/ledongthuc/pdf"
)

// ExtractPDFText extracts plain text from PDF bytes. Multi-page
// documents are concatenated into one text blob; pages that fail to
// decode are skipped rather than failing the whole document.
func ExtractPDFText(content []byte) (string, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var textBuilder strings.Builder
	pages := reader.NumPage()

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract text from page", "page", i, "error", err)
			continue
		}

		if textBuilder.Len() > 0 {
			textBuilder.WriteString("\n\n")
		}
		textBuilder.WriteString(text)
	}

	extractedText := textBuilder.String()
	if len(strings.TrimSpace(extractedText)) == 0 {
		return "", pages, fmt.Errorf("no text extracted from PDF")
	}

	return extractedText, pages, nil
}
