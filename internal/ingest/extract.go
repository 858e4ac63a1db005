package ingest

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"
)

func isPDF(fileName, contentType string) bool {
	return contentType == "application/pdf" ||
		strings.HasSuffix(strings.ToLower(fileName), ".pdf")
}

func isJSON(fileName, contentType string) bool {
	return contentType == "application/json" ||
		strings.HasSuffix(strings.ToLower(fileName), ".json")
}

// sniffJSON detects undeclared JSON uploads: anything whose first
// non-whitespace byte opens an object.
func sniffJSON(content string) bool {
	return strings.HasPrefix(strings.TrimSpace(content), "{")
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", err
	}
	return buf.String(), nil
}
