package parsing

import (
	"bytes"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractTextFromPDF takes a byte slice of a PDF file and returns the extracted plain text.
func ExtractTextFromPDF(pdfData []byte) (string, error) {
	reader := bytes.NewReader(pdfData)
	pdfReader, err := pdf.NewReader(reader, int64(len(pdfData)))
	if err != nil {
		return "", fmt.Errorf("error creating PDF reader: %w", err)
	}

	b, err := pdfReader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("could not read content of pdf: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(b); err != nil {
		return "", fmt.Errorf("could not read content of pdf: %w", err)
	}
	return buf.String(), nil
}

// IsPDF reports whether a fetched document is a PDF, judging by content type,
// then by the file extension of its URL path, then by the magic bytes.
func IsPDF(contentType, urlPath string, head []byte) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType == "application/pdf" {
		return true
	}
	if strings.EqualFold(path.Ext(urlPath), ".pdf") {
		return true
	}
	return bytes.HasPrefix(head, []byte("%PDF-"))
}
