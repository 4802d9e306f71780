package parsing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTextFromHTML(t *testing.T) {
	page := `<!doctype html>
<html>
<head><title> Housing Prices Dataset </title><style>body{color:red}</style></head>
<body>
  <nav>Home | About</nav>
  <h1>Housing   Prices</h1>
  <p>Monthly median sale prices by county.</p>
  <script>var tracking = true;</script>
  <footer>Copyright</footer>
</body>
</html>`

	title, text, err := ExtractTextFromHTML([]byte(page))

	require.NoError(t, err)
	assert.Equal(t, "Housing Prices Dataset", title)
	assert.Equal(t, "Housing Prices\nMonthly median sale prices by county.", text)
}

func TestIsPDF(t *testing.T) {
	testCases := []struct {
		name        string
		contentType string
		urlPath     string
		head        []byte
		expected    bool
	}{
		{"content type", "application/pdf", "/download", nil, true},
		{"content type with params", "application/pdf; charset=binary", "/download", nil, true},
		{"extension", "application/octet-stream", "/files/report.PDF", nil, true},
		{"magic bytes", "", "/download", []byte("%PDF-1.7\n"), true},
		{"html page", "text/html; charset=utf-8", "/dataset", []byte("<!doctype html>"), false},
	}
	for _, tc := range testCases {
		t.Run("Should detect "+tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsPDF(tc.contentType, tc.urlPath, tc.head))
		})
	}
}

func TestExtractTextFromPDF_Invalid(t *testing.T) {
	_, err := ExtractTextFromPDF([]byte("not a pdf"))

	assert.Error(t, err)
}
