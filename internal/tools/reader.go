package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/williammiras/dash/internal/parsing"
)

const (
	PageReaderName        = "read_page"
	PageReaderDescription = "Fetch a web page or PDF and return its text. Use it to confirm a dataset page before recommending it. Input should be a single absolute http(s) URL."
)

var (
	ErrInvalidURL     = errors.New("input must be an absolute http or https URL")
	ErrBlockedAddress = errors.New("address is not publicly routable")
)

type PageReaderConfig struct {
	MaxBytes int64
	MaxChars int
	Timeout  time.Duration
	// AllowPrivateNetworks lets the reader reach loopback, private and link-local hosts.
	AllowPrivateNetworks bool
}

// PageReader downloads a document and returns its readable text.
type PageReader struct {
	cfg    PageReaderConfig
	client *resty.Client
}

func NewPageReader(cfg PageReaderConfig) *PageReader {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 5 << 20
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 8000
	}
	client := resty.New().
		SetHeader("User-Agent", "dash-dataset-scout/1.0").
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	if !cfg.AllowPrivateNetworks {
		client.SetTransport(publicTransport())
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &PageReader{cfg: cfg, client: client}
}

// publicTransport refuses connections to non-public addresses. The check runs on the
// resolved IP of every dial, so redirects and DNS names are covered. Proxies are not used.
func publicTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control: func(_, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			if ip := net.ParseIP(host); ip == nil || !isPublicIP(ip) {
				return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
			}
			return nil
		},
	}
	return &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

var sharedAddressSpace = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

func isPublicIP(ip net.IP) bool {
	return !(ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified() ||
		sharedAddressSpace.Contains(ip))
}

func (p *PageReader) Name() string        { return PageReaderName }
func (p *PageReader) Description() string { return PageReaderDescription }

// Call fetches one page. Problems with the page itself (bad URL, refused address,
// error status, size, unreadable content) come back as text so the model can drop
// the source; only transport failures are returned as errors.
func (p *PageReader) Call(ctx context.Context, input string) (string, error) {
	target, err := parseTarget(input)
	if err != nil {
		return fmt.Sprintf("cannot read %q: %s", strings.TrimSpace(input), err), nil
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(target.String())
	if errors.Is(err, ErrBlockedAddress) {
		return fmt.Sprintf("fetch %s: %s", target, ErrBlockedAddress), nil
	}
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", target, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		return fmt.Sprintf("fetch %s: status %d", target, resp.StatusCode()), nil
	}

	data, err := readLimited(body, p.cfg.MaxBytes)
	if errors.Is(err, errTooLarge) {
		return fmt.Sprintf("read %s: %s", target, err), nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", target, err)
	}

	contentType := resp.Header().Get("Content-Type")
	var title, text string
	if parsing.IsPDF(contentType, target.Path, data) {
		text, err = parsing.ExtractTextFromPDF(data)
	} else if strings.Contains(contentType, "html") || contentType == "" {
		title, text, err = parsing.ExtractTextFromHTML(data)
	} else if strings.HasPrefix(contentType, "text/") || strings.Contains(contentType, "json") || strings.Contains(contentType, "csv") {
		text = string(data)
	} else {
		return fmt.Sprintf("%s is a %s document; its contents cannot be read as text.", target, contentType), nil
	}
	if err != nil {
		return fmt.Sprintf("extract text from %s: %s", target, err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", target)
	if title != "" {
		fmt.Fprintf(&b, "Title: %s\n", title)
	}
	b.WriteString(truncate(strings.TrimSpace(text), p.cfg.MaxChars))
	return b.String(), nil
}

func parseTarget(input string) (*url.URL, error) {
	raw := strings.Trim(strings.TrimSpace(input), `"'<>`)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, ErrInvalidURL
	}
	return u, nil
}

var errTooLarge = errors.New("document is too large")

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", errTooLarge, limit)
	}
	return data, nil
}

// truncate cuts s to at most n runes, marking the cut.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "\n[truncated]"
}
