package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // some browser mirrors answer with GIF renders
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBrowserURL is the public UCSC genome browser.
const DefaultBrowserURL = "https://genome.ucsc.edu"

// DefaultTimeout bounds each HTTP request.
const DefaultTimeout = 60 * time.Second

// maxBody caps how much of a response is read into memory.
const maxBody = 64 << 20

// Options configures a Client.
type Options struct {
	BrowserURL string
	Timeout    time.Duration
	Auth       Auth
	HTTPClient *http.Client // overrides Timeout when set
	Logger     *zap.Logger
}

// Client fetches renderings from one genome browser host. It holds no
// per-region state and is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	auth       Auth
	logger     *zap.Logger
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	raw := opts.BrowserURL
	if raw == "" {
		raw = DefaultBrowserURL
	}
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse browser url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("browser url %q must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("browser url %q has no host", raw)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	auth := opts.Auth
	if auth == nil {
		auth = NoAuth()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{baseURL: u, httpClient: hc, auth: auth, logger: logger}, nil
}

// BaseURL returns the browser root URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) endpoint(cgi string, q url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/cgi-bin/" + cgi
	u.RawQuery = q.Encode()
	return u.String()
}

// ExternalURL links the region into the interactive browser view.
func (c *Client) ExternalURL(req RenderRequest) string {
	return fmt.Sprintf("%s/cgi-bin/hgTracks?db=%s&position=%s&hgsid=%s",
		c.BaseURL(),
		url.QueryEscape(req.Build),
		url.QueryEscape(req.Interval.Position()),
		url.QueryEscape(req.SessionID))
}

// Fetch renders the request's interval and returns the decoded image.
// No retry is attempted.
func (c *Client) Fetch(ctx context.Context, req RenderRequest) (*FetchedImage, error) {
	target := c.endpoint("hgRenderTracks", req.query())
	c.logger.Debug("fetching rendering", zap.String("url", target))

	body, contentType, err := c.get(ctx, target)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, &RenderError{URL: target, Reason: "empty image payload"}
	}
	if mt, _, _ := mime.ParseMediaType(contentType); strings.HasPrefix(mt, "text/") {
		return nil, &RenderError{URL: target, Reason: "browser returned " + mt + ": " + excerpt(body)}
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, &RenderError{URL: target, Reason: "undecodable image", Err: err}
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, &RenderError{URL: target, Reason: "zero-sized image"}
	}

	return &FetchedImage{
		Request: req,
		Data:    body,
		Image:   img,
		Width:   b.Dx(),
		Height:  b.Dy(),
	}, nil
}

// get issues an authenticated GET and classifies failures.
func (c *Client) get(ctx context.Context, target string) ([]byte, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	if err := c.auth.Apply(httpReq); err != nil {
		return nil, "", &AuthError{URL: target, Err: err}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, "", &NetworkError{URL: target, Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(target, resp); err != nil {
		return nil, "", err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, "", &NetworkError{URL: target, Timeout: isTimeout(err), Err: err}
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func checkStatus(target string, resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusProxyAuthRequired:
		return &AuthError{URL: target, Status: resp.StatusCode}
	default:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &NetworkError{URL: target, Status: resp.StatusCode}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func excerpt(body []byte) string {
	s := strings.Join(strings.Fields(string(body)), " ")
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}
