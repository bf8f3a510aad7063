package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/soda/internal/bed"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		img.Set(x, h/2, color.NRGBA{0, 0, 255, 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testRequest() RenderRequest {
	return RenderRequest{
		Interval:  bed.Interval{Chrom: "chr1", Start: 500, End: 2500, Label: "myregion"},
		Build:     "hg38",
		SessionID: "123_abc",
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, opts Options) *Client {
	t.Helper()
	opts.BrowserURL = srv.URL
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func TestFetch(t *testing.T) {
	payload := testPNG(t, 120, 40)
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cgi-bin/hgRenderTracks", r.URL.Path)
		gotQuery = map[string]string{
			"hgsid":    r.URL.Query().Get("hgsid"),
			"db":       r.URL.Query().Get("db"),
			"position": r.URL.Query().Get("position"),
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Options{})
	got, err := c.Fetch(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"hgsid": "123_abc", "db": "hg38", "position": "chr1:500-2500"}, gotQuery)
	assert.Equal(t, 120, got.Width)
	assert.Equal(t, 40, got.Height)
	assert.Equal(t, payload, got.Data)
	assert.Equal(t, testRequest(), got.Request)
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			check: func(t *testing.T, err error) {
				var ae *AuthError
				require.True(t, errors.As(err, &ae))
				assert.Equal(t, http.StatusUnauthorized, ae.Status)
				assert.Equal(t, "auth", Kind(err))
			},
		},
		{
			name: "forbidden",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
			check: func(t *testing.T, err error) {
				var ae *AuthError
				require.True(t, errors.As(err, &ae))
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			check: func(t *testing.T, err error) {
				var ne *NetworkError
				require.True(t, errors.As(err, &ne))
				assert.Equal(t, http.StatusInternalServerError, ne.Status)
				assert.Equal(t, "network", Kind(err))
			},
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "image/png")
			},
			check: func(t *testing.T, err error) {
				var re *RenderError
				require.True(t, errors.As(err, &re))
				assert.Contains(t, re.Reason, "empty")
			},
		},
		{
			name: "html error page",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.Write([]byte("<html><body>Sorry, position not found</body></html>"))
			},
			check: func(t *testing.T, err error) {
				var re *RenderError
				require.True(t, errors.As(err, &re))
				assert.Contains(t, re.Reason, "position not found")
				assert.Equal(t, "render", Kind(err))
			},
		},
		{
			name: "garbage bytes",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "image/png")
				w.Write([]byte("\x89PNG not really"))
			},
			check: func(t *testing.T, err error) {
				var re *RenderError
				require.True(t, errors.As(err, &re))
				assert.Error(t, re.Unwrap())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := newTestClient(t, srv, Options{})
			img, err := c.Fetch(context.Background(), testRequest())
			require.Error(t, err)
			assert.Nil(t, img)
			tt.check(t, err)
		})
	}
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(t, srv, Options{Timeout: 50 * time.Millisecond})
	_, err := c.Fetch(context.Background(), testRequest())
	require.Error(t, err)

	var ne *NetworkError
	require.True(t, errors.As(err, &ne))
	assert.True(t, ne.Timeout)
}

func TestFetch_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := newTestClient(t, srv, Options{})
	srv.Close()

	_, err := c.Fetch(context.Background(), testRequest())
	var ne *NetworkError
	require.True(t, errors.As(err, &ne))
	assert.Zero(t, ne.Status)
}

func TestFetch_BasicAuth(t *testing.T) {
	payload := testPNG(t, 10, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "alice" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write(payload)
	}))
	defer srv.Close()

	anon := newTestClient(t, srv, Options{})
	_, err := anon.Fetch(context.Background(), testRequest())
	var ae *AuthError
	require.True(t, errors.As(err, &ae))

	authed := newTestClient(t, srv, Options{Auth: BasicAuth("alice", "secret")})
	img, err := authed.Fetch(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, 10, img.Width)
}

func TestResolveAuth(t *testing.T) {
	a, err := ResolveAuth("", "", false, TicketOptions{})
	require.NoError(t, err)
	assert.Equal(t, "none", a.Name())

	a, err = ResolveAuth("bob", "pw", false, TicketOptions{})
	require.NoError(t, err)
	assert.Equal(t, "basic", a.Name())

	// Ticket wins over basic; a missing config file surfaces as an error.
	_, err = ResolveAuth("bob", "pw", true, TicketOptions{ConfigPath: "/nonexistent/krb5.conf"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kerberos config")
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New(Options{BrowserURL: "ftp://example.org"})
	assert.Error(t, err)
	_, err = New(Options{BrowserURL: "http://"})
	assert.Error(t, err)

	c, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBrowserURL, c.BaseURL())
}

func TestExternalURL(t *testing.T) {
	c, err := New(Options{BrowserURL: "https://genome.example.org/"})
	require.NoError(t, err)
	assert.Equal(t,
		"https://genome.example.org/cgi-bin/hgTracks?db=hg38&position=chr1%3A500-2500&hgsid=123_abc",
		c.ExternalURL(testRequest()))
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&AuthError{URL: "u", Status: 401}, "auth"},
		{fmt.Errorf("fetch row 3: %w", &AuthError{URL: "u", Status: 403}), "auth"},
		{&NetworkError{URL: "u", Timeout: true}, "network"},
		{fmt.Errorf("fetch: %w", &NetworkError{URL: "u", Status: 502}), "network"},
		{fmt.Errorf("fetch: %w", &RenderError{URL: "u", Reason: "empty image payload"}), "render"},
		{fmt.Errorf("pdf: %w", &PDFError{URL: "u", Reason: "no link"}), "pdf"},
		{errors.New("boom"), "other"},
		{nil, "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err), "%v", tt.err)
	}
}
