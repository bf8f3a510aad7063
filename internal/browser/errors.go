package browser

import (
	"errors"
	"fmt"
)

// AuthError is returned when the browser rejects the request's credentials.
// Err is set when credentials could not be attached at all.
type AuthError struct {
	URL    string
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("browser authentication failed for %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("browser authentication failed (status %d) for %s", e.Status, e.URL)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError covers connection failures, timeouts and unexpected HTTP
// statuses. Timeout is set when the per-request deadline expired.
type NetworkError struct {
	URL     string
	Status  int
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("browser request timed out for %s: %v", e.URL, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("browser returned status %d for %s", e.Status, e.URL)
	default:
		return fmt.Sprintf("browser request failed for %s: %v", e.URL, e.Err)
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RenderError is returned when the browser answered but the payload is not a
// usable image (empty, an HTML error page, or undecodable bytes).
type RenderError struct {
	URL    string
	Reason string
	Err    error
}

func (e *RenderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bad render from %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("bad render from %s: %s", e.URL, e.Reason)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Kind returns a short classification of a fetch error: "auth", "network",
// "render", "pdf", or "other".
func Kind(err error) string {
	var (
		authErr    *AuthError
		networkErr *NetworkError
		renderErr  *RenderError
		pdfErr     *PDFError
	)
	switch {
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &networkErr):
		return "network"
	case errors.As(err, &renderErr):
		return "render"
	case errors.As(err, &pdfErr):
		return "pdf"
	}
	return "other"
}
