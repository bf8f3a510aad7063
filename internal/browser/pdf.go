package browser

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"

	"golang.org/x/net/html"
)

var pdfLinkPattern = regexp.MustCompile(`hgt_[a-z0-9_]*\.pdf$`)

// PDFError reports a PDF export that could not be used. The PNG for the same
// region is unaffected.
type PDFError struct {
	URL    string
	Reason string
}

func (e *PDFError) Error() string {
	return fmt.Sprintf("pdf export from %s: %s", e.URL, e.Reason)
}

// FetchPDF asks the browser for a vector export of the region and downloads
// the resulting PDF.
func (c *Client) FetchPDF(ctx context.Context, req RenderRequest) ([]byte, error) {
	q := req.query()
	q.Set("hgt.psOutput", "on")
	page := c.endpoint("hgTracks", q)

	body, _, err := c.get(ctx, page)
	if err != nil {
		return nil, err
	}

	links := findPDFLinks(body)
	if len(links) != 1 {
		return nil, &PDFError{URL: page, Reason: fmt.Sprintf("expected 1 track pdf link, found %d", len(links))}
	}

	base, _ := url.Parse(page)
	ref, err := url.Parse(links[0])
	if err != nil {
		return nil, &PDFError{URL: page, Reason: "bad pdf link " + links[0]}
	}
	target := base.ResolveReference(ref).String()

	pdf, _, err := c.get(ctx, target)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		return nil, &PDFError{URL: target, Reason: "payload is not a pdf"}
	}
	return pdf, nil
}

// findPDFLinks returns distinct anchor targets that look like track PDFs.
func findPDFLinks(body []byte) []string {
	var links []string
	seen := make(map[string]bool)
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return links
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := z.TagName()
		if string(name) != "a" {
			continue
		}
		for hasAttr {
			var key, val []byte
			key, val, hasAttr = z.TagAttr()
			if string(key) != "href" {
				continue
			}
			href := string(val)
			if pdfLinkPattern.MatchString(href) && !seen[href] {
				seen[href] = true
				links = append(links, href)
			}
		}
	}
}
