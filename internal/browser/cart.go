package browser

import (
	"bytes"
	"context"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Cart defaults used when the session does not override them.
const (
	DefaultTextSize   = 8
	DefaultLabelWidth = 17
)

// CartSettings are the session settings that shape the rendered geometry.
type CartSettings struct {
	TextSize   int // hgt text size in points
	LabelWidth int // track label column width in characters
}

// DefaultCartSettings returns the browser's stock settings.
func DefaultCartSettings() CartSettings {
	return CartSettings{TextSize: DefaultTextSize, LabelWidth: DefaultLabelWidth}
}

// CartSettings reads textSize and hgt.labelWidth from the session cart.
// Missing or unparsable values keep their defaults.
func (c *Client) CartSettings(ctx context.Context, sessionID string) (CartSettings, error) {
	q := url.Values{}
	q.Set("hgsid", sessionID)
	target := c.endpoint("cartDump", q)

	body, _, err := c.get(ctx, target)
	if err != nil {
		return DefaultCartSettings(), err
	}
	settings := parseCartDump(body)
	c.logger.Debug("cart settings",
		zap.Int("textSize", settings.TextSize),
		zap.Int("labelWidth", settings.LabelWidth))
	return settings, nil
}

// parseCartDump extracts settings from cartDump output, which is "name value"
// lines, possibly wrapped in HTML.
func parseCartDump(body []byte) CartSettings {
	settings := DefaultCartSettings()
	for _, line := range strings.Split(visibleText(body), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.Atoi(fields[1])
		if err != nil || v <= 0 {
			continue
		}
		switch fields[0] {
		case "textSize":
			settings.TextSize = v
		case "hgt.labelWidth":
			settings.LabelWidth = v
		}
	}
	return settings
}

// visibleText drops markup and returns the text content of body.
func visibleText(body []byte) string {
	var sb strings.Builder
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.TextToken:
			sb.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "br" || string(name) == "tr" || string(name) == "p" {
				sb.WriteByte('\n')
			}
		}
	}
}
