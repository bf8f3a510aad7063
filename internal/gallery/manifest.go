package gallery

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// DefaultTitle is used when the run does not set one.
const DefaultTitle = "Soda Gallery"

// Framework selects the front-end a manifest is rendered with.
type Framework string

const (
	Lightbox       Framework = "photoswipe"
	TableSlideshow Framework = "blueimp"
)

// ParseFramework accepts a framework name or its descriptive alias.
func ParseFramework(s string) (Framework, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "photoswipe", "lightbox":
		return Lightbox, nil
	case "blueimp", "table", "slideshow":
		return TableSlideshow, nil
	}
	return "", fmt.Errorf("unknown gallery framework %q (want photoswipe or blueimp)", s)
}

// Manifest is the complete, ordered description of one gallery. It is not
// modified after Assemble.
type Manifest struct {
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	Framework Framework `json:"framework"`
	RunID     string    `json:"run_id,omitempty"`
	Entries   []Entry   `json:"entries"`
}

// Assemble builds a manifest from entries in the order given. Entries are
// neither sorted nor deduplicated.
func Assemble(entries []Entry, title string, fw Framework, now time.Time, runID string) *Manifest {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return &Manifest{
		Title:     title,
		Timestamp: now.Truncate(time.Second),
		Framework: fw,
		RunID:     runID,
		Entries:   out,
	}
}

// FormattedTimestamp returns the ISO-8601 timestamp shown in the gallery.
func (m *Manifest) FormattedTimestamp() string {
	return m.Timestamp.Format(time.RFC3339)
}

// WriteJSON writes the manifest as indented JSON.
func (m *Manifest) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return nil
}
