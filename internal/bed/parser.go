package bed

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Parser reads intervals from a BED file.
type Parser struct {
	reader     *bufio.Reader
	file       *os.File
	gzipReader *gzip.Reader
	lineNumber int
	rows       int
	onSkip     func(line int, reason string)
}

// NewParser creates a new BED parser for the given file.
// Supports both plain BED and gzipped BED (.bed.gz) files.
func NewParser(path string) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bed file: %w", err)
	}

	p := &Parser{file: file}

	// Check for gzip magic bytes
	buf := make([]byte, 2)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		file.Close()
		return nil, fmt.Errorf("read bed file: %w", err)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("seek bed file: %w", err)
	}

	if n == 2 && buf[0] == 0x1f && buf[1] == 0x8b {
		p.gzipReader, err = gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReader(p.gzipReader)
	} else {
		p.reader = bufio.NewReader(file)
	}

	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader (e.g., stdin).
func NewParserFromReader(r io.Reader) *Parser {
	return &Parser{reader: bufio.NewReader(r)}
}

// OnSkip registers a callback invoked for every line that is skipped
// rather than parsed (blank, comment, header, single-column).
func (p *Parser) OnSkip(fn func(line int, reason string)) {
	p.onSkip = fn
}

// Next reads the next interval.
// Returns nil, nil when there are no more rows.
func (p *Parser) Next() (*Interval, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read bed line: %w", err)
		}
		if line == "" && err == io.EOF {
			return nil, nil
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if reason, skip := skipReason(line); skip {
			if p.onSkip != nil {
				p.onSkip(p.lineNumber, reason)
			}
			if err == io.EOF {
				return nil, nil
			}
			continue
		}

		iv, perr := ParseLine(line)
		if perr != nil {
			perr.Line = p.lineNumber
			return nil, perr
		}
		p.rows++
		return iv, nil
	}
}

// ReadAll reads every remaining interval. It stops at the first malformed
// row, since region validity has to be established before any work starts.
func (p *Parser) ReadAll() ([]Interval, error) {
	var out []Interval
	for {
		iv, err := p.Next()
		if err != nil {
			return nil, err
		}
		if iv == nil {
			return out, nil
		}
		out = append(out, *iv)
	}
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Rows returns the number of data rows parsed so far.
func (p *Parser) Rows() int {
	return p.rows
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	if p.gzipReader != nil {
		p.gzipReader.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

func skipReason(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return "blank line", true
	case strings.HasPrefix(trimmed, "#"):
		return "comment", true
	case strings.HasPrefix(trimmed, "track ") || trimmed == "track":
		return "track header", true
	case strings.HasPrefix(trimmed, "browser ") || trimmed == "browser":
		return "browser header", true
	case len(strings.Split(line, "\t")) == 1 && len(strings.Fields(line)) == 1:
		return "possible blank line", true
	}
	return "", false
}

// ParseLine parses a single tab-delimited BED row.
// The returned ParseError has Line unset; Parser fills it in.
func ParseLine(line string) (*Interval, *ParseError) {
	fields := strings.Split(line, "\t")
	if len(fields) < 3 {
		// Tolerate space-delimited rows, which are common in hand-written files.
		fields = strings.Fields(line)
	}
	if len(fields) < 3 {
		return nil, &ParseError{
			Message: fmt.Sprintf("expected at least 3 columns, found %d", len(fields)),
		}
	}

	chrom := strings.TrimSpace(fields[0])
	if chrom == "" {
		return nil, &ParseError{Message: "empty chromosome name"}
	}

	start, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("invalid start: %s", fields[1])}
	}
	end, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
	if err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("invalid end: %s", fields[2])}
	}
	if start < 0 {
		return nil, &ParseError{Message: fmt.Sprintf("negative start: %d", start)}
	}
	if end <= start {
		return nil, &ParseError{Message: fmt.Sprintf("end %d must be greater than start %d", end, start)}
	}

	iv := &Interval{Chrom: chrom, Start: start, End: end}
	if len(fields) > 3 {
		iv.Label = strings.TrimSpace(fields[3])
	}
	if len(fields) > 4 {
		iv.Extra = append([]string(nil), fields[4:]...)
	}
	return iv, nil
}

// Parse parses one BED row into an Interval.
func Parse(line string) (Interval, error) {
	iv, perr := ParseLine(strings.TrimRight(line, "\r\n"))
	if perr != nil {
		return Interval{}, perr
	}
	return *iv, nil
}

// ParseFile reads every interval from path.
func ParseFile(path string) ([]Interval, error) {
	p, err := NewParser(path)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.ReadAll()
}

// ParseError represents an error during BED parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return "bed parse error: " + e.Message
	}
	return fmt.Sprintf("bed parse error at line %d: %s", e.Line, e.Message)
}
