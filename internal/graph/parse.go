package graph

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
)

const (
	maxLineBytes = 1 << 20
	// maxPrealloc bounds the arc slice reserved from the declared entry
	// count; larger inputs grow it as entries arrive.
	maxPrealloc = 1 << 20
)

// Load reads a Matrix Market coordinate file from the local filesystem.
func Load(path string, opts LoadOptions) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("graph: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f, path, opts)
}

// IsRemote reports whether resource is an http(s) URL.
func IsRemote(resource string) bool {
	return strings.HasPrefix(resource, "http://") || strings.HasPrefix(resource, "https://")
}

// Open loads a graph from a local path or an http(s) URL.
func Open(resource string, opts LoadOptions) (*Graph, error) {
	if !IsRemote(resource) {
		return Load(resource, opts)
	}
	resp, err := http.Get(resource)
	if err != nil {
		return nil, fmt.Errorf("graph: fetch %s: %w", resource, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graph: fetch %s: unexpected status %s", resource, resp.Status)
	}
	return Parse(resp.Body, resource, opts)
}

// header is the parsed Matrix Market banner and size line.
type header struct {
	pattern   bool
	symmetric bool
	rows      int
	cols      int
	entries   int
}

// Parse reads Matrix Market coordinate text. source names the input in errors.
//
// The optional banner selects the field (real, integer or pattern) and the
// symmetry (general or symmetric). Lines starting with % or # are comments.
// The first non-comment line is "rows cols entries"; each following line is
// "row col [weight]".
func Parse(r io.Reader, source string, opts LoadOptions) (*Graph, error) {
	if opts.IndexBase != 0 && opts.IndexBase != 1 {
		return nil, formatErr(source, 0, fmt.Errorf("index base %d: %w", opts.IndexBase, ErrUnsupported))
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		hdr     header
		sized   bool
		lineNo  int
		entries int
		arcs    []Arc
	)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if lineNo == 1 && strings.HasPrefix(line, "%%MatrixMarket") {
			if err := parseBanner(line, &hdr); err != nil {
				return nil, formatErr(source, lineNo, err)
			}
			continue
		}
		if line == "" || line[0] == '%' || line[0] == '#' {
			continue
		}

		if !sized {
			if err := parseSize(line, &hdr); err != nil {
				return nil, formatErr(source, lineNo, err)
			}
			sized = true
			arcs = make([]Arc, 0, min(hdr.entries, maxPrealloc))
			continue
		}

		entries++
		if entries > hdr.entries {
			return nil, formatErr(source, lineNo, fmt.Errorf("more than %d entries: %w", hdr.entries, ErrEntryCount))
		}
		a, err := parseEntry(line, hdr, opts)
		if err != nil {
			return nil, formatErr(source, lineNo, err)
		}
		arcs = append(arcs, a)
		if hdr.symmetric && a.From != a.To {
			arcs = append(arcs, Arc{From: a.To, To: a.From, Weight: a.Weight})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, formatErr(source, lineNo, fmt.Errorf("%w: %v", ErrMalformed, err))
	}
	if !sized {
		return nil, formatErr(source, 0, fmt.Errorf("missing size line: %w", ErrMalformed))
	}
	if entries != hdr.entries {
		return nil, formatErr(source, 0, fmt.Errorf("declared %d entries, found %d: %w", hdr.entries, entries, ErrEntryCount))
	}
	return build(source, hdr.rows, arcs, opts)
}

func parseBanner(line string, hdr *header) error {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) < 5 || fields[1] != "matrix" || fields[2] != "coordinate" {
		return fmt.Errorf("banner %q: %w", line, ErrUnsupported)
	}
	switch fields[3] {
	case "real", "integer", "double":
	case "pattern":
		hdr.pattern = true
	default:
		return fmt.Errorf("field %q: %w", fields[3], ErrUnsupported)
	}
	switch fields[4] {
	case "general":
	case "symmetric":
		hdr.symmetric = true
	default:
		return fmt.Errorf("symmetry %q: %w", fields[4], ErrUnsupported)
	}
	return nil
}

func parseSize(line string, hdr *header) error {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return fmt.Errorf("size line %q: %w", line, ErrMalformed)
	}
	var vals [3]int
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil || v < 0 {
			return fmt.Errorf("size line %q: %w", line, ErrMalformed)
		}
		vals[i] = v
	}
	hdr.rows, hdr.cols, hdr.entries = vals[0], vals[1], vals[2]
	if hdr.rows != hdr.cols {
		return fmt.Errorf("%d rows, %d columns: %w", hdr.rows, hdr.cols, ErrNotSquare)
	}
	if hdr.rows == 0 {
		return ErrEmpty
	}
	// Edges store vertex indices as int32.
	if hdr.rows > math.MaxInt32 {
		return fmt.Errorf("%d vertices exceeds %d: %w", hdr.rows, math.MaxInt32, ErrUnsupported)
	}
	return nil
}

func parseEntry(line string, hdr header, opts LoadOptions) (Arc, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Arc{}, fmt.Errorf("entry %q: %w", line, ErrMalformed)
	}
	row, err := strconv.Atoi(fields[0])
	if err != nil {
		return Arc{}, fmt.Errorf("row %q: %w", fields[0], ErrMalformed)
	}
	col, err := strconv.Atoi(fields[1])
	if err != nil {
		return Arc{}, fmt.Errorf("column %q: %w", fields[1], ErrMalformed)
	}
	row -= opts.IndexBase
	col -= opts.IndexBase
	if row < 0 || row >= hdr.rows || col < 0 || col >= hdr.cols {
		return Arc{}, fmt.Errorf("entry (%s, %s): %w", fields[0], fields[1], ErrIndexOutOfRange)
	}

	weight := 1.0
	if len(fields) >= 3 && !hdr.pattern {
		weight, err = strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return Arc{}, fmt.Errorf("weight %q: %w", fields[2], ErrMalformed)
		}
	}

	if opts.Transpose {
		return Arc{From: row, To: col, Weight: weight}, nil
	}
	return Arc{From: col, To: row, Weight: weight}, nil
}
