package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmptyInput is returned when there is nothing to parse.
var ErrEmptyInput = errors.New("empty file")

// DefaultHeaderTokens identify a header row in any of the supported survey
// exports when the caller has no survey-specific list.
var DefaultHeaderTokens = []string{
	"koi_pdisposition", "tfopwg_disposition", "disposition",
	"koi_period", "pl_orbper", "pl_rade", "st_teff",
}

// ReadOptions control ReadTolerant.
type ReadOptions struct {
	// HeaderTokens identify the header row. Empty means DefaultHeaderTokens.
	HeaderTokens []string
	// Strict fails with ErrHeaderNotFound instead of falling back to the
	// first line.
	Strict bool
	// Delimiter forces a separator; 0 sniffs it.
	Delimiter rune
}

// ReadTolerant parses delimited bytes whose header may sit below a preamble
// and whose separator is unknown.
func ReadTolerant(content []byte, opts ReadOptions) (*RawTable, error) {
	text := decode(content)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	tokens := opts.HeaderTokens
	if len(tokens) == 0 {
		tokens = DefaultHeaderTokens
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = ChooseDelimiter(Sample(text))
	}

	t, err := readWith(text, content, tokens, delim, opts.Strict)
	if err != nil && !errors.Is(err, ErrHeaderNotFound) {
		return nil, err
	}
	if err == nil && len(t.Columns) > 1 {
		return t, nil
	}
	if opts.Delimiter != 0 {
		if err != nil {
			return nil, err
		}
		return t, nil
	}

	// The sniffed separator produced a single column or no header: retry the
	// candidates in priority order and adopt the first that splits the file.
	for _, alt := range Candidates {
		if alt == delim {
			continue
		}
		retry, retryErr := readWith(text, content, tokens, alt, opts.Strict)
		if retryErr == nil && len(retry.Columns) > 1 {
			return retry, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func readWith(text string, content []byte, tokens []string, delim rune, strict bool) (*RawTable, error) {
	var hdr int
	if strict {
		var err error
		hdr, err = LocateHeaderWithDelimiter(content, tokens, delim)
		if err != nil {
			return nil, err
		}
	} else {
		hdr = LocateHeaderOrFirstWithDelimiter(content, tokens, delim)
	}
	t, err := parse(text, hdr, delim)
	if err != nil {
		return nil, fmt.Errorf("parse with delimiter %q: %w", delim, err)
	}
	return t, nil
}

// parse reads text starting at physical line hdr as a header followed by
// data rows. Rows wider than the header are skipped; shorter rows are padded.
func parse(text string, hdr int, delim rune) (*RawTable, error) {
	lines := splitLines(text, 0)
	if hdr >= len(lines) {
		return nil, ErrEmptyInput
	}
	body := strings.Join(lines[hdr:], "\n")

	r := csv.NewReader(strings.NewReader(body))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyInput
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = append([]string(nil), header...)
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], byteOrderMark)
	}

	t := &RawTable{Columns: header, HeaderRow: hdr, Delimiter: delim}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.SkippedRows++
			continue
		}
		if len(rec) > len(header) {
			t.SkippedRows++
			continue
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" && len(header) > 1 {
			continue
		}
		t.Rows = append(t.Rows, fit(rec, len(header)))
	}
	return t, nil
}
