package table

import (
	"encoding/csv"
	"errors"
	"strings"
)

// MaxHeaderScanLines bounds how far into a file the header search looks.
const MaxHeaderScanLines = 200

// ErrHeaderNotFound is returned by the strict locator when no identifier
// token appears within the scan window.
var ErrHeaderNotFound = errors.New("could not detect header row")

// LocateHeader returns the zero-based line index of the first row holding any
// of the tokens, reading the content as comma-delimited. It fails with
// ErrHeaderNotFound when none match within MaxHeaderScanLines.
func LocateHeader(content []byte, tokens []string) (int, error) {
	return LocateHeaderWithDelimiter(content, tokens, ',')
}

// LocateHeaderOrFirst is the permissive variant of LocateHeader: when no token
// matches it falls back to the first line.
func LocateHeaderOrFirst(content []byte, tokens []string) int {
	return LocateHeaderOrFirstWithDelimiter(content, tokens, ',')
}

// LocateHeaderWithDelimiter is LocateHeader for an explicit field separator.
func LocateHeaderWithDelimiter(content []byte, tokens []string, delim rune) (int, error) {
	want := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		if n := NormalizeName(tok); n != "" {
			want[n] = true
		}
	}
	if len(want) > 0 {
		for i, line := range splitLines(decode(content), MaxHeaderScanLines) {
			for _, cell := range parseLine(line, delim) {
				if want[NormalizeName(cell)] {
					return i, nil
				}
			}
		}
	}
	return 0, ErrHeaderNotFound
}

// LocateHeaderOrFirstWithDelimiter is LocateHeaderOrFirst for an explicit
// field separator.
func LocateHeaderOrFirstWithDelimiter(content []byte, tokens []string, delim rune) int {
	idx, err := LocateHeaderWithDelimiter(content, tokens, delim)
	if err != nil {
		return 0
	}
	return idx
}

// decode turns raw bytes into text, dropping invalid UTF-8 sequences.
func decode(content []byte) string {
	return strings.ToValidUTF8(string(content), "")
}

// splitLines splits text into physical lines without their terminators.
// limit <= 0 means no limit.
func splitLines(text string, limit int) []string {
	var lines []string
	for len(text) > 0 {
		if limit > 0 && len(lines) >= limit {
			break
		}
		i := strings.IndexByte(text, '\n')
		var line string
		if i < 0 {
			line, text = text, ""
		} else {
			line, text = text[:i], text[i+1:]
		}
		lines = append(lines, strings.TrimSuffix(line, "\r"))
	}
	return lines
}

// parseLine splits a single physical line into cells, honouring quotes where
// the line is well formed.
func parseLine(line string, delim rune) []string {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	rec, err := r.Read()
	if err != nil {
		return strings.Split(line, string(delim))
	}
	return rec
}
