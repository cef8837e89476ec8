package table

import (
	"errors"
	"strings"
)

// SniffSampleBytes is how much of a file the delimiter sniffer inspects.
const SniffSampleBytes = 10000

// Candidates are the supported field separators in priority order.
var Candidates = []rune{',', '\t', ';', '|'}

// ErrNoDelimiter is returned when sniffing finds no consistent separator.
var ErrNoDelimiter = errors.New("could not determine delimiter")

// Consistency bounds for the sniffer: a candidate must appear the same
// number of times on at least this share of sample lines.
const (
	maxConsistency  = 1.0
	minConsistency  = 0.9
	consistencyStep = 0.01
)

// Sample returns the leading part of text used for sniffing, cut back to the
// last complete line when truncated.
func Sample(text string) string {
	if len(text) <= SniffSampleBytes {
		return text
	}
	s := text[:SniffSampleBytes]
	if i := strings.LastIndexByte(s, '\n'); i > 0 {
		s = s[:i]
	}
	return s
}

// SniffDelimiter infers the separator of a text sample by per-line frequency
// consistency.
func SniffDelimiter(sample string) (rune, error) {
	var lines []string
	for _, l := range splitLines(sample, 0) {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return 0, ErrNoDelimiter
	}

	consistency := make(map[rune]float64, len(Candidates))
	for _, c := range Candidates {
		mode, share := modalCount(lines, c)
		if mode > 0 {
			consistency[c] = share
		}
	}

	for threshold := maxConsistency; threshold >= minConsistency-1e-9; threshold -= consistencyStep {
		for _, c := range Candidates {
			if share, ok := consistency[c]; ok && share >= threshold-1e-9 {
				return c, nil
			}
		}
	}
	return 0, ErrNoDelimiter
}

// ChooseDelimiter sniffs the sample and falls back to the first candidate
// literally present in it, then to a comma.
func ChooseDelimiter(sample string) rune {
	if d, err := SniffDelimiter(sample); err == nil {
		return d
	}
	for _, c := range Candidates {
		if strings.ContainsRune(sample, c) {
			return c
		}
	}
	return ','
}

// modalCount returns the most frequent per-line occurrence count of delim and
// the share of lines carrying exactly that count.
func modalCount(lines []string, delim rune) (int, float64) {
	freq := make(map[int]int)
	for _, l := range lines {
		freq[countUnquoted(l, delim)]++
	}
	mode, best := 0, -1
	for count, n := range freq {
		if n > best || (n == best && count > mode) {
			mode, best = count, n
		}
	}
	return mode, float64(best) / float64(len(lines))
}

func countUnquoted(line string, delim rune) int {
	n := 0
	quoted := false
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case r == delim && !quoted:
			n++
		}
	}
	return n
}
