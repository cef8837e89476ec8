package table

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var koiTokens = []string{"koi_period", "koi_depth", "koi_duration", "koi_pdisposition"}

const koiWithPreamble = `# This file was produced by the NASA Exoplanet Archive
# Wed Oct  1 10:00:00 2025
# COLUMN koi_period:    Orbital Period [days]
# COLUMN koi_depth:     Transit Depth [ppm]
kepid,koi_period,koi_period_err1,koi_period_err2,koi_depth,koi_pdisposition
10797460,9.488,2.7e-05,-2.7e-05,615.8,CANDIDATE
10811496,19.899,0.00015,-0.00015,10829,FALSE POSITIVE
`

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"koi_period", "koi_period"},
		{"  KOI_Period ", "koi_period"},
		{"\ufeffkepid", "kepid"},
		{"TFOPWG Disposition", "tfopwg disposition"},
		{"a b", "a b"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestNormalizeNameIdempotent(t *testing.T) {
	inputs := []string{
		"\ufeff  Koi_Period ", "\u3000ST_TEFF ", "plain", " \t mixed Case  ", "",
	}
	for _, in := range inputs {
		once := NormalizeName(in)
		assert.Equal(t, once, NormalizeName(once), "input %q", in)
	}
}

func TestNormalizeDropsDuplicateLabels(t *testing.T) {
	raw := New([]string{"Koi_Period", " koi_period", "ra"}, [][]string{{"1", "2", "3"}})
	n := raw.Normalize()

	assert.Equal(t, []string{"koi_period", "ra"}, n.Columns)
	assert.Equal(t, []string{"1", "3"}, n.Rows[0])
	assert.Equal(t, []string{" koi_period"}, n.DroppedDuplicates)
	// The source table is untouched.
	assert.Equal(t, "Koi_Period", raw.Columns[0])
}

func TestLocateHeaderAfterPreamble(t *testing.T) {
	idx, err := LocateHeader([]byte(koiWithPreamble), koiTokens)
	require.NoError(t, err)
	assert.Equal(t, 4, idx)
}

func TestLocateHeaderCaseAndSpaceInsensitive(t *testing.T) {
	content := "junk line\n  KOI_PERIOD , other\n1,2\n"
	idx, err := LocateHeader([]byte(content), []string{" koi_period"})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestLocateHeaderStrictNotFound(t *testing.T) {
	_, err := LocateHeader([]byte("a,b,c\n1,2,3\n"), koiTokens)
	assert.ErrorIs(t, err, ErrHeaderNotFound)
}

func TestLocateHeaderPermissiveFallsBackToFirstRow(t *testing.T) {
	assert.Equal(t, 0, LocateHeaderOrFirst([]byte("a,b,c\n1,2,3\n"), koiTokens))
}

func TestLocateHeaderScanWindow(t *testing.T) {
	var b strings.Builder
	for i := 0; i < MaxHeaderScanLines; i++ {
		b.WriteString("# filler\n")
	}
	b.WriteString("koi_period,koi_depth\n1,2\n")

	_, err := LocateHeader([]byte(b.String()), koiTokens)
	assert.ErrorIs(t, err, ErrHeaderNotFound)
}

func TestSniffSemicolon(t *testing.T) {
	sample := "koi_period;koi_depth;koi_pdisposition\n9.4;615.8;CANDIDATE\n19.8;10829;FALSE POSITIVE\n"
	d, err := SniffDelimiter(sample)
	require.NoError(t, err)
	assert.Equal(t, ';', d)

	tbl, err := ReadTolerant([]byte(sample), ReadOptions{})
	require.NoError(t, err)
	assert.Greater(t, len(tbl.Columns), 1)
	assert.Equal(t, ';', tbl.Delimiter)
}

func TestSniffTabAndPipe(t *testing.T) {
	d, err := SniffDelimiter("a\tb\tc\n1\t2\t3\n")
	require.NoError(t, err)
	assert.Equal(t, '\t', d)

	d, err = SniffDelimiter("a|b\n1|2\n")
	require.NoError(t, err)
	assert.Equal(t, '|', d)
}

func TestSniffIgnoresQuotedSeparators(t *testing.T) {
	d, err := SniffDelimiter("name;note\n\"x\";\"a, b, c\"\n\"y\";\"d\"\n")
	require.NoError(t, err)
	assert.Equal(t, ';', d)
}

func TestChooseDelimiterFallbacks(t *testing.T) {
	// Inconsistent counts defeat the sniffer; literal presence decides.
	assert.Equal(t, ';', ChooseDelimiter("a;b;c\n1\n2;3\nx\n"))
	assert.Equal(t, ',', ChooseDelimiter("no separators here"))
}

func TestReadTolerantRetriesWhenSingleColumn(t *testing.T) {
	// Semicolon counts are too uneven to sniff and the only commas sit inside
	// quotes, so the first parse yields one column and the retry adopts ';'.
	content := "a;b\n\"1,5\";2\n\"3,5\"\n\"4,5\"\n"
	tbl, err := ReadTolerant([]byte(content), ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tbl.Columns)
	assert.Equal(t, ';', tbl.Delimiter)
	assert.Equal(t, 3, tbl.Len())
}

func TestReadTolerantPreambleAndRaggedRows(t *testing.T) {
	content := koiWithPreamble + "1,2,3,4,5,6,7,8\n42,1.5\n"
	tbl, err := ReadTolerant([]byte(content), ReadOptions{HeaderTokens: koiTokens, Strict: true})
	require.NoError(t, err)

	assert.Equal(t, 4, tbl.HeaderRow)
	assert.Equal(t, 1, tbl.SkippedRows)
	require.Equal(t, 3, tbl.Len())
	assert.Equal(t, []string{"42", "1.5", "", "", "", ""}, tbl.Rows[2])
}

func TestReadTolerantStrictMissingHeader(t *testing.T) {
	_, err := ReadTolerant([]byte("a,b\n1,2\n"), ReadOptions{HeaderTokens: koiTokens, Strict: true})
	assert.ErrorIs(t, err, ErrHeaderNotFound)
}

func TestReadTolerantEmpty(t *testing.T) {
	_, err := ReadTolerant([]byte("  \n"), ReadOptions{})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestReadTolerantStripsBOM(t *testing.T) {
	tbl, err := ReadTolerant([]byte("\ufeffkepid,koi_period\n1,2\n"), ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "kepid", tbl.Columns[0])
}

func TestDropEmpty(t *testing.T) {
	tbl := New([]string{"a", "b", "c"}, [][]string{
		{"1", "", ""},
		{"", "", "NaN"},
		{"2", "", "x"},
	})
	out := tbl.DropEmpty()

	if diff := cmp.Diff([]string{"a", "c"}, out.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, out.Len())
}

func TestParseNumber(t *testing.T) {
	v, ok := ParseNumber(" 1.5e3 ")
	assert.True(t, ok)
	assert.Equal(t, 1500.0, v)

	for _, s := range []string{"", "nan", "N/A", "CANDIDATE"} {
		v, ok := ParseNumber(s)
		assert.False(t, ok, s)
		assert.True(t, math.IsNaN(v), s)
	}
}

func TestFormatNumberRoundTrip(t *testing.T) {
	for _, f := range []float64{0.04, 1e-12, -3.25, 123456789.125, math.Inf(1)} {
		back, ok := ParseNumber(FormatNumber(f))
		require.True(t, ok)
		assert.Equal(t, f, back)
	}
	assert.Equal(t, "", FormatNumber(math.NaN()))
}
