package features

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/exo-inference/internal/table"
)

func koiTable() *table.RawTable {
	return table.New(
		[]string{"kepid", "koi_period", "koi_period_err1", "koi_period_err2", "koi_depth"},
		[][]string{
			{"1", "10", "0.5", "-0.3", "615.8"},
			{"2", "0", "1e-3", "-1e-3", ""},
			{"3", "", "0.1", "-0.1", "20"},
			{"4", "7.5", "n/a", "-0.2", "x"},
		},
	)
}

func cell(t *testing.T, tbl *table.RawTable, col string, row int) float64 {
	t.Helper()
	cells, ok := tbl.Column(col)
	require.True(t, ok, "missing column %s", col)
	v, _ := table.ParseNumber(cells[row])
	return v
}

func TestDeriveUncertaintyMeanPolicy(t *testing.T) {
	out, derived := DeriveUncertainty(koiTable(), false, DefaultFloor)

	assert.Equal(t, []string{"koi_period_rel_error"}, derived)
	assert.False(t, out.Has("koi_period_err1"))
	assert.False(t, out.Has("koi_period_err2"))
	assert.InDelta(t, 0.04, cell(t, out, "koi_period_rel_error", 0), 1e-12)
	// Zero measurement falls back to the floor.
	assert.InDelta(t, 1e-3/DefaultFloor, cell(t, out, "koi_period_rel_error", 1), 1)
	// Missing inputs stay missing.
	assert.True(t, math.IsNaN(cell(t, out, "koi_period_rel_error", 2)))
	assert.True(t, math.IsNaN(cell(t, out, "koi_period_rel_error", 3)))
}

func TestDeriveUncertaintyAsymmetric(t *testing.T) {
	out, derived := DeriveUncertainty(koiTable(), true, DefaultFloor)

	want := []string{"koi_period_rel_err_lower", "koi_period_rel_err_upper", "koi_period_rel_error"}
	if diff := cmp.Diff(want, derived); diff != "" {
		t.Errorf("derived mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 0.05, cell(t, out, "koi_period_rel_err_upper", 0), 1e-12)
	assert.InDelta(t, 0.03, cell(t, out, "koi_period_rel_err_lower", 0), 1e-12)
}

func TestDeriveUncertaintyIdempotent(t *testing.T) {
	once, _ := DeriveUncertainty(koiTable(), true, DefaultFloor)
	twice, derived := DeriveUncertainty(once, true, DefaultFloor)

	assert.Empty(t, derived)
	assert.Equal(t, once.Columns, twice.Columns)
	assert.Equal(t, once.Rows, twice.Rows)
}

func TestDeriveUncertaintyDropsOrphanErrors(t *testing.T) {
	tbl := table.New([]string{"x_err1", "x_err2", "y"}, [][]string{{"1", "1", "2"}})
	out, derived := DeriveUncertainty(tbl, false, DefaultFloor)

	assert.Empty(t, derived)
	assert.Equal(t, []string{"y"}, out.Columns)
}

func TestRelativeErrorFiniteAndNonNegative(t *testing.T) {
	values := []float64{0, -0, 1e-300, -5, 3, 1e308, -1e308, math.NaN()}
	for _, x := range values {
		for _, e1 := range values {
			for _, e2 := range values {
				rel := MeanRelativeError(x, e1, e2, DefaultFloor)
				if math.IsNaN(rel) {
					continue
				}
				assert.False(t, math.IsInf(rel, 0), "x=%g e1=%g e2=%g", x, e1, e2)
				assert.GreaterOrEqual(t, rel, 0.0)

				rel = MaxRelativeError(x, e1, e2, DefaultFloor)
				assert.False(t, math.IsNaN(rel) || math.IsInf(rel, 0))
				assert.GreaterOrEqual(t, rel, 0.0)
			}
		}
	}
}

func TestDeriveMaxRelativeError(t *testing.T) {
	tbl := table.New(
		[]string{"koi_period", "koi_period_err1", "koi_depth", "koi_depth_err1", "koi_depth_err2", "koi_depth_rel_error"},
		[][]string{
			{"10", "-0.5", "100", "1", "2", "9"},
			{"", "0.5", "100", "1", "2", "9"},
		},
	)
	pairs := []RelPair{
		{Base: "koi_period", Target: "koi_period_rel_error"},
		{Base: "koi_depth", Target: "koi_depth_rel_error"},
		{Base: "koi_prad", Target: "koi_prad_rel_error"},
	}
	out, notes := DeriveMaxRelativeError(tbl, pairs, DefaultFloor)

	require.Len(t, notes, 1)
	assert.Equal(t, "koi_period_rel_error", notes[0].Target)
	assert.Equal(t, []string{"koi_period", "koi_period_err1"}, notes[0].Sources)
	assert.Equal(t, "derived koi_period_rel_error from koi_period/koi_period_err1", notes[0].String())

	assert.InDelta(t, 0.05, cell(t, out, "koi_period_rel_error", 0), 1e-12)
	assert.Equal(t, 0.0, cell(t, out, "koi_period_rel_error", 1))
	// Existing targets are left alone.
	assert.Equal(t, 9.0, cell(t, out, "koi_depth_rel_error", 0))
	assert.True(t, out.Has("koi_period_err1"))
}

func TestResolverOrder(t *testing.T) {
	r := Resolver{
		Aliases:  KOIAliases,
		Prefix:   "koi_",
		Expected: []string{"koi_period", "koi_steff", "koi_model_snr", "koi_srho"},
	}
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"TEFF", "koi_steff", true},
		{" koi_whatever", "koi_whatever", true},
		{"srho", "koi_srho", true},
		{"period_err1", "koi_period_err1", true},
		{"koi_period_err2", "koi_period_err2", true},
		{"kepid", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := r.Resolve(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenameColumnsKeepsCanonical(t *testing.T) {
	tbl := table.New([]string{"teff", "koi_steff", "period"}, [][]string{{"1", "2", "3"}})
	out, renames := RenameColumns(tbl, Resolver{Aliases: KOIAliases, Prefix: "koi_"})

	assert.Equal(t, []string{"teff", "koi_steff", "koi_period"}, out.Columns)
	assert.Equal(t, map[string]string{"period": "koi_period"}, renames)
}

func TestResolveLabelColumn(t *testing.T) {
	tbl := table.New([]string{"toi", "TFOPWG_Disposition", "pl_orbper"}, nil)

	got, ok := ResolveLabelColumn(tbl, "", nil)
	require.True(t, ok)
	assert.Equal(t, "TFOPWG_Disposition", got)

	got, ok = ResolveLabelColumn(tbl, " PL_ORBPER", nil)
	require.True(t, ok)
	assert.Equal(t, "pl_orbper", got)

	_, ok = ResolveLabelColumn(table.New([]string{"a"}, nil), "b", nil)
	assert.False(t, ok)
}

func TestAlignOrderAndDefaults(t *testing.T) {
	tbl := table.New(
		[]string{"extra", "b", "a"},
		[][]string{{"x", "2", "1"}, {"y", "oops", ""}},
	)
	expected := []string{"a", "c", "b", "c_was_missing"}
	frame, missing := Align(tbl, expected)

	assert.Equal(t, expected, frame.Columns)
	assert.Equal(t, []string{"c", "c_was_missing"}, missing)
	require.Equal(t, 2, frame.Rows())

	row := frame.Values[0]
	assert.Equal(t, 1.0, row[0])
	assert.True(t, math.IsNaN(row[1]))
	assert.Equal(t, 2.0, row[2])
	assert.Equal(t, 0.0, row[3])

	assert.True(t, math.IsNaN(frame.Values[1][0]))
	assert.True(t, math.IsNaN(frame.Values[1][2]))
}

func TestAlignColumnOrderForShuffledInput(t *testing.T) {
	expected := []string{"z", "y", "x"}
	inputs := [][]string{
		{"x", "y", "z"},
		{"y", "q"},
		{},
		{"z", "z2", "x", "y"},
	}
	for _, cols := range inputs {
		frame, _ := Align(table.New(cols, [][]string{make([]string, len(cols))}), expected)
		assert.Equal(t, expected, frame.Columns)
		assert.Len(t, frame.Values[0], len(expected))
	}
}

func TestAlignWithoutExpectedKeepsNumeric(t *testing.T) {
	tbl := table.New(
		[]string{"name", "period", "blank"},
		[][]string{{"K1", "1.5", ""}, {"K2", "", ""}},
	)
	frame, missing := Align(tbl, nil)

	assert.Nil(t, missing)
	assert.Equal(t, []string{"period", "blank"}, frame.Columns)
}

func TestAlignToSchema(t *testing.T) {
	tbl := table.New(
		[]string{"TEFF", "period", "period_err1", "period_err2", "fpflag_nt", "kepid"},
		[][]string{
			{"5800", "10", "0.2", "-0.4", "Yes", "1"},
			{"6100", "20", "", "", "0", "2"},
		},
	)
	expected := []string{"koi_period", "koi_period_rel_error", "koi_steff", "koi_fpflag_nt", "koi_prad"}
	frame, missing, notes := AlignToSchema(tbl, expected, SchemaOptions{
		Resolver: Resolver{Aliases: KOIAliases, Prefix: "koi_"},
		Flags:    []string{"koi_fpflag_nt"},
		Floor:    DefaultFloor,
	})

	assert.Equal(t, expected, frame.Columns)
	assert.Equal(t, []string{"koi_prad"}, missing)
	assert.Equal(t, []string{
		"derived koi_period_rel_error from koi_period/koi_period_err1/koi_period_err2",
		"coerced fpflag_nt -> koi_fpflag_nt (0/1)",
	}, NoteStrings(notes))

	assert.Equal(t, []float64{10, 0.04, 5800, 1}, frame.Values[0][:4])
	assert.Equal(t, 0.0, frame.Values[1][1])
	assert.Equal(t, 0.0, frame.Values[1][3])
	assert.True(t, math.IsNaN(frame.Values[0][4]))
}

func TestOneHot(t *testing.T) {
	tbl := table.New(
		[]string{"soltype", "pl_orbper"},
		[][]string{{"Published Confirmed", "1"}, {"", "2"}, {"Candidate", "3"}},
	)
	out := OneHot(tbl, []string{"soltype", "discoverymethod"})

	assert.Equal(t, []string{"pl_orbper", "soltype_Candidate", "soltype_Published Confirmed", "soltype_nan"}, out.Columns)
	assert.Equal(t, []string{"1", "0", "1", "0"}, out.Rows[0])
	assert.Equal(t, []string{"2", "0", "0", "1"}, out.Rows[1])
}

func TestAddMissingIndicators(t *testing.T) {
	tbl := table.New([]string{"a", "b"}, [][]string{{"1", ""}, {"2", "3"}})
	out := AddMissingIndicators(tbl)

	assert.Equal(t, []string{"a", "b", "b_was_missing"}, out.Columns)
	b, _ := out.Column("b_was_missing")
	assert.Equal(t, []string{"1", "0"}, b)
}

func TestFillNonFinite(t *testing.T) {
	f := &FeatureFrame{Columns: []string{"a"}, Values: [][]float64{{math.NaN()}, {math.Inf(-1)}, {2}}}
	require.True(t, f.HasNonFinite())

	g := f.FillNonFinite(0)
	assert.False(t, g.HasNonFinite())
	assert.Equal(t, [][]float64{{0}, {0}, {2}}, g.Values)
	assert.True(t, math.IsNaN(f.Values[0][0]))
}
