package survey

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kartoza/exo-inference/internal/table"
)

const koiUpload = `# NASA Exoplanet Archive cumulative KOI table
# COLUMN koi_period: Orbital Period
#
#
kepid,KOI_Period,koi_period_err1,koi_period_err2,koi_depth,koi_score,koi_pdisposition
10797460,10,0.5,-0.3,615.8,1.0,CANDIDATE
,,,,,,
10811496,20,0.2,-0.2,,0.0,FALSE POSITIVE
`

func koiWithFeatures(expected ...string) *ModelSpec {
	s := koiSpec()
	s.ExpectedFeatures = expected
	return s
}

func TestPreprocessKOI(t *testing.T) {
	s := koiWithFeatures("koi_period", "koi_depth", "koi_period_rel_error", "koi_prad")

	res, err := s.Preprocess([]byte(koiUpload), Options{Strict: true})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Source.HeaderRow)
	assert.Equal(t, []string{"koi_period", "koi_depth", "koi_period_rel_error", "koi_prad"}, res.Frame.Columns)
	assert.Equal(t, []string{"koi_prad"}, res.Missing)
	assert.Equal(t, []string{"koi_period_rel_error"}, res.Derived)
	require.Equal(t, 2, res.Frame.Rows())
	assert.InDelta(t, 0.04, res.Frame.Values[0][2], 1e-12)
	assert.True(t, math.IsNaN(res.Frame.Values[1][1]))

	require.True(t, res.HasTruth)
	assert.Equal(t, []string{"CANDIDATE", "FALSE POSITIVE"}, res.Truth)
	assert.Equal(t, StageSchemaAligned, res.Stages[len(res.Stages)-1])
	assert.NotContains(t, res.Stages, StageOneHot)
}

func TestPreprocessStrictHeaderMissing(t *testing.T) {
	_, err := koiSpec().Preprocess([]byte("a,b\n1,2\n"), Options{Strict: true})

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageHeaderLocated, stageErr.Stage)
	assert.ErrorIs(t, err, table.ErrHeaderNotFound)
}

func TestPreprocessSemicolonUpload(t *testing.T) {
	content := "koi_period;koi_depth;koi_pdisposition\n9.5;615.8;CANDIDATE\n"
	res, err := koiWithFeatures("koi_period", "koi_depth").Preprocess([]byte(content), Options{Strict: true})
	require.NoError(t, err)

	assert.Equal(t, [][]float64{{9.5, 615.8}}, res.Frame.Values)
}

func TestPreprocessK2(t *testing.T) {
	content := "pl_name,disposition,pl_orbper,pl_orbperlim,soltype,st_teff\n" +
		"K2-1 b,CONFIRMED,3.5,0,Published Confirmed,\n" +
		"K2-2 b,CANDIDATE,7.25,0,,5200\n"
	s := k2Spec()
	s.ExpectedFeatures = []string{
		"pl_orbper", "st_teff", "st_teff_was_missing",
		"soltype_Published Confirmed", "soltype_nan", "pl_rade_was_missing",
	}

	res, err := s.Preprocess([]byte(content), Options{Strict: true})
	require.NoError(t, err)

	assert.Contains(t, res.Stages, StageOneHot)
	assert.Equal(t, []string{"pl_rade_was_missing"}, res.Missing)
	row0 := res.Frame.Values[0]
	assert.Equal(t, 3.5, row0[0])
	assert.True(t, math.IsNaN(row0[1]))
	assert.Equal(t, 1.0, row0[2])
	assert.Equal(t, 1.0, row0[3])
	assert.Equal(t, 0.0, row0[4])
	assert.Equal(t, 0.0, row0[5])

	row1 := res.Frame.Values[1]
	assert.Equal(t, []float64{7.25, 5200, 0, 0, 1, 0}, row1)
	assert.Equal(t, []string{"CONFIRMED", "CANDIDATE"}, res.Truth)
}

func TestDropIgnoredTESS(t *testing.T) {
	tbl := table.New([]string{"toi", "tid", "pl_orbper", "pl_orbperlim", "st_tmag"}, nil)
	out := tessSpec().DropIgnored(tbl)
	assert.Equal(t, []string{"pl_orbper", "st_tmag"}, out.Columns)
}

func TestRegistryLookup(t *testing.T) {
	r, err := NewRegistry("koi", koiSpec(), k2Spec(), tessSpec())
	require.NoError(t, err)

	s, err := r.Lookup("")
	require.NoError(t, err)
	assert.Equal(t, "koi", s.Slug)

	s, err = r.Lookup(" TESS ")
	require.NoError(t, err)
	assert.Equal(t, TESS, s.Kind)

	_, err = r.Lookup("kepler2")
	require.ErrorIs(t, err, ErrUnknownModel)
	var unknown *UnknownModelError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, []string{"koi", "k2", "tess"}, unknown.Available)
	assert.Contains(t, err.Error(), "koi, k2, tess")
}

func TestNewRegistryRejectsBadDefault(t *testing.T) {
	_, err := NewRegistry("nope", koiSpec())
	assert.ErrorIs(t, err, ErrUnknownModel)

	_, err = NewRegistry("koi", koiSpec(), koiSpec())
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("K2")
	require.NoError(t, err)
	assert.Equal(t, K2, k)
	assert.Equal(t, "tess", TESS.String())

	_, err = ParseKind("gaia")
	assert.Error(t, err)
}

func TestApplyOverride(t *testing.T) {
	s := koiSpec()
	yes := true
	s.Apply(Override{LabelColumn: "koi_disposition", Floor: 1e-6, KeepAsymmetric: &yes})

	assert.Equal(t, "koi_disposition", s.LabelColumn)
	assert.Equal(t, 1e-6, s.Floor)
	assert.True(t, s.KeepAsymmetric)
	assert.NotEmpty(t, s.HeaderTokens)
}

func writeArtifacts(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
}

const twoInputModel = `{"layers": [{"weights": [[1, 0], [0, 1]], "bias": [0, 0]}]}`

func TestLoad(t *testing.T) {
	root := t.TempDir()
	writeArtifacts(t, filepath.Join(root, "koi"), map[string]string{
		ModelFile:        twoInputModel,
		EncoderFile:      `{"classes": ["CANDIDATE", "FALSE POSITIVE"]}`,
		FeatureNamesFile: `["koi_period", "koi_depth"]`,
		ModelCardFile:    `{"name": "koi"}`,
	})
	writeArtifacts(t, filepath.Join(root, "tess"), map[string]string{
		ModelFile:        twoInputModel,
		FeatureNamesFile: `{"not": "a list"}`,
	})

	r, err := Load(context.Background(), root, "k2", Defaults(), zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"koi", "tess"}, r.Slugs())
	assert.Equal(t, "koi", r.Default())

	koi, err := r.Lookup("koi")
	require.NoError(t, err)
	assert.True(t, koi.HasProba)
	assert.True(t, koi.HasEncoder)
	assert.Equal(t, []string{"CANDIDATE", "FALSE POSITIVE"}, koi.Classes())
	assert.JSONEq(t, `{"name": "koi"}`, string(koi.ModelCard))

	tess, err := r.Lookup("tess")
	require.NoError(t, err)
	assert.Nil(t, tess.ExpectedFeatures)
	assert.False(t, tess.HasEncoder)
	assert.Equal(t, "1", tess.ClassName(1))
}

func TestLoadFeatureCountMismatch(t *testing.T) {
	root := t.TempDir()
	writeArtifacts(t, filepath.Join(root, "koi"), map[string]string{
		ModelFile:        twoInputModel,
		FeatureNamesFile: `["only_one"]`,
	})
	_, err := Load(context.Background(), root, "koi", []*ModelSpec{koiSpec()}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestLoadNothing(t *testing.T) {
	_, err := Load(context.Background(), t.TempDir(), "koi", Defaults(), zaptest.NewLogger(t))
	assert.ErrorIs(t, err, ErrNoArtifacts)
}

func TestPreprocessArchiveKOI(t *testing.T) {
	content := "kepid,period,koi_period_err1,koi_period_err2,fpflag_nt,koi_disposition\n" +
		"1,10,0.4,-0.2,1,CONFIRMED\n" +
		"2,5,0.1,-0.1,0,FALSE POSITIVE\n"
	s := koiWithFeatures("koi_period", "koi_period_rel_error", "koi_fpflag_nt", "koi_depth")

	res, err := s.PreprocessArchive([]byte(content), "KOI_Disposition")
	require.NoError(t, err)

	require.True(t, res.HasTruth)
	assert.Equal(t, "koi_disposition", res.LabelColumn)
	assert.Equal(t, []string{"CONFIRMED", "FALSE POSITIVE"}, res.Truth)
	assert.Equal(t, []string{"koi_depth"}, res.Missing)
	assert.Len(t, res.Notes, 2)

	row0 := res.Frame.Values[0]
	assert.Equal(t, 10.0, row0[0])
	assert.InDelta(t, 0.04, row0[1], 1e-12)
	assert.Equal(t, 1.0, row0[2])
	assert.True(t, math.IsNaN(row0[3]))
	assert.Equal(t, 0.0, res.Frame.Values[1][2])
}

func TestPreprocessArchiveK2IndicatorsFollowAliases(t *testing.T) {
	content := "period,disposition\n,CANDIDATE\n3.5,CONFIRMED\n"
	s := k2Spec()
	s.ExpectedFeatures = []string{"pl_orbper", "pl_orbper_was_missing"}

	res, err := s.PreprocessArchive([]byte(content), "")
	require.NoError(t, err)

	assert.Empty(t, res.Missing)
	require.Len(t, res.Frame.Values, 2)
	assert.True(t, math.IsNaN(res.Frame.Values[0][0]))
	assert.Equal(t, 1.0, res.Frame.Values[0][1])
	assert.Equal(t, []float64{3.5, 0}, res.Frame.Values[1])
	assert.Equal(t, []string{"CANDIDATE", "CONFIRMED"}, res.Truth)
}

func TestPreprocessArchiveWithoutLabel(t *testing.T) {
	content := "koi_period,koi_depth\n10,600\n"
	res, err := koiWithFeatures("koi_period", "koi_depth").PreprocessArchive([]byte(content), "")
	require.NoError(t, err)

	assert.False(t, res.HasTruth)
	assert.Empty(t, res.Missing)
	assert.Equal(t, [][]float64{{10, 600}}, res.Frame.Values)
}
