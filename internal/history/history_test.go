package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "data", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// clock returns a now func that advances by step on every call.
func clock(start time.Time, step time.Duration) func() time.Time {
	cur := start
	return func() time.Time {
		t := cur
		cur = cur.Add(step)
		return t
	}
}

func TestRecordAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acc := 0.75

	run, err := s.Record(ctx, Run{
		Model:           "koi",
		Endpoint:        "evaluate",
		Rows:            4,
		MissingFeatures: 2,
		Counts:          map[string]int{"CANDIDATE": 3, "FALSE POSITIVE": 1},
		Notes:           []string{"derived koi_period_rel_error from koi_period/koi_period_err1/koi_period_err2"},
		Accuracy:        &acc,
	})
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)

	got, err := s.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "koi", got.Model)
	assert.Equal(t, 4, got.Rows)
	assert.Equal(t, 2, got.MissingFeatures)
	assert.Equal(t, run.Counts, got.Counts)
	assert.Equal(t, run.Notes, got.Notes)
	require.NotNil(t, got.Accuracy)
	assert.Equal(t, 0.75, *got.Accuracy)
	assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
}

func TestGetUnknown(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	s.now = clock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)
	ctx := context.Background()

	for _, model := range []string{"koi", "k2", "tess"} {
		_, err := s.Record(ctx, Run{Model: model, Endpoint: "predict", Rows: 1})
		require.NoError(t, err)
	}

	runs, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "tess", runs[0].Model)
	assert.Equal(t, "k2", runs[1].Model)
	assert.Nil(t, runs[0].Accuracy)

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = clock(start, 24*time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Record(ctx, Run{Model: "koi", Endpoint: "predict"})
		require.NoError(t, err)
	}

	n, err := s.Prune(ctx, start.Add(36*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	runs, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].CreatedAt.Equal(start.Add(48*time.Hour)))
}

func TestPrunerPruneNow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return now.Add(-10 * 24 * time.Hour) }
	_, err := s.Record(ctx, Run{Model: "koi", Endpoint: "predict"})
	require.NoError(t, err)
	s.now = func() time.Time { return now }
	_, err = s.Record(ctx, Run{Model: "k2", Endpoint: "predict"})
	require.NoError(t, err)

	p, err := NewPruner(s, 7*24*time.Hour, "0 3 * * *", zaptest.NewLogger(t))
	require.NoError(t, err)
	p.Start()
	defer p.Stop()

	n, err := p.PruneNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNewPrunerRejectsBadInput(t *testing.T) {
	s := newTestStore(t)
	logger := zaptest.NewLogger(t)

	_, err := NewPruner(s, 0, "0 3 * * *", logger)
	assert.Error(t, err)

	_, err = NewPruner(s, time.Hour, "every tuesday", logger)
	assert.Error(t, err)
}
