package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/korpus/pkg/korpus/codec"
	"github.com/cognicore/korpus/pkg/korpus/internalerr"
	"github.com/cognicore/korpus/pkg/korpus/store"
)

var _ store.Store = (*Store)(nil)

func TestRuns(t *testing.T) {
	ctx := context.Background()
	s := New()
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertRun(ctx, store.Run{ID: "b", Topic: "wars", StartedAt: t0.Add(time.Hour)}))
	require.NoError(t, s.UpsertRun(ctx, store.Run{ID: "a", Topic: "wars", StartedAt: t0}))
	require.NoError(t, s.UpsertRun(ctx, store.Run{ID: "c", Topic: "trek", StartedAt: t0}))

	runs, err := s.RunsByTopic(ctx, "wars")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "a", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)

	_, found, err := s.GetRun(ctx, "zzz")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDictionaryAndSplits(t *testing.T) {
	ctx := context.Background()
	s := New()
	d := codec.Build([]string{"a", "b", "a"}, 0)

	assert.ErrorIs(t, s.ReplaceDictionary(ctx, "r1", d), internalerr.ErrNotFound)
	assert.ErrorIs(t, s.UpsertSplit(ctx, "r1", store.SplitStats{Name: "train"}), internalerr.ErrNotFound)

	require.NoError(t, s.UpsertRun(ctx, store.Run{ID: "r1", Topic: "t"}))
	_, err := s.GetDictionary(ctx, "r1")
	assert.ErrorIs(t, err, internalerr.ErrNotFound)

	require.NoError(t, s.ReplaceDictionary(ctx, "r1", d))
	got, err := s.GetDictionary(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, d.Tokens(), got.Tokens())

	require.NoError(t, s.UpsertSplit(ctx, "r1", store.SplitStats{Name: "valid", Tokens: 3}))
	require.NoError(t, s.UpsertSplit(ctx, "r1", store.SplitStats{Name: "train", Tokens: 1}))
	require.NoError(t, s.UpsertSplit(ctx, "r1", store.SplitStats{Name: "train", Tokens: 9}))
	splits, err := s.GetSplits(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []store.SplitStats{{Name: "train", Tokens: 9}, {Name: "valid", Tokens: 3}}, splits)
}
