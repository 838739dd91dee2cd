package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/moses-scraper/internal/scraper"
	"github.com/JakeFAU/moses-scraper/internal/store"
)

func TestDimensionsConcurrentResolveIsStable(t *testing.T) {
	t.Parallel()

	dims := NewDimensions()
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]int64, 16)
	errs := make([]error, len(ids))
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = dims.Faculty(ctx, "Fakultät IV")
		}(i)
	}
	wg.Wait()

	for i, id := range ids {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], id)
	}
	require.Equal(t, 1, dims.Len("faculty"))

	inst, err := dims.Institute(ctx, "Fakultät IV")
	require.NoError(t, err)
	require.NotEqual(t, ids[0], inst)
}

func TestDimensionsStupoScopedByProgram(t *testing.T) {
	t.Parallel()

	dims := NewDimensions()
	ctx := context.Background()
	a, err := dims.StudyProgram(ctx, "Informatik", "l")
	require.NoError(t, err)
	b, err := dims.StudyProgram(ctx, "Mathematik", "l")
	require.NoError(t, err)

	sa, err := dims.Stupo(ctx, a, "StuPO 2015", "l")
	require.NoError(t, err)
	sb, err := dims.Stupo(ctx, b, "StuPO 2015", "l")
	require.NoError(t, err)
	require.NotEqual(t, sa, sb)

	again, err := dims.Stupo(ctx, a, "StuPO 2015", "other")
	require.NoError(t, err)
	require.Equal(t, sa, again)
}

func TestDimensionsHonorCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDimensions().Fachgebiet(ctx, "DIMA")
	require.ErrorIs(t, err, context.Canceled)
}

func TestModuleStoreKeepsSnapshotHistory(t *testing.T) {
	t.Parallel()

	ms := NewModuleStore()
	ctx := context.Background()
	first := &scraper.ModuleSnapshot{Module: scraper.ModuleRow{ID: 1, Version: 2, RunID: 1, Title: "alt"}}
	second := &scraper.ModuleSnapshot{Module: scraper.ModuleRow{ID: 1, Version: 2, RunID: 2, Title: "neu"}}

	require.NoError(t, ms.Persist(ctx, first))
	require.NoError(t, ms.Persist(ctx, second))
	require.ErrorIs(t, ms.Persist(ctx, first), ErrDuplicateSnapshot)

	latest, ok := ms.Latest(1, 2)
	require.True(t, ok)
	require.Equal(t, "neu", latest.Module.Title)
	require.Len(t, ms.Snapshots(), 2)

	_, ok = ms.Latest(1, 3)
	require.False(t, ok)
}

func TestRunStoreLifecycle(t *testing.T) {
	t.Parallel()

	clock := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	rs := NewRunStore(func() time.Time { return clock })
	ctx := context.Background()

	run, err := rs.Create(ctx, uuid.New(), 10)
	require.NoError(t, err)
	require.Equal(t, store.RunInProgress, run.Status)
	require.Equal(t, clock, run.StartedAt)

	active, err := rs.FindActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, run.ID, active.ID)

	require.NoError(t, rs.UpdateCounts(ctx, run.ID, scraper.Tally{Completed: 2, Successful: 1, Skipped: 1}))
	require.NoError(t, rs.Finish(ctx, run.ID, store.RunCompleted, scraper.Tally{Completed: 10, Successful: 8, Failed: 1, Skipped: 1}))
	require.ErrorIs(t, rs.Finish(ctx, run.ID, store.RunFailed, scraper.Tally{}), store.ErrRunNotActive)
	require.ErrorIs(t, rs.UpdateCounts(ctx, run.ID, scraper.Tally{}), store.ErrRunNotActive)

	got, err := rs.Get(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, store.RunCompleted, got.Status)
	require.Equal(t, 10, got.Completed())
	require.NotNil(t, got.CompletedAt)

	active, err = rs.FindActive(ctx)
	require.NoError(t, err)
	require.Nil(t, active)

	_, err = rs.Get(ctx, 99)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunStoreListPaging(t *testing.T) {
	t.Parallel()

	rs := NewRunStore(nil)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := rs.Create(ctx, uuid.New(), i)
		require.NoError(t, err)
	}
	require.NoError(t, rs.Finish(ctx, 2, store.RunFailed, scraper.Tally{}))

	all, err := rs.List(ctx, nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	require.Equal(t, int64(5), all[0].ID)

	page, err := rs.List(ctx, nil, 2, 1)
	require.NoError(t, err)
	require.Equal(t, []int64{4, 3}, []int64{page[0].ID, page[1].ID})

	failed := store.RunFailed
	onlyFailed, err := rs.List(ctx, &failed, 10, 0)
	require.NoError(t, err)
	require.Len(t, onlyFailed, 1)

	empty, err := rs.List(ctx, nil, 10, 10)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestArchive(t *testing.T) {
	t.Parallel()

	a := NewArchive()
	body := []byte("<html></html>")
	uri, err := a.PutPage(context.Background(), "pages/r/1-v1.html", body)
	require.NoError(t, err)
	require.Equal(t, "memory://pages/r/1-v1.html", uri)

	body[0] = 'X'
	got, ok := a.Page("pages/r/1-v1.html")
	require.True(t, ok)
	require.Equal(t, "<html></html>", string(got))
	require.Equal(t, 1, a.Len())

	_, err = a.PutPage(context.Background(), "", nil)
	require.Error(t, err)
}
