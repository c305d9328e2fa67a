package slug

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taohansen/blog-backend/errs"
	"github.com/taohansen/blog-backend/models"
)

// fakeLookup maps slug -> holder ids and counts queries.
type fakeLookup struct {
	holders map[string][]string
	calls   []string
	err     error
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{holders: map[string][]string{}}
}

func (f *fakeLookup) hold(slug string, ids ...string) {
	f.holders[slug] = append(f.holders[slug], ids...)
}

func (f *fakeLookup) SlugHolders(_ context.Context, slug string) ([]models.SlugHolder, error) {
	f.calls = append(f.calls, slug)
	if f.err != nil {
		return nil, f.err
	}
	var out []models.SlugHolder
	for _, id := range f.holders[slug] {
		out = append(out, models.SlugHolder{ID: id, Slug: slug})
	}
	return out, nil
}

var fixedNow = time.Date(2026, time.March, 14, 15, 9, 26, 535000000, time.UTC)

func newTestAllocator(store Lookup) *Allocator {
	return NewAllocator(store, WithClock(func() time.Time { return fixedNow }))
}

func TestAllocateExactCandidate(t *testing.T) {
	store := newFakeLookup()
	got, err := newTestAllocator(store).Allocate(context.Background(), "ola-mundo", "")

	require.NoError(t, err)
	assert.Equal(t, "ola-mundo", got)
	assert.Equal(t, []string{"ola-mundo"}, store.calls)
}

func TestAllocateSequentialSuffix(t *testing.T) {
	store := newFakeLookup()
	store.hold("ola-mundo", "post-1")

	got, err := newTestAllocator(store).Allocate(context.Background(), "ola-mundo", "")

	require.NoError(t, err)
	assert.Equal(t, "ola-mundo-2", got)
}

func TestAllocateSkipsTakenSequentialSuffixes(t *testing.T) {
	store := newFakeLookup()
	store.hold("ola-mundo", "p1")
	store.hold("ola-mundo-2", "p2")
	store.hold("ola-mundo-3", "p3")

	got, err := newTestAllocator(store).Allocate(context.Background(), "ola-mundo", "")

	require.NoError(t, err)
	assert.Equal(t, "ola-mundo-4", got)
}

func TestAllocateExcludedOwnerIsNotACollision(t *testing.T) {
	store := newFakeLookup()
	store.hold("ola-mundo", "owner")

	got, err := newTestAllocator(store).Allocate(context.Background(), "ola-mundo", "owner")

	require.NoError(t, err)
	assert.Equal(t, "ola-mundo", got)
}

func TestAllocateExcludedOwnerSharingWithAnotherPostCollides(t *testing.T) {
	store := newFakeLookup()
	store.hold("ola-mundo", "owner", "intruder")

	got, err := newTestAllocator(store).Allocate(context.Background(), "ola-mundo", "owner")

	require.NoError(t, err)
	assert.Equal(t, "ola-mundo-2", got)
}

func TestAllocateFallsThroughToDateTier(t *testing.T) {
	store := newFakeLookup()
	store.hold("guide", "p0")
	for n := 2; n < 2+DefaultMaxSequential; n++ {
		store.hold("guide-"+strconv.Itoa(n), "p"+strconv.Itoa(n))
	}

	got, err := newTestAllocator(store).Allocate(context.Background(), "guide", "")

	require.NoError(t, err)
	assert.Equal(t, "guide-2026-03", got)
	// exact + 50 sequential + date
	assert.Len(t, store.calls, 1+DefaultMaxSequential+1)
}

func TestAllocateFallsThroughToHashTier(t *testing.T) {
	store := newFakeLookup()
	alloc := NewAllocator(store, WithClock(func() time.Time { return fixedNow }), WithLimits(2, 5))
	store.hold("guide", "p0")
	store.hold("guide-2", "p2")
	store.hold("guide-3", "p3")
	store.hold("guide-2026-03", "pd")

	got, err := alloc.Allocate(context.Background(), "guide", "")

	require.NoError(t, err)
	want := "guide-" + shortHash("guide"+strconv.FormatInt(fixedNow.UnixNano(), 10)+"0")
	assert.Equal(t, want, got)
	assert.Regexp(t, `^guide-[0-9a-f]{6}$`, got)
}

func TestAllocateTimestampIsUnconditionalLastResort(t *testing.T) {
	store := newFakeLookup()
	alloc := NewAllocator(store, WithClock(func() time.Time { return fixedNow }), WithLimits(1, 5))
	store.hold("guide", "p0")
	store.hold("guide-2", "p2")
	store.hold("guide-2026-03", "pd")
	for attempt := 0; attempt < 5; attempt++ {
		store.hold("guide-"+shortHash("guide"+strconv.FormatInt(fixedNow.UnixNano(), 10)+strconv.Itoa(attempt)), "h")
	}

	got, err := alloc.Allocate(context.Background(), "guide", "")

	require.NoError(t, err)
	assert.Equal(t, "guide-"+strconv.FormatInt(fixedNow.UnixMilli(), 10), got)
	// exact + 1 sequential + date + 5 hashes; the timestamp is not probed
	assert.Len(t, store.calls, 8)
}

func TestAllocateAlwaysTerminates(t *testing.T) {
	store := &everythingTaken{}
	got, err := newTestAllocator(store).Allocate(context.Background(), "busy", "")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "busy-"))
	assert.Equal(t, 1+DefaultMaxSequential+1+DefaultMaxHashAttempts, store.calls)
}

type everythingTaken struct{ calls int }

func (e *everythingTaken) SlugHolders(_ context.Context, slug string) ([]models.SlugHolder, error) {
	e.calls++
	return []models.SlugHolder{{ID: "someone", Slug: slug}}, nil
}

func TestAllocateEmptyBaseIsInvalidInput(t *testing.T) {
	store := newFakeLookup()
	for _, base := range []string{"", "   ", "---", "!!!"} {
		_, err := newTestAllocator(store).Allocate(context.Background(), base, "")
		assert.True(t, errs.IsInvalidInput(err), "base %q", base)
	}
	assert.Empty(t, store.calls)
}

func TestAllocatePropagatesStoreErrors(t *testing.T) {
	store := newFakeLookup()
	store.err = errs.NewStoreError("query", "slug", errors.New("connection refused"))

	_, err := newTestAllocator(store).Allocate(context.Background(), "ola-mundo", "")

	assert.True(t, errs.IsStoreError(err))
}

func TestAllocateStopsOnCancelledContext(t *testing.T) {
	store := newFakeLookup()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestAllocator(store).Allocate(ctx, "ola-mundo", "")

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, store.calls)
}

func TestAllocateKeepsSuffixedSlugsWithinMaxLength(t *testing.T) {
	store := newFakeLookup()
	base := strings.Repeat("a", MaxLength)
	store.hold(base, "p0")

	got, err := newTestAllocator(store).Allocate(context.Background(), base, "")

	require.NoError(t, err)
	assert.Len(t, got, MaxLength)
	assert.True(t, strings.HasSuffix(got, "-2"))
	assert.True(t, IsValid(got))
}

func TestAllocateFromTitle(t *testing.T) {
	store := newFakeLookup()
	store.hold("ola-mundo", "p1")

	got, err := newTestAllocator(store).AllocateFromTitle(context.Background(), "Olá, Mundo!", "")

	require.NoError(t, err)
	assert.Equal(t, "ola-mundo-2", got)
}

func TestAllocateFromTitleFallbackSeed(t *testing.T) {
	store := newFakeLookup()

	got, err := newTestAllocator(store).AllocateFromTitle(context.Background(), "日本語", "")

	require.NoError(t, err)
	assert.Equal(t, "post-2026-03-"+shortHash("日本語"), got)
	assert.True(t, IsValid(got))
}

func TestAllocateFromBlankTitle(t *testing.T) {
	_, err := newTestAllocator(newFakeLookup()).AllocateFromTitle(context.Background(), "  ", "")
	assert.True(t, errs.IsInvalidInput(err))
}
