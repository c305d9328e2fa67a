package slug

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/taohansen/blog-backend/errs"
	"github.com/taohansen/blog-backend/models"
)

const (
	DefaultMaxSequential   = 50
	DefaultMaxHashAttempts = 5

	hashLength  = 6
	monthLayout = "2006-01"
)

// Lookup is the part of the document store the allocator needs.
type Lookup interface {
	SlugHolders(ctx context.Context, slug string) ([]models.SlugHolder, error)
}

// Allocator resolves slug collisions against the store. It keeps no state
// between calls; every decision is made from a fresh store query.
type Allocator struct {
	store           Lookup
	now             func() time.Time
	maxSequential   int
	maxHashAttempts int
	logger          zerolog.Logger
}

func WithClock(now func() time.Time) func(*Allocator) {
	return func(a *Allocator) {
		a.now = now
	}
}

func WithLimits(maxSequential, maxHashAttempts int) func(*Allocator) {
	return func(a *Allocator) {
		a.maxSequential = maxSequential
		a.maxHashAttempts = maxHashAttempts
	}
}

func NewAllocator(store Lookup, opts ...func(*Allocator)) *Allocator {
	a := &Allocator{
		store:           store,
		now:             time.Now,
		maxSequential:   DefaultMaxSequential,
		maxHashAttempts: DefaultMaxHashAttempts,
		logger:          log.With().Str("component", "slugAllocator").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SlugInUse reports whether a post other than excludeID holds slug.
func (a *Allocator) SlugInUse(ctx context.Context, slug, excludeID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errs.NewStoreError("query", "slug", err)
	}
	holders, err := a.store.SlugHolders(ctx, slug)
	if err != nil {
		return false, err
	}
	for _, h := range holders {
		if excludeID == "" || h.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

// AllocateFromTitle normalizes title and allocates from it. A title with no
// usable characters falls back to "post-<yyyy-mm>-<hash>".
func (a *Allocator) AllocateFromTitle(ctx context.Context, title, excludeID string) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", errs.NewInvalidInputError("title", "title cannot be empty")
	}

	base := Normalize(title)
	if base == "" {
		base = fmt.Sprintf("post-%s-%s", a.now().Format(monthLayout), shortHash(title))
		a.logger.Debug().Str("slug", base).Msg("title has no slug characters, using fallback seed")
	}
	return a.Allocate(ctx, base, excludeID)
}

// Allocate returns base if it is free, otherwise the first free candidate of
// base-2 … base-N, base-<yyyy-mm>, base-<hash>. If every probe collides the
// millisecond timestamp suffix is returned without a further check.
func (a *Allocator) Allocate(ctx context.Context, base, excludeID string) (string, error) {
	candidate := Sanitize(base)
	if candidate == "" {
		return "", errs.NewInvalidInputError("slug", "slug base cannot be empty")
	}

	free, err := a.isFree(ctx, candidate, excludeID)
	if err != nil {
		return "", err
	}
	if free {
		a.logger.Debug().Str("slug", candidate).Msg("slug allocated")
		return candidate, nil
	}

	for n := 2; n < 2+a.maxSequential; n++ {
		seq := withSuffix(candidate, strconv.Itoa(n))
		if free, err = a.isFree(ctx, seq, excludeID); err != nil {
			return "", err
		}
		if free {
			a.logger.Debug().Str("base", candidate).Str("slug", seq).Msg("sequential slug allocated")
			return seq, nil
		}
	}
	a.logger.Warn().Str("base", candidate).Int("attempts", a.maxSequential).Msg("sequential slug attempts exhausted")

	dated := withSuffix(candidate, a.now().Format(monthLayout))
	if free, err = a.isFree(ctx, dated, excludeID); err != nil {
		return "", err
	}
	if free {
		a.logger.Debug().Str("base", candidate).Str("slug", dated).Msg("dated slug allocated")
		return dated, nil
	}

	for attempt := 0; attempt < a.maxHashAttempts; attempt++ {
		hashed := withSuffix(candidate, shortHash(candidate+strconv.FormatInt(a.now().UnixNano(), 10)+strconv.Itoa(attempt)))
		if free, err = a.isFree(ctx, hashed, excludeID); err != nil {
			return "", err
		}
		if free {
			a.logger.Debug().Str("base", candidate).Str("slug", hashed).Msg("hashed slug allocated")
			return hashed, nil
		}
	}

	stamped := withSuffix(candidate, strconv.FormatInt(a.now().UnixMilli(), 10))
	a.logger.Warn().Str("base", candidate).Str("slug", stamped).Msg("hash attempts exhausted, using timestamp slug")
	return stamped, nil
}

func (a *Allocator) isFree(ctx context.Context, slug, excludeID string) (bool, error) {
	inUse, err := a.SlugInUse(ctx, slug, excludeID)
	return !inUse, err
}

// withSuffix joins base and suffix with a hyphen, shortening base so the
// result still fits in MaxLength.
func withSuffix(base, suffix string) string {
	room := MaxLength - len(suffix) - 1
	if len(base) > room {
		base = strings.TrimRight(base[:room], "-")
	}
	return base + "-" + suffix
}

func shortHash(input string) string {
	sum := md5.Sum([]byte(input))
	return hex.EncodeToString(sum[:])[:hashLength]
}
