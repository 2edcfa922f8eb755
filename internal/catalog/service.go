package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yungbote/galaxychat-backend/internal/domain/chat"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

const (
	DefaultTTL           = 24 * time.Hour
	DefaultRetryInterval = 5 * time.Minute
)

var ErrUnavailable = errors.New("model catalog unavailable")

type Options struct {
	TTL time.Duration
	// FetchTimeout bounds one refresh, independent of the caller's deadline.
	FetchTimeout time.Duration
	// RetryInterval is how long a failed refresh is remembered before fetching again.
	RetryInterval time.Duration
	Now           func() time.Time
}

// Service caches the catalog for TTL. Concurrent refreshes collapse into one fetch.
// A failed refresh keeps serving the last snapshot and is not retried for RetryInterval.
type Service struct {
	log     *logger.Logger
	fetcher Fetcher
	store   Store
	ttl     time.Duration
	timeout time.Duration
	retry   time.Duration
	now     func() time.Time

	g singleflight.Group

	mu        sync.RWMutex
	cached    Catalog
	fetchedAt time.Time
	failedAt  time.Time
}

func NewService(log *logger.Logger, fetcher Fetcher, store Store, opts Options) *Service {
	if store == nil {
		store = NewMemoryStore()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	retry := opts.RetryInterval
	if retry <= 0 {
		retry = DefaultRetryInterval
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		log:     log.With("service", "CatalogService"),
		fetcher: fetcher,
		store:   store,
		ttl:     ttl,
		timeout: timeout,
		retry:   retry,
		now:     now,
	}
}

func (s *Service) fresh(at time.Time) bool {
	return !at.IsZero() && s.now().Sub(at) < s.ttl
}

// Get returns the catalog, refreshing it when older than TTL.
func (s *Service) Get(ctx context.Context) (Catalog, error) {
	s.mu.RLock()
	c, at, failedAt := s.cached, s.fetchedAt, s.failedAt
	s.mu.RUnlock()
	if c != nil && s.fresh(at) {
		return c, nil
	}
	if !failedAt.IsZero() && s.now().Sub(failedAt) < s.retry {
		if c != nil {
			return c, nil
		}
		return nil, ErrUnavailable
	}

	v, err, _ := s.g.Do("catalog", func() (interface{}, error) {
		return s.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(Catalog), nil
}

func (s *Service) refresh(ctx context.Context) (Catalog, error) {
	if snap, err := s.store.Get(ctx); err != nil {
		s.log.Warn("Catalog store read failed", "error", err)
	} else if snap != nil && s.fresh(snap.FetchedAt) {
		if c, perr := Parse(snap.Raw); perr == nil {
			s.remember(c, snap.FetchedAt)
			return c, nil
		}
	}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	raw, err := s.fetcher.Fetch(fctx)
	var c Catalog
	if err == nil {
		c, err = Parse(raw)
	}
	if err != nil {
		s.mu.Lock()
		s.failedAt = s.now()
		s.mu.Unlock()
		if stale := s.stale(ctx); stale != nil {
			s.log.Warn("Catalog refresh failed, serving stale snapshot", "error", err)
			return stale, nil
		}
		s.log.Warn("Catalog refresh failed", "error", err)
		return nil, errors.Join(ErrUnavailable, err)
	}

	at := s.now()
	s.remember(c, at)
	if perr := s.store.Put(ctx, Snapshot{Raw: raw, FetchedAt: at}); perr != nil {
		s.log.Warn("Catalog store write failed", "error", perr)
	}
	return c, nil
}

func (s *Service) remember(c Catalog, at time.Time) {
	s.mu.Lock()
	s.cached, s.fetchedAt, s.failedAt = c, at, time.Time{}
	s.mu.Unlock()
}

func (s *Service) stale(ctx context.Context) Catalog {
	s.mu.RLock()
	c := s.cached
	s.mu.RUnlock()
	if c != nil {
		return c
	}
	snap, err := s.store.Get(ctx)
	if err != nil || snap == nil {
		return nil
	}
	c, err = Parse(snap.Raw)
	if err != nil {
		return nil
	}
	s.mu.Lock()
	if s.cached == nil {
		s.cached, s.fetchedAt = c, snap.FetchedAt
	}
	s.mu.Unlock()
	return c
}

// Enrich adds catalog data for modelID to u. An empty model id or an unavailable
// catalog returns u unchanged.
func (s *Service) Enrich(ctx context.Context, u chat.Usage, modelID string) chat.Usage {
	u = u.Normalized()
	if modelID == "" || s == nil {
		return u
	}
	c, err := s.Get(ctx)
	if err != nil {
		return u
	}
	return c.Enrich(u, modelID)
}
