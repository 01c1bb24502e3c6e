// Package stocknames resolves stock codes to display names.
//
// The service is caller-owned: construct it with New, inject the cache and
// the fetchers, and pass it to whoever needs lookups. There is no package
// global. Lookups fall back through layers — in-memory cache, primary
// source, secondary source, built-in dictionary — and always return a
// usable name.
package stocknames

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"stockdaily/pkg/logx"
)

// Fetcher retrieves stock names from one remote source.
type Fetcher interface {
	// BulkNames returns the full code→name listing of the source.
	BulkNames(ctx context.Context) (map[string]string, error)
	// Name resolves a single code.
	Name(ctx context.Context, code string) (string, error)
}

// Cache persists the name table between runs. Implementations must be safe
// for use from a single service instance; the service serializes access.
type Cache interface {
	// Load returns the persisted table (possibly empty).
	Load(ctx context.Context) (map[string]string, error)
	// Store upserts the given entries.
	Store(ctx context.Context, names map[string]string) error
	Close() error
}

// Options configures a Service. Cache, Primary and Secondary may each be nil;
// the service degrades to the remaining layers.
type Options struct {
	Cache     Cache
	Primary   Fetcher
	Secondary Fetcher

	// FetchTimeout bounds each source call; default 5s. This is the
	// structured replacement for the signal-based timeout the old tooling
	// used: the deadline travels with the context into the call.
	FetchTimeout time.Duration

	// RatePerSec throttles per-code fallback lookups; default 2.
	RatePerSec int

	Log logx.Logger
}

// Stats reports cache occupancy.
type Stats struct {
	Cached      int
	LastRefresh time.Time
}

type Service struct {
	log       logx.Logger
	cache     Cache
	primary   Fetcher
	secondary Fetcher
	timeout   time.Duration
	limiter   *rate.Limiter

	mu          sync.RWMutex
	names       map[string]string
	lastRefresh time.Time
}

func New(opts Options) *Service {
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	rps := opts.RatePerSec
	if rps <= 0 {
		rps = 2
	}
	return &Service{
		log:       log,
		cache:     opts.Cache,
		primary:   opts.Primary,
		secondary: opts.Secondary,
		timeout:   timeout,
		limiter:   rate.NewLimiter(rate.Limit(rps), rps),
		names:     map[string]string{},
	}
}

// Bootstrap warms the in-memory table: persisted cache first, then a bulk
// fetch from the sources. When everything fails it falls back to the
// built-in dictionary so lookups still work offline.
func (s *Service) Bootstrap(ctx context.Context) {
	if s.cache != nil {
		if persisted, err := s.cache.Load(ctx); err != nil {
			s.log.Warn("name cache load failed", logx.Err(err))
		} else if len(persisted) > 0 {
			s.merge(persisted)
			s.log.Info("name cache loaded", logx.Int("entries", len(persisted)))
		}
	}

	fetched, src := s.bulkFetch(ctx)
	if len(fetched) > 0 {
		s.merge(fetched)
		s.persist(ctx, fetched)
		s.log.Info("stock names loaded", logx.String("source", src), logx.Int("entries", len(fetched)))
		return
	}

	if s.count() == 0 {
		s.merge(fallbackNames)
		s.log.Warn("bulk name load failed; using built-in dictionary", logx.Int("entries", len(fallbackNames)))
	}
}

// Name resolves a code to a display name. It never fails: cache miss falls
// through primary, secondary, the built-in dictionary, and finally a
// synthesized "股票<code>" placeholder.
func (s *Service) Name(ctx context.Context, code string) string {
	s.mu.RLock()
	name, ok := s.names[code]
	s.mu.RUnlock()
	if ok {
		return name
	}

	for _, f := range []Fetcher{s.primary, s.secondary} {
		if f == nil {
			continue
		}
		name, err := s.fetchOne(ctx, f, code)
		if err != nil {
			s.log.Debug("name lookup source failed", logx.String("code", code), logx.Err(err))
			continue
		}
		if name != "" {
			s.merge(map[string]string{code: name})
			s.persist(ctx, map[string]string{code: name})
			return name
		}
	}

	if name, ok := fallbackNames[code]; ok {
		return name
	}
	return "股票" + code
}

// Refresh re-fetches the full listing and reports newly seen codes, sorted.
// The original tooling ran this daily before market open to detect new
// listings.
func (s *Service) Refresh(ctx context.Context) ([]string, error) {
	fetched, src := s.bulkFetch(ctx)
	if len(fetched) == 0 {
		return nil, fmt.Errorf("all name sources failed")
	}

	s.mu.Lock()
	var added []string
	for code, name := range fetched {
		if _, ok := s.names[code]; !ok {
			added = append(added, code)
		}
		s.names[code] = name
	}
	s.lastRefresh = time.Now()
	s.mu.Unlock()

	sort.Strings(added)
	s.persist(ctx, fetched)
	s.log.Info("stock names refreshed",
		logx.String("source", src),
		logx.Int("entries", len(fetched)),
		logx.Int("new_listings", len(added)))
	return added, nil
}

func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Cached: len(s.names), LastRefresh: s.lastRefresh}
}

func (s *Service) Close() error {
	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}

func (s *Service) bulkFetch(ctx context.Context) (map[string]string, string) {
	type source struct {
		name string
		f    Fetcher
	}
	for _, src := range []source{{"primary", s.primary}, {"secondary", s.secondary}} {
		if src.f == nil {
			continue
		}
		fctx, cancel := context.WithTimeout(ctx, s.timeout)
		names, err := src.f.BulkNames(fctx)
		cancel()
		if err != nil {
			s.log.Warn("bulk name fetch failed", logx.String("source", src.name), logx.Err(err))
			continue
		}
		if len(names) > 0 {
			return names, src.name
		}
	}
	return nil, ""
}

func (s *Service) fetchOne(ctx context.Context, f Fetcher, code string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	fctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return f.Name(fctx, code)
}

func (s *Service) merge(names map[string]string) {
	s.mu.Lock()
	for code, name := range names {
		if name != "" {
			s.names[code] = name
		}
	}
	s.mu.Unlock()
}

func (s *Service) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.names)
}

func (s *Service) persist(ctx context.Context, names map[string]string) {
	if s.cache == nil || len(names) == 0 {
		return
	}
	if err := s.cache.Store(ctx, names); err != nil {
		s.log.Warn("name cache store failed", logx.Err(err))
	}
}
