package stocknames

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

type stubFetcher struct {
	bulk    map[string]string
	bulkErr error
	single  map[string]string
	calls   int
}

func (f *stubFetcher) BulkNames(ctx context.Context) (map[string]string, error) {
	f.calls++
	if f.bulkErr != nil {
		return nil, f.bulkErr
	}
	return f.bulk, nil
}

func (f *stubFetcher) Name(ctx context.Context, code string) (string, error) {
	if name, ok := f.single[code]; ok {
		return name, nil
	}
	return "", errors.New("not found")
}

type memCache struct {
	names    map[string]string
	loadErr  error
	storeErr error
}

func (c *memCache) Load(ctx context.Context) (map[string]string, error) {
	if c.loadErr != nil {
		return nil, c.loadErr
	}
	return c.names, nil
}

func (c *memCache) Store(ctx context.Context, names map[string]string) error {
	if c.storeErr != nil {
		return c.storeErr
	}
	if c.names == nil {
		c.names = map[string]string{}
	}
	for k, v := range names {
		c.names[k] = v
	}
	return nil
}

func (c *memCache) Close() error { return nil }

func TestBootstrapPrefersPrimary(t *testing.T) {
	t.Parallel()
	svc := New(Options{
		Primary:   &stubFetcher{bulk: map[string]string{"600519": "貴州茅台"}},
		Secondary: &stubFetcher{bulk: map[string]string{"600519": "wrong"}},
	})
	svc.Bootstrap(context.Background())
	if got := svc.Name(context.Background(), "600519"); got != "貴州茅台" {
		t.Fatalf("Name = %q, want primary value", got)
	}
}

func TestBootstrapFallsBackToSecondary(t *testing.T) {
	t.Parallel()
	svc := New(Options{
		Primary:   &stubFetcher{bulkErr: errors.New("down")},
		Secondary: &stubFetcher{bulk: map[string]string{"000001": "平安銀行"}},
	})
	svc.Bootstrap(context.Background())
	if got := svc.Stats().Cached; got != 1 {
		t.Fatalf("cached = %d, want 1", got)
	}
}

func TestBootstrapUsesBuiltinDictionaryOffline(t *testing.T) {
	t.Parallel()
	svc := New(Options{
		Primary:   &stubFetcher{bulkErr: errors.New("down")},
		Secondary: &stubFetcher{bulkErr: errors.New("down")},
	})
	svc.Bootstrap(context.Background())
	if got := svc.Name(context.Background(), "600519"); got != "貴州茅台" {
		t.Fatalf("Name = %q, want built-in dictionary value", got)
	}
}

func TestNameSynthesizesPlaceholder(t *testing.T) {
	t.Parallel()
	svc := New(Options{})
	if got := svc.Name(context.Background(), "999999"); got != "股票999999" {
		t.Fatalf("Name = %q, want synthesized placeholder", got)
	}
}

func TestNameSingleLookupFallback(t *testing.T) {
	t.Parallel()
	svc := New(Options{
		Primary:    &stubFetcher{single: map[string]string{}},
		Secondary:  &stubFetcher{single: map[string]string{"688001": "華興源創"}},
		RatePerSec: 100,
	})
	if got := svc.Name(context.Background(), "688001"); got != "華興源創" {
		t.Fatalf("Name = %q, want secondary lookup value", got)
	}
	// Resolved once, the name is served from cache afterwards.
	if got := svc.Name(context.Background(), "688001"); got != "華興源創" {
		t.Fatalf("cached Name = %q, want secondary lookup value", got)
	}
}

func TestRefreshDetectsNewListings(t *testing.T) {
	t.Parallel()
	f := &stubFetcher{bulk: map[string]string{"600519": "貴州茅台"}}
	svc := New(Options{Primary: f})
	svc.Bootstrap(context.Background())

	f.bulk = map[string]string{
		"600519": "貴州茅台",
		"301999": "新股一",
		"301998": "新股二",
	}
	added, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if len(added) != 2 || added[0] != "301998" || added[1] != "301999" {
		t.Fatalf("added = %v, want sorted new listings", added)
	}
	if svc.Stats().LastRefresh.IsZero() {
		t.Fatal("Refresh should record its timestamp")
	}
}

func TestRefreshFailsWhenAllSourcesDown(t *testing.T) {
	t.Parallel()
	svc := New(Options{Primary: &stubFetcher{bulkErr: errors.New("down")}})
	if _, err := svc.Refresh(context.Background()); err == nil {
		t.Fatal("expected error when every source fails")
	}
}

func TestBootstrapLoadsPersistedCache(t *testing.T) {
	t.Parallel()
	cache := &memCache{names: map[string]string{"600036": "招商銀行"}}
	svc := New(Options{Cache: cache})
	svc.Bootstrap(context.Background())
	if got := svc.Name(context.Background(), "600036"); got != "招商銀行" {
		t.Fatalf("Name = %q, want persisted value", got)
	}
}

func TestBootstrapPersistsFetched(t *testing.T) {
	t.Parallel()
	cache := &memCache{}
	svc := New(Options{
		Cache:   cache,
		Primary: &stubFetcher{bulk: map[string]string{"000858": "五糧液"}},
	})
	svc.Bootstrap(context.Background())
	if cache.names["000858"] != "五糧液" {
		t.Fatalf("cache = %v, want fetched entry persisted", cache.names)
	}
}

func TestSQLiteCacheRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "names.db")
	cache, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite error: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	if err := cache.Store(ctx, map[string]string{"600519": "貴州茅台", "000001": "平安銀行"}); err != nil {
		t.Fatalf("Store error: %v", err)
	}
	// Upsert replaces.
	if err := cache.Store(ctx, map[string]string{"000001": "平安銀行A"}); err != nil {
		t.Fatalf("Store (upsert) error: %v", err)
	}

	got, err := cache.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(got) != 2 || got["000001"] != "平安銀行A" {
		t.Fatalf("Load = %v, want upserted table", got)
	}
}

func TestHTTPSource(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bulk":
			_, _ = w.Write([]byte(`[{"code":"600519","name":"貴州茅台"},{"code":"","name":"skip"}]`))
		case "/lookup":
			if r.URL.Query().Get("code") != "000001" {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(`{"code":"000001","name":"平安銀行"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := &HTTPSource{BulkURL: srv.URL + "/bulk", LookupURL: srv.URL + "/lookup"}
	ctx := context.Background()

	bulk, err := src.BulkNames(ctx)
	if err != nil {
		t.Fatalf("BulkNames error: %v", err)
	}
	if len(bulk) != 1 || bulk["600519"] != "貴州茅台" {
		t.Fatalf("BulkNames = %v", bulk)
	}

	name, err := src.Name(ctx, "000001")
	if err != nil {
		t.Fatalf("Name error: %v", err)
	}
	if name != "平安銀行" {
		t.Fatalf("Name = %q", name)
	}
}
