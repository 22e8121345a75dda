package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	viewVersionPrefix = "view:version:"
	viewEntryPrefix   = "view:entry:"
)

// ViewCache stores rendered read views in redis. Entries are keyed by a
// per-path version counter, so bumping the counter makes every cached
// variant of that path unreachable in one atomic step.
type ViewCache struct {
	client *redis.Client
	queue  JobQueue
	ttl    time.Duration
}

// NewViewCache returns a cache whose entries live for ttl. queue may be nil;
// when set, every invalidated path is queued for background re-warming.
func NewViewCache(client *redis.Client, queue JobQueue, ttl time.Duration) *ViewCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ViewCache{client: client, queue: queue, ttl: ttl}
}

func viewVersionKey(path string) string {
	return viewVersionPrefix + path
}

func viewEntryKey(path string, version int64, variant string) string {
	return viewEntryPrefix + path + ":v" + strconv.FormatInt(version, 10) + ":" + url.QueryEscape(variant)
}

// Invalidate marks every cached variant of path stale. Once it returns, no
// reader can be served an entry rendered before the call.
func (c *ViewCache) Invalidate(ctx context.Context, path string) error {
	if err := c.client.Incr(ctx, viewVersionKey(path)).Err(); err != nil {
		return err
	}
	viewInvalidations.WithLabelValues(path).Inc()
	if c.queue != nil {
		if err := c.queue.Enqueue(ctx, RevalidatePendingKey, path); err != nil {
			log.Printf("[views] enqueue revalidation for %s failed: %v", path, err)
		}
	}
	return nil
}

// Version returns the current version counter of path (0 when never invalidated).
func (c *ViewCache) Version(ctx context.Context, path string) (int64, error) {
	v, err := c.client.Get(ctx, viewVersionKey(path)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Load decodes the entry for path/variant at version into dst and reports whether it was present.
func (c *ViewCache) Load(ctx context.Context, path string, version int64, variant string, dst any) (bool, error) {
	raw, err := c.client.Get(ctx, viewEntryKey(path, version, variant)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode cached view: %w", err)
	}
	return true, nil
}

// Store saves v as the entry for path/variant at version.
func (c *ViewCache) Store(ctx context.Context, path string, version int64, variant string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, viewEntryKey(path, version, variant), data, c.ttl).Err()
}

// InvoiceLister is the read side used by the list view.
type InvoiceLister interface {
	List(ctx context.Context, query string, page, perPage int) ([]InvoiceListItem, int, error)
}

// InvoiceListService serves invoice list pages through the view cache.
type InvoiceListService struct {
	repo    InvoiceLister
	cache   *ViewCache
	perPage int
	now     func() time.Time
}

func NewInvoiceListService(repo InvoiceLister, cache *ViewCache, perPage int) *InvoiceListService {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	return &InvoiceListService{repo: repo, cache: cache, perPage: perPage, now: time.Now}
}

func invoicePageVariant(query string, page, perPage int) string {
	return "page=" + strconv.Itoa(page) + "&per=" + strconv.Itoa(perPage) + "&q=" + query
}

// Page returns page (1-based) of invoices matching query. perPage <= 0 uses
// the service default. Cache failures fall back to the store.
func (s *InvoiceListService) Page(ctx context.Context, query string, page, perPage int) (InvoicePage, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = s.perPage
	}
	variant := invoicePageVariant(query, page, perPage)

	var version int64
	cacheUsable := s.cache != nil
	if cacheUsable {
		v, err := s.cache.Version(ctx, InvoicesPath)
		if err != nil {
			log.Printf("[views] read version failed: %v", err)
			cacheUsable = false
		}
		version = v
	}
	if cacheUsable {
		var cached InvoicePage
		hit, err := s.cache.Load(ctx, InvoicesPath, version, variant, &cached)
		if err != nil {
			log.Printf("[views] load %s failed: %v", variant, err)
		}
		if hit {
			viewCacheLookups.WithLabelValues("hit").Inc()
			return cached, nil
		}
		viewCacheLookups.WithLabelValues("miss").Inc()
	}

	items, total, err := s.repo.List(ctx, query, page, perPage)
	if err != nil {
		return InvoicePage{}, err
	}
	out := InvoicePage{
		Items:      items,
		Page:       page,
		PerPage:    perPage,
		Query:      query,
		TotalItems: total,
		TotalPages: calcTotalPages(total, perPage),
		RenderedAt: s.now().UTC(),
	}
	if cacheUsable {
		if err := s.cache.Store(ctx, InvoicesPath, version, variant, out); err != nil {
			log.Printf("[views] store %s failed: %v", variant, err)
		}
	}
	return out, nil
}

// Warm renders the first unfiltered page of path at its current version.
func (s *InvoiceListService) Warm(ctx context.Context, path string) error {
	if path != InvoicesPath {
		return fmt.Errorf("no renderer for view %q", path)
	}
	_, err := s.Page(ctx, "", 1, 0)
	return err
}
