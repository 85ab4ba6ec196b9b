package app

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"wanderwise/internal/domain"
)

// Content type UIDs in the stack.
const (
	CTRegion      = "region"
	CTDestination = "destination"
	CTPackage     = "package"
)

// CatalogService serves the read side of the site: regions, destinations and
// packages, normalized from the CMS and cached for a short window.
type CatalogService struct {
	src      domain.ContentSource
	cache    domain.Cache
	cacheTTL time.Duration
	refresh  bool
}

func NewCatalogService(src domain.ContentSource, c domain.Cache, ttl time.Duration) *CatalogService {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &CatalogService{src: src, cache: c, cacheTTL: ttl}
}

// Refreshing returns a view of the service that always reads through to the
// CMS and overwrites cached values. Used by the cache warmer.
func (s *CatalogService) Refreshing() *CatalogService {
	cp := *s
	cp.refresh = true
	return &cp
}

func (s *CatalogService) ListRegions(ctx context.Context) ([]domain.Region, error) {
	var out []domain.Region
	if s.cached(ctx, "catalog:regions", &out) {
		return out, nil
	}
	out = mapRegions(s.src.Entries(ctx, CTRegion, nil))
	s.store(ctx, "catalog:regions", out, len(out) > 0)
	return out, nil
}

func (s *CatalogService) ListDestinations(ctx context.Context) ([]domain.Destination, error) {
	var out []domain.Destination
	if s.cached(ctx, "catalog:destinations", &out) {
		return out, nil
	}
	out = mapDestinations(s.src.Entries(ctx, CTDestination, nil))
	s.store(ctx, "catalog:destinations", out, len(out) > 0)
	return out, nil
}

// GetRegion returns the region with the given slug and the destinations filed
// under it (first linked region wins).
func (s *CatalogService) GetRegion(ctx context.Context, slug string) (domain.RegionView, error) {
	key := fmt.Sprintf("catalog:region:%s", slug)
	var rv domain.RegionView
	if s.cached(ctx, key, &rv) {
		return rv, nil
	}

	var regions []domain.Region
	var dests []domain.Destination
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		regions = mapRegions(s.src.Entries(gctx, CTRegion, map[string]any{"slug": slug}))
		return nil
	})
	g.Go(func() error {
		dests = mapDestinations(s.src.Entries(gctx, CTDestination, nil))
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.RegionView{}, err
	}

	region, ok := findRegion(regions, slug)
	if !ok {
		return domain.RegionView{}, fmt.Errorf("region %q: %w", slug, domain.ErrNotFound)
	}
	rv = domain.RegionView{Region: region, Destinations: []domain.Destination{}}
	for _, d := range dests {
		if d.RegionUID() == region.UID {
			rv.Destinations = append(rv.Destinations, d)
		}
	}
	// an empty sub-list may be a swallowed CMS failure
	s.store(ctx, key, rv, len(rv.Destinations) > 0)
	return rv, nil
}

// GetDestination returns the destination with the given slug and its packages.
func (s *CatalogService) GetDestination(ctx context.Context, slug string) (domain.DestinationView, error) {
	key := fmt.Sprintf("catalog:destination:%s", slug)
	var dv domain.DestinationView
	if s.cached(ctx, key, &dv) {
		return dv, nil
	}

	var dests []domain.Destination
	var pkgs []domain.Package
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dests = mapDestinations(s.src.Entries(gctx, CTDestination, map[string]any{"slug": slug}))
		return nil
	})
	g.Go(func() error {
		pkgs = mapPackages(s.src.Entries(gctx, CTPackage, nil))
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.DestinationView{}, err
	}

	dest, ok := findDestination(dests, slug)
	if !ok {
		return domain.DestinationView{}, fmt.Errorf("destination %q: %w", slug, domain.ErrNotFound)
	}
	dv = domain.DestinationView{Destination: dest, Packages: []domain.Package{}}
	for _, p := range pkgs {
		if p.DestinationUID() == dest.UID {
			dv.Packages = append(dv.Packages, p)
		}
	}
	s.store(ctx, key, dv, len(dv.Packages) > 0)
	return dv, nil
}

func (s *CatalogService) GetPackage(ctx context.Context, uid string) (domain.Package, error) {
	key := fmt.Sprintf("catalog:package:%s", uid)
	var p domain.Package
	if s.cached(ctx, key, &p) {
		return p, nil
	}
	raw := s.src.Entry(ctx, CTPackage, uid)
	if raw == nil {
		return domain.Package{}, fmt.Errorf("package %q: %w", uid, domain.ErrNotFound)
	}
	p = mapPackage(raw)
	if p.UID == "" {
		p.UID = uid
	}
	s.store(ctx, key, p, true)
	return p, nil
}

// PreviewPath is the site page that renders the CMS entry uid of content type
// ct: /region/<slug>, /destination/<slug>, or the destination page of a
// package. Unknown types and unresolved entries map to the home page. It
// always reads through to the CMS.
func (s *CatalogService) PreviewPath(ctx context.Context, ct, uid string) string {
	switch ct {
	case CTRegion:
		if slug := s.slugOf(ctx, CTRegion, uid); slug != "" {
			return "/region/" + url.PathEscape(slug)
		}
	case CTDestination:
		if slug := s.slugOf(ctx, CTDestination, uid); slug != "" {
			return "/destination/" + url.PathEscape(slug)
		}
	case CTPackage:
		if raw := s.src.Entry(ctx, CTPackage, uid); raw != nil {
			if slug := s.slugOf(ctx, CTDestination, mapPackage(raw).DestinationUID()); slug != "" {
				return "/destination/" + url.PathEscape(slug)
			}
		}
	}
	return "/"
}

func (s *CatalogService) slugOf(ctx context.Context, ct, uid string) string {
	if uid == "" {
		return ""
	}
	raw := s.src.Entry(ctx, ct, uid)
	if raw == nil {
		return ""
	}
	return lookupStr(raw, "slug")
}

func (s *CatalogService) cached(ctx context.Context, key string, dst any) bool {
	if s.refresh || s.cache == nil {
		return false
	}
	ok, _ := s.cache.Get(ctx, key, dst)
	return ok
}

// store writes v unless ok is false; an empty list usually means the CMS read
// failed and should not be pinned for a whole TTL.
func (s *CatalogService) store(ctx context.Context, key string, v any, ok bool) {
	if !ok || s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, key, v, int(s.cacheTTL.Seconds()))
}

// The slug filter is pushed to the CMS, but a source that ignores filters
// still yields the right entry.
func findRegion(rs []domain.Region, slug string) (domain.Region, bool) {
	for _, r := range rs {
		if r.Slug == slug {
			return r, true
		}
	}
	return domain.Region{}, false
}

func findDestination(ds []domain.Destination, slug string) (domain.Destination, bool) {
	for _, d := range ds {
		if d.Slug == slug {
			return d, true
		}
	}
	return domain.Destination{}, false
}
