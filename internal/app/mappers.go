package app

import (
	"strconv"
	"strings"

	"wanderwise/internal/domain"
)

/********** alias registries (single source of truth) **********/

var regionAliases = map[string][]string{
	"title":       {"title", "name"},
	"slug":        {"slug", "url"},
	"description": {"description", "summary"},
}

var destinationAliases = map[string][]string{
	"name":        {"name", "title"},
	"slug":        {"slug", "url"},
	"short":       {"short_description", "summary", "excerpt"},
	"long":        {"long_description", "description", "body"},
	"best_time":   {"best_time", "best_time_to_visit", "season"},
	"approx_cost": {"approx_cost", "starting_price", "cost"},
	"cover":       {"cover_image.url", "cover_image.href", "image.url"},
	"regions":     {"region", "regions"},
}

var packageAliases = map[string][]string{
	"title":        {"title", "name"},
	"provider":     {"provider", "operator", "vendor"},
	"description":  {"description", "summary", "itinerary"},
	"price":        {"price", "price_per_person", "cost"},
	"days":         {"days", "duration", "duration_days"},
	"destinations": {"destination", "destinations"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// firstAlias: first non-empty trimmed string for a named alias set.
func firstAlias(m map[string]any, aliases map[string][]string, key string) string {
	for _, p := range aliases[key] {
		if s := strings.TrimSpace(lookupStr(m, p)); s != "" {
			return s
		}
	}
	return ""
}

// getFloatFlexible: number from several paths (float64/int/string like "8,0" or "12,500").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case int64:
			f := float64(v)
			return &f
		case string:
			if f, ok := parseLooseFloat(v); ok {
				return &f
			}
		}
	}
	return nil
}

// parseLooseFloat accepts "1,234.50" (thousands separator) and "8,5" (decimal comma).
func parseLooseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", "")
	} else if i := strings.LastIndexByte(s, ','); i >= 0 && len(s)-i-1 == 3 {
		s = strings.ReplaceAll(s, ",", "")
	} else {
		s = strings.ReplaceAll(s, ",", ".")
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// firstIntFlexible: int from several paths (float64/int/string).
func firstIntFlexible(m map[string]any, paths ...string) *int {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			x := int(v)
			return &x
		case int:
			x := v
			return &x
		case int64:
			x := int(v)
			return &x
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			if n, err := strconv.Atoi(s); err == nil {
				return &n
			}
		}
	}
	return nil
}

// refsAt reads a reference field. Contentstack returns an array of either
// resolved entries or bare {uid, _content_type_uid} stubs; a single object is
// tolerated too. Missing or malformed yields an empty, non-nil slice.
func refsAt(m map[string]any, paths ...string) []domain.Ref {
	out := []domain.Ref{}
	for _, k := range paths {
		var items []any
		switch t := lookupAny(m, k).(type) {
		case []any:
			items = t
		case map[string]any:
			items = []any{t}
		default:
			continue
		}
		for _, it := range items {
			obj, ok := it.(map[string]any)
			if !ok {
				continue
			}
			uid := lookupStr(obj, "uid")
			if uid == "" {
				continue
			}
			title := lookupStr(obj, "title")
			if title == "" {
				title = lookupStr(obj, "name")
			}
			out = append(out, domain.Ref{UID: uid, Slug: lookupStr(obj, "slug"), Title: title})
		}
		if len(out) > 0 {
			return out
		}
	}
	return out
}

/********** mappers **********/

func mapRegion(r map[string]any) domain.Region {
	return domain.Region{
		UID:         lookupStr(r, "uid"),
		Title:       firstAlias(r, regionAliases, "title"),
		Slug:        firstAlias(r, regionAliases, "slug"),
		Description: firstAlias(r, regionAliases, "description"),
	}
}

func mapDestination(d map[string]any) domain.Destination {
	return domain.Destination{
		UID:              lookupStr(d, "uid"),
		Name:             firstAlias(d, destinationAliases, "name"),
		Slug:             firstAlias(d, destinationAliases, "slug"),
		ShortDescription: firstAlias(d, destinationAliases, "short"),
		LongDescription:  firstAlias(d, destinationAliases, "long"),
		BestTime:         firstAlias(d, destinationAliases, "best_time"),
		ApproxCost:       getFloatFlexible(d, destinationAliases["approx_cost"]...),
		CoverImageURL:    firstAlias(d, destinationAliases, "cover"),
		Regions:          refsAt(d, destinationAliases["regions"]...),
	}
}

func mapPackage(p map[string]any) domain.Package {
	out := domain.Package{
		UID:          lookupStr(p, "uid"),
		Title:        firstAlias(p, packageAliases, "title"),
		Provider:     firstAlias(p, packageAliases, "provider"),
		Description:  firstAlias(p, packageAliases, "description"),
		Destinations: refsAt(p, packageAliases["destinations"]...),
	}
	if f := getFloatFlexible(p, packageAliases["price"]...); f != nil && *f >= 0 {
		out.Price = *f
	}
	if n := firstIntFlexible(p, packageAliases["days"]...); n != nil && *n > 0 {
		out.Days = *n
	}
	return out
}

func mapRegions(in []map[string]any) []domain.Region {
	out := make([]domain.Region, 0, len(in))
	for _, r := range in {
		out = append(out, mapRegion(r))
	}
	return out
}

func mapDestinations(in []map[string]any) []domain.Destination {
	out := make([]domain.Destination, 0, len(in))
	for _, d := range in {
		out = append(out, mapDestination(d))
	}
	return out
}

func mapPackages(in []map[string]any) []domain.Package {
	out := make([]domain.Package, 0, len(in))
	for _, p := range in {
		out = append(out, mapPackage(p))
	}
	return out
}
