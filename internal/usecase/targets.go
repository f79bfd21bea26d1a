package usecase

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/review-harvester/internal/entity"
	"github.com/user/review-harvester/pkg/utils"
)

// deriveTargets expands one request into the scrape targets to process.
// Failures here are absorbed: a request that yields no targets produces an
// empty (but successful) result, never a job error.
func (o *orchestrator) deriveTargets(ctx context.Context, req entity.HarvestRequest) []entity.ScrapeTarget {
	switch req.Kind {
	case entity.SourceRetailer:
		targets := make([]entity.ScrapeTarget, 0, len(req.StoreURLs))
		for _, u := range req.StoreURLs {
			targets = append(targets, entity.ScrapeTarget{URL: u, Strategy: entity.SourceRetailer})
		}
		return targets

	case entity.SourceShopping:
		return []entity.ScrapeTarget{{URL: req.SurfaceURL, Strategy: entity.SourceShopping}}

	case entity.SourceForum:
		return o.searchTargets(ctx, req)
	}
	return nil
}

// searchTargets scrapes a search-engine results page for discussion links
// about the product, one scrape target per result.
func (o *orchestrator) searchTargets(ctx context.Context, req entity.HarvestRequest) []entity.ScrapeTarget {
	query := strings.TrimSpace(req.Product + " " + req.Brand + " review forum")
	searchURL := o.cfg.SearchEndpoint + "?q=" + url.QueryEscape(query)

	html, err := o.fetcher.Fetch(ctx, searchURL)
	if err != nil {
		slog.Warn("search fetch failed", "query", query, "error", err)
		return nil
	}

	links := extractResultLinks(html, searchURL, o.cfg.MaxSearchResults)
	targets := make([]entity.ScrapeTarget, 0, len(links))
	for _, link := range links {
		targets = append(targets, entity.ScrapeTarget{URL: link, Strategy: entity.SourceForum})
	}
	return targets
}

// extractResultLinks pulls up to max outbound result links from a search
// results page, unwrapping redirect-style hrefs and skipping the engine's
// own chrome. Relative hrefs are resolved against baseURL.
func extractResultLinks(html, baseURL string, max int) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}

	seen := make(map[string]struct{})
	var links []string

	doc.Find("a.result__a, .result h2 a, a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(links) >= max {
			return false
		}
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		link := unwrapRedirect(href)
		parsed, err := url.Parse(link)
		if err != nil {
			return true
		}
		if !parsed.IsAbs() && base != nil {
			abs, err := utils.ToAbsoluteURL(base, link)
			if err != nil {
				return true
			}
			link = abs
			if parsed, err = url.Parse(link); err != nil {
				return true
			}
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return true
		}
		if strings.Contains(parsed.Host, "duckduckgo.") || strings.Contains(parsed.Path, "/ad_") {
			return true
		}
		key := parsed.Host + parsed.Path
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}
		links = append(links, link)
		return true
	})
	return links
}

// unwrapRedirect resolves search-engine redirect links carrying the real
// destination in a uddg query parameter.
func unwrapRedirect(href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
