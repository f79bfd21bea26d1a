package extractor

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/review-harvester/internal/entity"
	"github.com/user/review-harvester/internal/repository"
	"github.com/user/review-harvester/pkg/utils"
)

// Shopping-surface review cards are shorter than free-form blocks, so the
// lower length bound is relaxed.
const minItemLen = 20

// BatchFunc receives the cumulative candidate set after a round that grew it.
type BatchFunc func(cumulative []entity.RawCandidate)

// ShoppingExtractor drives a rendered shopping surface through "load more"
// rounds. The only stateful strategy: it owns pagination, stabilization, and
// progressive batch publishing for one target.
type ShoppingExtractor struct {
	Renderer     repository.RendererRepository
	MaxRounds    int
	StableRounds int
}

// Harvest runs the interaction loop against url. Each round's cumulative
// parsed set is handed to onBatch when it grew past the previous publish.
// The loop stops early once the item count is unchanged for StableRounds
// consecutive rounds, or when the load-more control disappears.
func (e ShoppingExtractor) Harvest(ctx context.Context, url string, onBatch BatchFunc) ([]entity.RawCandidate, error) {
	var (
		latest    []entity.RawCandidate
		published int
		prevCount = -1
		unchanged int
	)

	err := e.Renderer.Interact(ctx, url, e.MaxRounds, func(html string, loadMorePresent bool) bool {
		items := e.Extract(html, url)
		if len(items) > 0 || latest == nil {
			latest = items
		}

		if onBatch != nil && len(items) > published {
			onBatch(items)
			published = len(items)
		}

		if len(items) == prevCount {
			unchanged++
		} else {
			unchanged = 0
		}
		prevCount = len(items)

		return unchanged >= e.StableRounds || !loadMorePresent
	})
	if err != nil && latest == nil {
		return nil, err
	}
	return latest, nil
}

// Extract parses the review cards out of a (rendered) DOM snapshot.
func (e ShoppingExtractor) Extract(html string, pageURL string) []entity.RawCandidate {
	doc, ok := parseDoc(html)
	if !ok {
		return nil
	}
	doc.Find("script, style, noscript").Remove()

	seen := make(map[string]struct{})
	var out []entity.RawCandidate

	doc.Find("[data-review-id], .review-item, .review, [data-reviewid]").Each(func(_ int, s *goquery.Selection) {
		title := utils.CollapseWhitespace(s.Find("h3, h4, strong, .review-title").First().Text())
		body := s.Clone()
		body.Find("h3, h4, .review-title").Remove()
		text := utils.CollapseWhitespace(body.Text())

		if len(text) < minItemLen || len(text) > maxBlockLen || hasNoisePhrase(text) {
			return
		}
		key := utils.HashText(text)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}

		cand := entity.RawCandidate{
			Text:   text,
			Source: string(entity.SourceShopping),
			URL:    pageURL,
			Title:  title,
		}
		if rating, found := ExtractRating(text); found {
			cand.Rating = &rating
		} else if label, exists := s.Find("[aria-label]").First().Attr("aria-label"); exists {
			if rating, found := ExtractRating(label); found {
				cand.Rating = &rating
			}
		}
		out = append(out, cand)
	})
	return out
}
