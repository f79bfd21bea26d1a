package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/review-harvester/internal/entity"
	"github.com/user/review-harvester/pkg/utils"
)

const (
	// Text-length window for a block to qualify as a review candidate.
	minBlockLen = 50
	maxBlockLen = 3000
)

// Extractor turns raw HTML into candidate text blocks. Implementations are
// pure: a malformed page yields zero candidates, never a panic that crosses
// the target boundary.
type Extractor interface {
	Extract(html string, pageURL string) []entity.RawCandidate
}

// ForStrategy returns the extractor matching a scrape target's strategy tag.
// The shopping strategy is stateful and constructed separately; targets
// tagged with it fall back to the generic extractor when dispatched here.
func ForStrategy(kind entity.SourceKind) Extractor {
	switch kind {
	case entity.SourceForum:
		return ForumExtractor{}
	case entity.SourceRetailer:
		return RetailerExtractor{}
	default:
		return GenericExtractor{}
	}
}

// keepBlock applies the shared length/lexicon/noise filter.
func keepBlock(text string) bool {
	if len(text) < minBlockLen || len(text) > maxBlockLen {
		return false
	}
	if !hasOpinionTerm(text) {
		return false
	}
	if hasNoisePhrase(text) {
		return false
	}
	return true
}

// blockTexts walks the document and returns cleaned texts of leaf-level
// blocks, exact-deduplicated within the page (first occurrence wins).
func blockTexts(doc *goquery.Document) []string {
	doc.Find("script, style, noscript, nav, footer, header").Remove()

	var texts []string
	seen := make(map[string]struct{})

	doc.Find("p, li, blockquote, span, td, div").Each(func(_ int, s *goquery.Selection) {
		// Skip containers: their text would duplicate that of nested blocks.
		if s.Is("div") && s.ChildrenFiltered("p, div, ul, ol, blockquote, table").Length() > 0 {
			return
		}
		text := utils.CollapseWhitespace(s.Text())
		if text == "" {
			return
		}
		key := utils.HashText(text)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		texts = append(texts, text)
	})
	return texts
}

func parseDoc(html string) (*goquery.Document, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false
	}
	return doc, true
}

// GenericExtractor keeps any leaf block passing the shared filter.
type GenericExtractor struct{}

func (GenericExtractor) Extract(html string, pageURL string) []entity.RawCandidate {
	doc, ok := parseDoc(html)
	if !ok {
		return nil
	}

	var out []entity.RawCandidate
	for _, text := range blockTexts(doc) {
		if !keepBlock(text) {
			continue
		}
		out = append(out, entity.RawCandidate{
			Text:   text,
			Source: string(entity.SourceGeneric),
			URL:    pageURL,
		})
	}
	return out
}
