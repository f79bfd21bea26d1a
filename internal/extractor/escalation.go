package extractor

import (
	"strings"

	"github.com/user/review-harvester/pkg/utils"
)

const (
	// Pages with less visible text than this are considered content-starved.
	minVisibleChars = 200
	// Pages longer than this with no review vocabulary at all are likely
	// client-rendered shells.
	vocabularyCheckLen = 500
)

// NeedsRendering decides whether a statically fetched page should be
// escalated to the headless browser. This is a heuristic: false positives
// and negatives are acceptable, bounded by the per-job escalation budget.
func NeedsRendering(html string) bool {
	lower := strings.ToLower(html)
	if containsAny(lower, jsWallPhrases) {
		return true
	}

	visible := visibleText(html)
	if len(visible) < minVisibleChars {
		return true
	}

	if len(visible) > vocabularyCheckLen && !containsAny(strings.ToLower(visible), reviewVocabulary) {
		return true
	}
	return false
}

// visibleText strips tags and collapses whitespace. Unparseable input is
// treated as empty, which escalates.
func visibleText(html string) string {
	doc, ok := parseDoc(html)
	if !ok {
		return ""
	}
	doc.Find("script, style, noscript").Remove()
	return utils.CollapseWhitespace(doc.Text())
}
