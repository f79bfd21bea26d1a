package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/review-harvester/internal/entity"
	"github.com/user/review-harvester/pkg/utils"
)

// Selectors covering the post-body and comment regions of common forum
// engines. Order matters: the first matching post-body selector wins.
var (
	postBodySelectors = []string{
		"[data-test-id=post-content]",
		".usertext-body",
		".post-content",
		".entry-content",
		"article",
	}
	commentSelectors = []string{
		".comment-body",
		".comment",
		".message-body",
	}
)

const maxComments = 3

// ForumExtractor prefers the post body, then up to three comments, with
// quoted replies and signature tails stripped.
type ForumExtractor struct{}

func (ForumExtractor) Extract(html string, pageURL string) []entity.RawCandidate {
	doc, ok := parseDoc(html)
	if !ok {
		return nil
	}
	doc.Find("script, style, noscript").Remove()

	var texts []string
	for _, sel := range postBodySelectors {
		if body := doc.Find(sel).First(); body.Length() > 0 {
			texts = append(texts, stripQuotedLines(body.Text()))
			break
		}
	}

	comments := 0
	for _, sel := range commentSelectors {
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if comments >= maxComments {
				return false
			}
			texts = append(texts, stripQuotedLines(s.Text()))
			comments++
			return true
		})
		if comments >= maxComments {
			break
		}
	}

	seen := make(map[string]struct{})
	var out []entity.RawCandidate
	for _, raw := range texts {
		text := utils.CollapseWhitespace(raw)
		if !keepBlock(text) {
			continue
		}
		key := utils.HashText(text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, entity.RawCandidate{
			Text:   text,
			Source: string(entity.SourceForum),
			URL:    pageURL,
		})
	}
	return out
}

// stripQuotedLines drops quoted-reply lines (leading ">") and anything after
// a conventional signature separator.
func stripQuotedLines(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "--" || trimmed == "—" {
			break
		}
		if strings.HasPrefix(trimmed, ">") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
