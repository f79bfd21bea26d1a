package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/user/review-harvester/internal/entity"
)

// Rating patterns seen on retailer pages: "4.5/5", "rating: 4", "4 out of 5".
var (
	ratioPattern = regexp.MustCompile(`(\d(?:\.\d)?)\s*/\s*5`)
	labelPattern = regexp.MustCompile(`(?i)rat(?:ing|ed)[:\s]+(\d(?:\.\d)?)`)
	outOfPattern = regexp.MustCompile(`(\d(?:\.\d)?)\s+out of\s+5`)
	starRune     = '★'
	hollowStar   = '☆'
)

// RetailerExtractor applies the generic block filter plus best-effort
// numeric rating extraction from the block's own text.
type RetailerExtractor struct{}

func (RetailerExtractor) Extract(html string, pageURL string) []entity.RawCandidate {
	doc, ok := parseDoc(html)
	if !ok {
		return nil
	}

	var out []entity.RawCandidate
	for _, text := range blockTexts(doc) {
		if !keepBlock(text) {
			continue
		}
		cand := entity.RawCandidate{
			Text:   text,
			Source: string(entity.SourceRetailer),
			URL:    pageURL,
		}
		if rating, found := ExtractRating(text); found {
			cand.Rating = &rating
		}
		out = append(out, cand)
	}
	return out
}

// ExtractRating scans text for a star rating. Returns false when no pattern
// matches or the value falls outside [0,5].
func ExtractRating(text string) (float64, bool) {
	for _, re := range []*regexp.Regexp{ratioPattern, outOfPattern, labelPattern} {
		if m := re.FindStringSubmatch(text); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil && v >= 0 && v <= 5 {
				return v, true
			}
		}
	}
	// Unicode star runs: filled stars count, hollow ones bound the scale.
	filled := strings.Count(text, string(starRune))
	if filled > 0 && filled <= 5 {
		if filled+strings.Count(text, string(hollowStar)) <= 5 {
			return float64(filled), true
		}
	}
	return 0, false
}
