package extractor

import "strings"

// Fixed term lists used by the block filters. These are intentionally small:
// they gate obviously non-opinion text, the normalizer does the real
// classification downstream.

var positiveTerms = []string{
	"good", "great", "excellent", "amazing", "love", "loved", "awesome",
	"fantastic", "perfect", "best", "recommend", "recommended", "happy",
	"impressed", "solid", "reliable", "worth", "pleased", "satisfied",
}

var negativeTerms = []string{
	"bad", "poor", "terrible", "awful", "hate", "hated", "worst",
	"disappointed", "disappointing", "broke", "broken", "waste", "refund",
	"returned", "cheap", "flimsy", "useless", "regret", "defective",
}

var neutralTerms = []string{
	"bought", "purchased", "ordered", "using", "used", "tried", "review",
	"opinion", "experience", "quality", "price", "value", "works", "worked",
	"arrived", "shipping", "month", "week", "stars",
}

// noisePhrases mark navigation, legal, and promotional boilerplate.
var noisePhrases = []string{
	"cookie", "cookies", "privacy policy", "terms of service",
	"terms and conditions", "sign in", "sign up", "log in", "subscribe",
	"newsletter", "all rights reserved", "add to cart", "free shipping on",
	"skip to content", "menu", "follow us", "advertisement",
}

// jsWallPhrases appear on pages that gate content behind script execution
// or consent dialogs.
var jsWallPhrases = []string{
	"enable javascript", "javascript is disabled", "javascript is required",
	"please enable cookies", "accept all cookies", "browser is not supported",
	"checking your browser",
}

// reviewVocabulary indicates a page that plausibly carries opinion content
// at all; its absence on a long page suggests a client-rendered shell.
var reviewVocabulary = []string{
	"review", "rating", "stars", "comment", "opinion", "feedback",
	"recommend", "verified purchase",
}

func containsAny(lower string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// hasOpinionTerm reports whether text contains at least one word from the
// opinion lexicon (any polarity).
func hasOpinionTerm(text string) bool {
	lower := strings.ToLower(text)
	return containsAny(lower, positiveTerms) ||
		containsAny(lower, negativeTerms) ||
		containsAny(lower, neutralTerms)
}

// hasNoisePhrase reports whether text matches the boilerplate list.
func hasNoisePhrase(text string) bool {
	return containsAny(strings.ToLower(text), noisePhrases)
}
