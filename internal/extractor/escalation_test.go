package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNeedsRenderingEmptyPage(t *testing.T) {
	require.True(t, NeedsRendering(""), "empty page always escalates")
	require.True(t, NeedsRendering("<html><body></body></html>"))
}

func TestNeedsRenderingJSWall(t *testing.T) {
	html := "<html><body><p>Please enable JavaScript to view this page. " +
		strings.Repeat("Lots of other harmless text about the review section here. ", 10) +
		"</p></body></html>"
	require.True(t, NeedsRendering(html))
}

func TestNeedsRenderingContentStarved(t *testing.T) {
	html := "<html><body><p>short stub</p></body></html>"
	require.True(t, NeedsRendering(html), "under 200 visible chars escalates")
}

func TestNeedsRenderingRichReviewPage(t *testing.T) {
	html := "<html><body><p>" +
		strings.Repeat("Customer review: the rating is great, five stars, I recommend it. ", 10) +
		"</p></body></html>"
	require.False(t, NeedsRendering(html))
}

func TestNeedsRenderingLongPageWithoutReviewVocabulary(t *testing.T) {
	html := "<html><body><p>" +
		strings.Repeat("An unrelated long article about weather patterns and geology. ", 12) +
		"</p></body></html>"
	require.True(t, NeedsRendering(html))
}
