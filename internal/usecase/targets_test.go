package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractResultLinks(t *testing.T) {
	html := `<html><body>
		<a class="result__a" href="http://forum-a.test/thread/1">First</a>
		<a class="result__a" href="https://duckduckgo.com/settings">Engine chrome</a>
		<a class="result__a" href="//duckduckgo.com/l/?uddg=http%3A%2F%2Fforum-b.test%2Fthread%2F2">Redirect</a>
		<a class="result__a" href="/l/?uddg=http%3A%2F%2Fforum-c.test%2Fthread%2F3">Relative redirect</a>
		<a class="result__a" href="http://forum-a.test/thread/1?utm=x">Dup path</a>
		<a href="mailto:someone@example.com">Mail</a>
	</body></html>`

	links := extractResultLinks(html, "https://search.test/html/", 10)
	require.Equal(t, []string{
		"http://forum-a.test/thread/1",
		"http://forum-b.test/thread/2",
		"http://forum-c.test/thread/3",
	}, links)
}

func TestExtractResultLinksCapped(t *testing.T) {
	html := `<html><body>
		<a class="result__a" href="http://a.test/1">1</a>
		<a class="result__a" href="http://b.test/2">2</a>
		<a class="result__a" href="http://c.test/3">3</a>
	</body></html>`

	links := extractResultLinks(html, "https://search.test/html/", 2)
	require.Len(t, links, 2)
}

func TestUnwrapRedirect(t *testing.T) {
	require.Equal(t, "http://forum.test/t/9",
		unwrapRedirect("https://duckduckgo.com/l/?uddg=http%3A%2F%2Fforum.test%2Ft%2F9"))
	require.Equal(t, "http://plain.test/page", unwrapRedirect("http://plain.test/page"))
}
