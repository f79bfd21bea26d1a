package extractor

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/user/review-harvester/internal/entity"
	"github.com/user/review-harvester/internal/repository"
)

// scriptedRenderer replays a fixed sequence of DOM snapshots; the load-more
// control is reported absent on the last one.
type scriptedRenderer struct {
	rounds     []string
	roundsUsed int
}

func (r *scriptedRenderer) Render(ctx context.Context, url string) (string, error) {
	if len(r.rounds) == 0 {
		return "", repository.ErrNavigationFailed
	}
	return r.rounds[0], nil
}

func (r *scriptedRenderer) Interact(ctx context.Context, url string, maxRounds int, round repository.RoundFunc) error {
	for i, html := range r.rounds {
		if i >= maxRounds {
			break
		}
		r.roundsUsed++
		present := i < len(r.rounds)-1
		if round(html, present) || !present {
			break
		}
	}
	return nil
}

func surfaceHTML(items int) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < items; i++ {
		fmt.Fprintf(&sb, `<div class="review-item"><h3>Review %d</h3>Item %d body text: works great and I recommend it to everyone.</div>`, i, i)
	}
	sb.WriteString(`<button class="load-more">Load more</button></body></html>`)
	return sb.String()
}

func TestShoppingHarvestStreamsGrowingBatches(t *testing.T) {
	renderer := &scriptedRenderer{rounds: []string{
		surfaceHTML(5),
		surfaceHTML(12),
		surfaceHTML(12),
	}}
	shop := ShoppingExtractor{Renderer: renderer, MaxRounds: 8, StableRounds: 2}

	var batches [][]entity.RawCandidate
	out, err := shop.Harvest(context.Background(), "http://surface.example", func(cumulative []entity.RawCandidate) {
		batches = append(batches, cumulative)
	})

	require.NoError(t, err)
	require.Len(t, out, 12)

	require.Len(t, batches, 2, "only rounds that grew the set publish")
	require.Len(t, batches[0], 5)
	require.Len(t, batches[1], 12)
}

func TestShoppingHarvestStopsWhenStable(t *testing.T) {
	renderer := &scriptedRenderer{rounds: []string{
		surfaceHTML(4),
		surfaceHTML(4),
		surfaceHTML(4),
		surfaceHTML(4),
		surfaceHTML(4),
	}}
	shop := ShoppingExtractor{Renderer: renderer, MaxRounds: 8, StableRounds: 2}

	out, err := shop.Harvest(context.Background(), "http://surface.example", nil)

	require.NoError(t, err)
	require.Len(t, out, 4)
	require.Equal(t, 3, renderer.roundsUsed, "stops after two consecutive unchanged rounds")
}

func TestShoppingExtractParsesCards(t *testing.T) {
	html := `<html><body>
		<div class="review-item"><h3>Loved it</h3>Honestly great value, 4/5 after a month of constant use at home.</div>
		<div class="review-item"><h3>Too short</h3>meh</div>
	</body></html>`

	out := ShoppingExtractor{}.Extract(html, "http://surface.example")

	require.Len(t, out, 1)
	require.Equal(t, "Loved it", out[0].Title)
	require.NotNil(t, out[0].Rating)
	require.Equal(t, 4.0, *out[0].Rating)
	require.Equal(t, "shopping", out[0].Source)
}

func TestShoppingHarvestRenderFailure(t *testing.T) {
	failing := &failingRenderer{}
	shop := ShoppingExtractor{Renderer: failing, MaxRounds: 4, StableRounds: 2}

	out, err := shop.Harvest(context.Background(), "http://surface.example", nil)
	require.Error(t, err)
	require.Nil(t, out)
}

type failingRenderer struct{}

func (failingRenderer) Render(ctx context.Context, url string) (string, error) {
	return "", repository.ErrNavigationFailed
}

func (failingRenderer) Interact(ctx context.Context, url string, maxRounds int, round repository.RoundFunc) error {
	return repository.ErrNavigationFailed
}
