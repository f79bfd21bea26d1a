// Package llm implements the normalizer contract against any
// OpenAI-compatible chat-completions endpoint. The pipeline treats this as
// an unreliable collaborator: every error here is substituted with a
// deterministic fallback at the call site.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/user/review-harvester/internal/entity"
	"github.com/user/review-harvester/internal/repository"
)

// NormalizerImpl talks to a chat-completions endpoint.
type NormalizerImpl struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

// NewNormalizer builds a client. An empty apiKey is allowed; calls will fail
// fast and the pipeline's fallbacks take over.
func NewNormalizer(endpoint, model, apiKey string) *NormalizerImpl {
	return &NormalizerImpl{
		endpoint: endpoint,
		model:    model,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

var _ repository.NormalizerRepository = (*NormalizerImpl)(nil)

const validateSystemPrompt = `You classify text blocks scraped from the web.
For each numbered block decide whether it is a genuine customer opinion about
the named product. Respond with a JSON array only, one object per block:
[{"index": 0, "is_genuine_review": true, "confidence": 0.9}, ...]`

const summarizeSystemPrompt = `You summarize customer reviews. Respond with a
JSON object only:
{"overall_sentiment": "positive|negative|mixed|neutral",
 "common_praises": ["..."], "common_complaints": ["..."]}`

const formatSystemPrompt = `You condense forum posts about a product into
review records. For each numbered post respond with a JSON array only, one
object per post, in the same order:
[{"rating": 4, "title": "...", "summary": "one or two lines"}, ...]`

// Validate classifies candidates in one batch call.
func (n *NormalizerImpl) Validate(ctx context.Context, product string, candidates []entity.RawCandidate) ([]repository.ValidationScore, error) {
	user := fmt.Sprintf("Product: %s\n\n%s", product, numberBlocks(candidates))
	content, err := n.complete(ctx, validateSystemPrompt, user)
	if err != nil {
		return nil, err
	}

	var scores []repository.ValidationScore
	if err := json.Unmarshal(stripFences(content), &scores); err != nil {
		return nil, fmt.Errorf("validate: unexpected payload shape: %w", err)
	}
	for _, s := range scores {
		if s.Index < 0 || s.Index >= len(candidates) || s.Confidence < 0 || s.Confidence > 1 {
			return nil, fmt.Errorf("validate: score out of range (index=%d confidence=%f)", s.Index, s.Confidence)
		}
	}
	return scores, nil
}

// Summarize produces the per-job aggregate. One call per job.
func (n *NormalizerImpl) Summarize(ctx context.Context, product string, candidates []entity.RawCandidate) (*entity.HarvestSummary, error) {
	user := fmt.Sprintf("Product: %s\n\n%s", product, numberBlocks(candidates))
	content, err := n.complete(ctx, summarizeSystemPrompt, user)
	if err != nil {
		return nil, err
	}

	var summary entity.HarvestSummary
	if err := json.Unmarshal(stripFences(content), &summary); err != nil {
		return nil, fmt.Errorf("summarize: unexpected payload shape: %w", err)
	}
	if summary.OverallSentiment == "" {
		return nil, fmt.Errorf("summarize: missing overall_sentiment")
	}
	return &summary, nil
}

// Format reduces forum posts to title/rating/summary records.
func (n *NormalizerImpl) Format(ctx context.Context, candidates []entity.RawCandidate) ([]repository.FormattedReview, error) {
	content, err := n.complete(ctx, formatSystemPrompt, numberBlocks(candidates))
	if err != nil {
		return nil, err
	}

	var formatted []repository.FormattedReview
	if err := json.Unmarshal(stripFences(content), &formatted); err != nil {
		return nil, fmt.Errorf("format: unexpected payload shape: %w", err)
	}
	if len(formatted) != len(candidates) {
		return nil, fmt.Errorf("format: got %d records for %d posts", len(formatted), len(candidates))
	}
	return formatted, nil
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// complete posts one chat exchange and returns the assistant content.
func (n *NormalizerImpl) complete(ctx context.Context, system, user string) (string, error) {
	if n.apiKey == "" || n.endpoint == "" || n.model == "" {
		return "", fmt.Errorf("normalizer misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model": n.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("normalizer error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// numberBlocks renders candidates as numbered blocks for the prompt.
func numberBlocks(candidates []entity.RawCandidate) string {
	var sb strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&sb, "[%d] %s\n\n", i, c.Text)
	}
	return sb.String()
}

// stripFences removes a surrounding markdown code fence, which some models
// add despite instructions.
func stripFences(content string) []byte {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}
	return []byte(strings.TrimSpace(trimmed))
}
