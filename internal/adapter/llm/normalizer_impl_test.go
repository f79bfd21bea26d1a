package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/user/review-harvester/internal/entity"
)

func chatServer(t *testing.T, handler func(system, user string) string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "test-model", payload.Model)
		require.Len(t, payload.Messages, 2)

		content := handler(payload.Messages[0].Content, payload.Messages[1].Content)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		})
	}))
}

func candidates(texts ...string) []entity.RawCandidate {
	out := make([]entity.RawCandidate, len(texts))
	for i, text := range texts {
		out[i] = entity.RawCandidate{Text: text, Source: "forum"}
	}
	return out
}

func TestValidateParsesScores(t *testing.T) {
	server := chatServer(t, func(system, user string) string {
		require.Contains(t, user, "Product: Acme Kettle")
		require.Contains(t, user, "[0] great kettle")
		require.Contains(t, user, "[1] spam link")
		return `[{"index":0,"is_genuine_review":true,"confidence":0.9},
			{"index":1,"is_genuine_review":false,"confidence":0.8}]`
	})
	defer server.Close()

	n := NewNormalizer(server.URL, "test-model", "test-key")
	scores, err := n.Validate(context.Background(), "Acme Kettle", candidates("great kettle", "spam link"))
	require.NoError(t, err)
	require.Len(t, scores, 2)
	require.True(t, scores[0].Genuine)
	require.Equal(t, 0.9, scores[0].Confidence)
	require.False(t, scores[1].Genuine)
}

func TestValidateStripsCodeFence(t *testing.T) {
	server := chatServer(t, func(system, user string) string {
		return "```json\n[{\"index\":0,\"is_genuine_review\":true,\"confidence\":0.7}]\n```"
	})
	defer server.Close()

	n := NewNormalizer(server.URL, "test-model", "test-key")
	scores, err := n.Validate(context.Background(), "Acme Kettle", candidates("great kettle"))
	require.NoError(t, err)
	require.Len(t, scores, 1)
	require.Equal(t, 0.7, scores[0].Confidence)
}

func TestValidateRejectsOutOfRangeScore(t *testing.T) {
	server := chatServer(t, func(system, user string) string {
		return `[{"index":5,"is_genuine_review":true,"confidence":0.9}]`
	})
	defer server.Close()

	n := NewNormalizer(server.URL, "test-model", "test-key")
	_, err := n.Validate(context.Background(), "Acme Kettle", candidates("only one"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of range")
}

func TestSummarizeRequiresSentiment(t *testing.T) {
	server := chatServer(t, func(system, user string) string {
		return `{"common_praises":["fast"],"common_complaints":[]}`
	})
	defer server.Close()

	n := NewNormalizer(server.URL, "test-model", "test-key")
	_, err := n.Summarize(context.Background(), "Acme Kettle", candidates("fast kettle"))
	require.Error(t, err)
}

func TestSummarizeParsesAggregate(t *testing.T) {
	server := chatServer(t, func(system, user string) string {
		return `{"overall_sentiment":"positive","common_praises":["fast boil"],"common_complaints":["loud"]}`
	})
	defer server.Close()

	n := NewNormalizer(server.URL, "test-model", "test-key")
	summary, err := n.Summarize(context.Background(), "Acme Kettle", candidates("fast kettle"))
	require.NoError(t, err)
	require.Equal(t, "positive", summary.OverallSentiment)
	require.Equal(t, []string{"fast boil"}, summary.CommonPraises)
	require.Equal(t, []string{"loud"}, summary.CommonComplaints)
}

func TestFormatRejectsLengthMismatch(t *testing.T) {
	server := chatServer(t, func(system, user string) string {
		return `[{"rating":4,"title":"Good","summary":"short"}]`
	})
	defer server.Close()

	n := NewNormalizer(server.URL, "test-model", "test-key")
	_, err := n.Format(context.Background(), candidates("post one", "post two"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "2 posts")
}

func TestCompleteSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	n := NewNormalizer(server.URL, "test-model", "test-key")
	_, err := n.Validate(context.Background(), "Acme Kettle", candidates("text"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limited")
}

func TestMisconfiguredClientFailsFast(t *testing.T) {
	n := NewNormalizer("http://unused.test", "test-model", "")
	_, err := n.Validate(context.Background(), "Acme Kettle", candidates("text"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "misconfigured")
}
