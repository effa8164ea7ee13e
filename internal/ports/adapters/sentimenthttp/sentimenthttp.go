// Package sentimenthttp classifies text through a hosted text-classification
// endpoint that accepts {"inputs": text} and answers with label/score pairs,
// e.g. a Hugging Face inference endpoint for distilbert-sst2.
package sentimenthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/forPelevin/reelcut/internal/types"
)

type Adapter struct {
	url     string
	key     string
	c       *http.Client
	limiter *rate.Limiter
}

type Options struct {
	URL               string
	APIKey            string
	Timeout           time.Duration
	RequestsPerMinute int
}

func New(opts Options) *Adapter {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if opts.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(opts.RequestsPerMinute) / 60)
		burst = max(1, opts.RequestsPerMinute/10)
	}
	return &Adapter{
		url:     strings.TrimRight(strings.TrimSpace(opts.URL), "/"),
		key:     opts.APIKey,
		c:       &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, burst),
	}
}

type classifyReq struct {
	Inputs string `json:"inputs"`
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func (a *Adapter) Classify(ctx context.Context, text string) (types.Sentiment, error) {
	if a.url == "" {
		return types.Sentiment{}, errors.New("sentiment endpoint is not configured")
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return types.Sentiment{}, errors.Wrap(err, "sentiment rate limit")
	}

	b, err := json.Marshal(classifyReq{Inputs: text})
	if err != nil {
		return types.Sentiment{}, errors.Wrap(err, "sentiment marshal")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(b))
	if err != nil {
		return types.Sentiment{}, errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.key != "" {
		req.Header.Set("Authorization", "Bearer "+a.key)
	}

	resp, err := a.c.Do(req)
	if err != nil {
		return types.Sentiment{}, errors.Wrap(err, "sentiment request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		const maxErr = 4096
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErr))
		return types.Sentiment{}, errors.Errorf("sentiment %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Sentiment{}, errors.Wrap(err, "sentiment read")
	}
	return parseResponse(raw)
}

// parseResponse accepts the nested [[{label,score},...]] shape returned for a
// single input as well as a flat [{label,score},...] list, and returns the
// highest-scoring label.
func parseResponse(raw []byte) (types.Sentiment, error) {
	var nested [][]labelScore
	var flat []labelScore
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 {
		flat = nested[0]
	} else if err := json.Unmarshal(raw, &flat); err != nil {
		return types.Sentiment{}, errors.Wrap(err, "sentiment decode")
	}
	if len(flat) == 0 {
		return types.Sentiment{}, errors.New("sentiment: empty result")
	}
	best := flat[0]
	for _, ls := range flat[1:] {
		if ls.Score > best.Score {
			best = ls
		}
	}
	return types.Sentiment{Label: normalizeLabel(best.Label), Score: best.Score}, nil
}

// Hub models often expose raw ids instead of names.
func normalizeLabel(l string) string {
	switch strings.ToUpper(strings.TrimSpace(l)) {
	case "POSITIVE", "POS", "LABEL_1":
		return "POSITIVE"
	case "NEGATIVE", "NEG", "LABEL_0":
		return "NEGATIVE"
	default:
		return strings.ToUpper(strings.TrimSpace(l))
	}
}
