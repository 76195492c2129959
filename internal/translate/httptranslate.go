package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MrWong99/dubctl/internal/dubctlerr"
	"github.com/MrWong99/dubctl/internal/resilience"
)

// HTTPTranslator is a [Translator] backed by a plain JSON-over-HTTP
// translation endpoint, for deployments where translation is an opaque
// service rather than an LLM call.
type HTTPTranslator struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
}

var _ Translator = (*HTTPTranslator)(nil)

// NewHTTPTranslator builds an HTTPTranslator posting requests to endpoint,
// guarded by a circuit breaker so a failing translation backend does not
// retry every utterance in a run against a service that is already down.
func NewHTTPTranslator(endpoint, apiKey string) *HTTPTranslator {
	return &HTTPTranslator{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:        "translate-http",
			MaxFailures: 5,
			ResetTimeout: 30 * time.Second,
		}),
	}
}

type httpTranslateRequest struct {
	SourceText     string   `json:"source_text"`
	SourceLang     string   `json:"source_lang"`
	TargetLang     string   `json:"target_lang"`
	EpisodeContext string   `json:"episode_context,omitempty"`
	GlossaryPairs  [][2]string `json:"glossary_pairs,omitempty"`
	DomainHints    []string `json:"domain_hints,omitempty"`
}

type httpTranslateResponse struct {
	TextTarget string `json:"text_target"`
}

func (t *HTTPTranslator) Translate(ctx context.Context, req Request) (string, error) {
	body := httpTranslateRequest{
		SourceText:     req.SourceText,
		SourceLang:     req.SourceLang,
		TargetLang:     req.TargetLang,
		EpisodeContext: req.EpisodeContext,
		DomainHints:    req.DomainHints,
	}
	for _, g := range req.GlossaryHints {
		body.GlossaryPairs = append(body.GlossaryPairs, [2]string{g.Surface, g.Target})
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("translate: encode request: %w", err)
	}

	var result httpTranslateResponse
	err = resilience.Retry(ctx, resilience.RetryConfig{Name: "translate-http"}, func() error {
		return t.breaker.Execute(func() error {
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(raw))
			if err != nil {
				return err
			}
			httpReq.Header.Set("Content-Type", "application/json")
			if t.apiKey != "" {
				httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
			}

			resp, err := t.httpClient.Do(httpReq)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("translate endpoint returned status %d", resp.StatusCode)
			}
			return json.NewDecoder(resp.Body).Decode(&result)
		})
	})
	if err != nil {
		return "", dubctlerr.Transient("translate", fmt.Sprintf("utt %s", req.UttID), err)
	}

	return result.TextTarget, nil
}
