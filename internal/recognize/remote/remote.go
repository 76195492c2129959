// Package remote is a [recognize.Provider] for an HTTP recognition service
// that works asynchronously: a submit call kicks off a job, a poll call
// reports status. Plain net/http, no streaming.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MrWong99/dubctl/internal/dubctlerr"
	"github.com/MrWong99/dubctl/internal/model"
	"github.com/MrWong99/dubctl/internal/recognize"
)

// Provider calls a JSON-over-HTTP recognition service with an async
// submit/poll contract.
type Provider struct {
	submitURL  string
	pollURLFmt string // must contain one "%s" verb for the job id
	apiKey     string
	httpClient *http.Client
}

var _ recognize.Provider = (*Provider)(nil)

// New builds a Provider. pollURLFmt is formatted with the job id returned
// from submitURL.
func New(submitURL, pollURLFmt, apiKey string) *Provider {
	return &Provider{
		submitURL:  submitURL,
		pollURLFmt: pollURLFmt,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type submitRequest struct {
	AudioPath string `json:"audio_path"`
	Preset    string `json:"preset"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

func (p *Provider) Submit(ctx context.Context, audioPath, preset string) (string, error) {
	body, err := json.Marshal(submitRequest{AudioPath: audioPath, Preset: preset})
	if err != nil {
		return "", fmt.Errorf("remote: encode submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.submitURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("remote: build submit request: %w", err)
	}
	p.setAuth(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("remote: submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", statusError("submit", resp.StatusCode)
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("remote: decode submit response: %w", err)
	}
	return out.JobID, nil
}

type pollResponse struct {
	Status string          `json:"status"` // "pending" | "done" | "failed"
	Error  string          `json:"error,omitempty"`
	Raw    json.RawMessage `json:"result,omitempty"`
}

func (p *Provider) Poll(ctx context.Context, jobID string) (*recognize.Result, bool, error) {
	url := fmt.Sprintf(p.pollURLFmt, jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("remote: build poll request: %w", err)
	}
	p.setAuth(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("remote: poll: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, statusError("poll", resp.StatusCode)
	}

	var out pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, fmt.Errorf("remote: decode poll response: %w", err)
	}

	switch out.Status {
	case "pending":
		return nil, false, nil
	case "failed":
		return nil, false, dubctlerr.Permanent("recognize", "poll",
			fmt.Errorf("remote: job %s failed: %s", jobID, out.Error))
	case "done":
		var parsed model.RawRecognition
		if err := json.Unmarshal(out.Raw, &parsed); err != nil {
			return nil, false, fmt.Errorf("remote: decode recognition result: %w", err)
		}
		return &recognize.Result{Raw: out.Raw, Parsed: parsed}, true, nil
	default:
		return nil, false, fmt.Errorf("remote: unknown job status %q", out.Status)
	}
}

// statusError tags a non-rate-limit 4xx as permanent so the caller stops
// retrying; everything else (5xx, 429) stays retryable.
func statusError(op string, code int) error {
	err := fmt.Errorf("remote: %s returned status %d", op, code)
	if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
		return dubctlerr.Permanent("recognize", op, err)
	}
	return err
}

func (p *Provider) setAuth(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
}
