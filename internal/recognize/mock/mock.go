// Package mock provides a scriptable [recognize.Provider] for tests.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/MrWong99/dubctl/internal/model"
	"github.com/MrWong99/dubctl/internal/recognize"
)

// Provider returns canned [recognize.Result] values keyed by audio path,
// or fails submission/polling as scripted. PendingPolls controls how many
// times Poll reports done=false before returning the result, so tests can
// exercise the poll loop in [recognize.Run] without a real timer.
type Provider struct {
	mu sync.Mutex

	// Results maps audioPath to the result Submit/Poll should eventually
	// report. A missing entry is a submission failure.
	Results map[string]model.RawRecognition

	// SubmitErr, if set, is returned by every Submit call.
	SubmitErr error

	// PollErr, if set, is returned by every Poll call.
	PollErr error

	// PendingPolls is the number of Poll calls that report done=false
	// before the result is returned.
	PendingPolls int

	jobs  map[string]string // jobID -> audioPath
	polls map[string]int    // jobID -> polls seen so far
	next  int
}

var _ recognize.Provider = (*Provider)(nil)

func (m *Provider) Submit(ctx context.Context, audioPath, preset string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SubmitErr != nil {
		return "", m.SubmitErr
	}
	if _, ok := m.Results[audioPath]; !ok {
		return "", fmt.Errorf("mock recognize: no result scripted for %s", audioPath)
	}

	if m.jobs == nil {
		m.jobs = make(map[string]string)
		m.polls = make(map[string]int)
	}
	m.next++
	jobID := fmt.Sprintf("job-%d", m.next)
	m.jobs[jobID] = audioPath
	return jobID, nil
}

func (m *Provider) Poll(ctx context.Context, jobID string) (*recognize.Result, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PollErr != nil {
		return nil, false, m.PollErr
	}
	audioPath, ok := m.jobs[jobID]
	if !ok {
		return nil, false, fmt.Errorf("mock recognize: unknown job %q", jobID)
	}
	if m.polls[jobID] < m.PendingPolls {
		m.polls[jobID]++
		return nil, false, nil
	}

	parsed := m.Results[audioPath]
	raw, err := json.Marshal(parsed)
	if err != nil {
		return nil, false, fmt.Errorf("mock recognize: encode result: %w", err)
	}
	return &recognize.Result{Raw: raw, Parsed: parsed}, true, nil
}
