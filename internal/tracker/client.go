// Package tracker reports a respondent's session lifecycle to the quiz API.
// The flow must stay responsive regardless of network health, so every call
// here is best-effort: failures are logged and swallowed, writes run off the
// caller's goroutine, and nothing is retried.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"quizflow/internal/domain"
	"quizflow/internal/engine"
)

const defaultTimeout = 5 * time.Second

// Client implements engine.Tracker over the public quiz session endpoints.
type Client struct {
	baseURL string
	quizID  string
	http    *http.Client
	wg      sync.WaitGroup
}

var _ engine.Tracker = (*Client)(nil)

// NewClient targets the quiz API at baseURL for one quiz. A zero timeout
// uses the default.
func NewClient(baseURL, quizID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		quizID:  quizID,
		http:    &http.Client{Timeout: timeout},
	}
}

// Open registers a new session and returns its id. Open is the only
// synchronous call: the flow needs the id for later patches. A failure
// leaves the run untracked.
func (c *Client) Open(ctx context.Context, attribution domain.SessionAttribution) (string, bool) {
	body, err := json.Marshal(attribution)
	if err != nil {
		return "", false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sessionsURL(), bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("quiz tracker: open session: %v", err)
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("quiz tracker: open session: status %d", resp.StatusCode)
		return "", false
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil || created.ID == "" {
		log.Printf("quiz tracker: open session: bad response: %v", err)
		return "", false
	}
	return created.ID, true
}

// SyncAnswer patches one answered question into the remote session. Patches
// are keyed by question id and idempotent server-side (last write wins), so
// a superseded in-flight patch is harmless.
func (c *Client) SyncAnswer(_ context.Context, sessionID, questionID string, value any) {
	if sessionID == "" {
		return
	}
	payload := struct {
		Answers map[string]any `json:"answers"`
	}{Answers: map[string]any{questionID: value}}
	c.send(http.MethodPatch, c.sessionURL(sessionID), payload)
}

// Complete sends the completion payload: the full answer set at result time,
// or a lead-only re-target afterwards.
func (c *Client) Complete(_ context.Context, sessionID string, lead map[string]string, answers domain.AnswerSet) {
	if sessionID == "" {
		return
	}
	payload := struct {
		LeadData map[string]string `json:"leadData,omitempty"`
		Answers  domain.AnswerSet  `json:"answers,omitempty"`
	}{LeadData: lead, Answers: answers}
	c.send(http.MethodPost, c.sessionURL(sessionID)+"/complete", payload)
}

// Flush waits for in-flight calls; call it before process exit and in tests.
func (c *Client) Flush() {
	c.wg.Wait()
}

// send fires the request on its own goroutine. The caller's context is not
// propagated: a respondent navigating away must not cancel a patch that the
// server can still apply. The client timeout bounds the request instead.
func (c *Client) send(method, url string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		req, err := http.NewRequest(method, url, bytes.NewReader(body))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			log.Printf("quiz tracker: %s %s: %v", method, url, err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			log.Printf("quiz tracker: %s %s: status %d", method, url, resp.StatusCode)
		}
	}()
}

func (c *Client) sessionsURL() string {
	return c.baseURL + "/public/quiz/" + c.quizID + "/sessions"
}

func (c *Client) sessionURL(sessionID string) string {
	return c.sessionsURL() + "/" + sessionID
}
