package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/perf_console/internal/aggregate"
	"github.com/dgnsrekt/perf_console/internal/refresh"
)

const sendTimeout = 10 * time.Second

// Send sends a message to the requested endpoint using HTTP POST.
func Send(ctx context.Context, client *http.Client, endpoint, message string) error {
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}

// FailureNotifier posts once when refreshes stop reaching the backend and
// once when they reach it again.
type FailureNotifier struct {
	client     *http.Client
	endpoint   string
	backendURL string

	mu   sync.Mutex
	down bool
	wg   sync.WaitGroup
}

func NewFailureNotifier(client *http.Client, endpoint, backendURL string) *FailureNotifier {
	return &FailureNotifier{client: client, endpoint: endpoint, backendURL: backendURL}
}

// Observe implements refresh.Observer.
func (n *FailureNotifier) Observe(evt refresh.Event) {
	var message string

	n.mu.Lock()
	switch evt.Outcome {
	case refresh.OutcomeFailed:
		if (evt.Code == aggregate.CodeTransport || evt.Code == aggregate.CodeTimeout) && !n.down {
			n.down = true
			message = fmt.Sprintf("perf console: %s refresh failed against %s: %s", evt.Kind, n.backendURL, evt.Banner)
		}
	case refresh.OutcomeApplied:
		if n.down {
			n.down = false
			message = fmt.Sprintf("perf console: %s is reachable again", n.backendURL)
		}
	}
	n.mu.Unlock()

	if message == "" {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := Send(ctx, n.client, n.endpoint, message); err != nil {
			slog.Warn("failure notification not sent", "endpoint", n.endpoint, "error", err)
		}
	}()
}

// Wait blocks until queued notifications have been sent or given up.
func (n *FailureNotifier) Wait() {
	n.wg.Wait()
}
