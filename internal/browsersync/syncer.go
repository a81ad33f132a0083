package browsersync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// ErrNotConnected is returned by ReplaceLocation before Connect succeeds.
var ErrNotConnected = errors.New("browser sync not connected")

// Syncer keeps the address bar of a dashboard tab in a remote Chromium in
// step with the console's filter.
type Syncer struct {
	cdpURL    string
	tabFilter string

	mu          sync.Mutex
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	targetID    target.ID
	url         string
}

func NewSyncer(cdpURL, tabFilter string) *Syncer {
	return &Syncer{cdpURL: cdpURL, tabFilter: tabFilter}
}

// Connect attaches to the first page target whose URL matches the tab filter.
// ctx bounds the attach; the connection itself outlives it until Close.
func (s *Syncer) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("connect to browser: %w", err)
	}
	slog.Info("connecting to Chromium for address sync", "url", s.cdpURL)
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), s.cdpURL)

	probeCtx, probeCancel := chromedp.NewContext(allocCtx)
	defer probeCancel()
	stopProbe := context.AfterFunc(ctx, probeCancel)
	defer stopProbe()

	if err := chromedp.Run(probeCtx); err != nil {
		allocCancel()
		return fmt.Errorf("connect to browser: %w", attachErr(ctx, err))
	}

	targets, err := chromedp.Targets(probeCtx)
	if err != nil {
		allocCancel()
		return fmt.Errorf("enumerate targets: %w", attachErr(ctx, err))
	}

	var found *target.Info
	for _, t := range targets {
		if t.Type == "page" && matchesTabURL(t.URL, s.tabFilter) {
			found = t
			break
		}
	}
	if found == nil {
		allocCancel()
		return fmt.Errorf("no tab matching CONSOLE_TAB_URL_FILTER=%q", s.tabFilter)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithTargetID(found.TargetID))
	stopTab := context.AfterFunc(ctx, tabCancel)
	err = chromedp.Run(tabCtx, page.Enable())
	if !stopTab() && err == nil {
		err = ctx.Err()
	}
	if err != nil {
		tabCancel()
		allocCancel()
		return fmt.Errorf("enable page domain: %w", attachErr(ctx, err))
	}
	chromedp.ListenTarget(tabCtx, s.onEvent)

	s.mu.Lock()
	s.allocCancel = allocCancel
	s.tabCtx = tabCtx
	s.tabCancel = tabCancel
	s.targetID = found.TargetID
	s.url = found.URL
	s.mu.Unlock()

	slog.Info("attached to dashboard tab", "target_id", found.TargetID, "url", truncateURL(found.URL))
	return nil
}

// attachErr prefers the caller's deadline or cancellation over whatever
// chromedp reported after its context was torn down.
func attachErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (s *Syncer) onEvent(ev any) {
	var url string
	switch e := ev.(type) {
	case *page.EventNavigatedWithinDocument:
		url = e.URL
	case *page.EventFrameNavigated:
		if e.Frame.ParentID != "" {
			return
		}
		url = e.Frame.URL
	default:
		return
	}
	s.mu.Lock()
	s.url = url
	s.mu.Unlock()
	slog.Debug("dashboard tab navigated", "url", truncateURL(url))
}

// URL is the tab's last known address.
func (s *Syncer) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// ReplaceLocation rewrites the tab's query string without a history entry.
func (s *Syncer) ReplaceLocation(ctx context.Context, query string) error {
	s.mu.Lock()
	tabCtx := s.tabCtx
	s.mu.Unlock()
	if tabCtx == nil {
		return ErrNotConnected
	}

	runCtx, cancel := context.WithCancel(tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, chromedp.Evaluate(replaceStateScript(query), nil)); err != nil {
		return fmt.Errorf("replace location: %w", err)
	}
	return nil
}

func (s *Syncer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tabCancel != nil {
		s.tabCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.tabCtx = nil
	slog.Info("browser sync closed")
}

func replaceStateScript(query string) string {
	suffix := ""
	if query = strings.TrimPrefix(query, "?"); query != "" {
		suffix = "?" + query
	}
	var quoted bytes.Buffer
	enc := json.NewEncoder(&quoted)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(suffix)
	return fmt.Sprintf("history.replaceState(history.state, '', location.pathname + %s + location.hash)",
		bytes.TrimSpace(quoted.Bytes()))
}

func matchesTabURL(url, filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(url), strings.ToLower(filter))
}

func truncateURL(url string) string {
	if len(url) > 120 {
		return url[:120] + "..."
	}
	return url
}
