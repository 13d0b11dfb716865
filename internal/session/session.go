// Package session owns the single authenticated browser session shared by
// every fetch and discovery call in a run. Concurrent use would corrupt
// navigation state, so callers must stay sequential.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"linkharvest/internal/harvest"
)

// Config controls the browser session.
type Config struct {
	Headless   bool
	UserAgent  string
	NavTimeout time.Duration
	// LoginURL is the credential form; SearchURL is the people-search
	// endpoint queried by keyword expansion.
	LoginURL  string
	SearchURL string
	// HostQPS caps navigations per second against the remote site; zero
	// disables the limiter.
	HostQPS float64
	WindowW int
	WindowH int
}

func (c *Config) applyDefaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 25 * time.Second
	}
	if c.WindowW <= 0 || c.WindowH <= 0 {
		c.WindowW, c.WindowH = 1920, 1080
	}
}

// Session is a chromedp-backed browsing session. One browser context lives
// for the whole run; each call opens a tab sharing its cookies.
type Session struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	limiter         *rate.Limiter
	cfg             Config
	logger          *zap.Logger
}

// New launches the browser and warms it up. Failure here is fatal for the
// whole run; no store writes may have happened yet.
func New(cfg Config, logger *zap.Logger) (*Session, error) {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(cfg.WindowW, cfg.WindowH),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("browser warmup: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.HostQPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.HostQPS), 1)
	}

	return &Session{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		limiter:         limiter,
		cfg:             cfg,
		logger:          logger,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.browserCancel()
	s.allocatorCancel()
	return nil
}

// Login submits credentials through the login form and verifies the session
// navigated away from it. Failure is fatal for the run.
func (s *Session) Login(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return errors.New("session: email and password are required")
	}
	tabCtx, cancel := s.newTab(ctx)
	defer cancel()

	var location string
	err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.Navigate(s.cfg.LoginURL),
		chromedp.WaitVisible(`#username`, chromedp.ByQuery),
		chromedp.SendKeys(`#username`, email, chromedp.ByQuery),
		chromedp.SendKeys(`#password`, password, chromedp.ByQuery),
		chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
		chromedp.Location(&location),
	)
	if err != nil {
		return fmt.Errorf("login flow: %w", err)
	}
	if strings.Contains(location, "/login") || strings.Contains(location, "/checkpoint") {
		return fmt.Errorf("login rejected, landed on %s", location)
	}
	s.logger.Info("session authenticated")
	return nil
}

// FetchProfile renders one profile page and extracts its structured fields.
// Timeouts and navigation failures come back wrapped as recoverable so the
// orchestrator can retry them; a rendered page without a name is reported
// via the empty Name field.
func (s *Session) FetchProfile(ctx context.Context, rawURL string) (harvest.Profile, error) {
	if err := s.waitBudget(ctx); err != nil {
		return harvest.Profile{}, err
	}
	tabCtx, cancel := s.newTab(ctx)
	defer cancel()

	var payload profilePayload
	err := chromedp.Run(tabCtx,
		network.Enable(),
		emulation.SetUserAgentOverride(s.userAgent()),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady(`main`, chromedp.ByQuery),
		chromedp.Sleep(time.Second),
		scrollToBottom(),
		chromedp.Evaluate(extractProfileJS, &payload),
	)
	if err != nil {
		return harvest.Profile{}, s.classify(ctx, fmt.Errorf("fetch profile %s: %w", rawURL, err))
	}
	return payload.toProfile(rawURL), nil
}

// NeighborLinks harvests profile links from the related-profiles rail of one
// profile page.
func (s *Session) NeighborLinks(ctx context.Context, profileURL string, max int) ([]string, error) {
	return s.collectLinks(ctx, profileURL, `aside a[href*="/in/"]`, max)
}

// MemberLinks harvests profile links from an organization's people page.
func (s *Session) MemberLinks(ctx context.Context, groupURL string, max int) ([]string, error) {
	peopleURL := strings.TrimSuffix(groupURL, "/") + "/people/"
	return s.collectLinks(ctx, peopleURL, `main a[href*="/in/"]`, max)
}

// SearchLinks harvests profile links from a people-search result page.
func (s *Session) SearchLinks(ctx context.Context, term string, max int) ([]string, error) {
	searchURL := s.cfg.SearchURL + url.QueryEscape(term)
	return s.collectLinks(ctx, searchURL, `main a[href*="/in/"]`, max)
}

func (s *Session) collectLinks(ctx context.Context, pageURL, selector string, max int) ([]string, error) {
	if err := s.waitBudget(ctx); err != nil {
		return nil, err
	}
	tabCtx, cancel := s.newTab(ctx)
	defer cancel()

	var hrefs []string
	script := fmt.Sprintf(collectHrefsJS, selector)
	err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
		chromedp.Sleep(time.Second),
		chromedp.Evaluate(script, &hrefs),
	)
	if err != nil {
		return nil, s.classify(ctx, fmt.Errorf("collect links from %s: %w", pageURL, err))
	}
	if max > 0 && len(hrefs) > max {
		hrefs = hrefs[:max]
	}
	return hrefs, nil
}

// newTab opens a fresh tab off the long-lived browser context, bounded by
// the navigation timeout and the caller's ctx.
func (s *Session) newTab(ctx context.Context) (context.Context, context.CancelFunc) {
	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	taskCtx, cancelTask := context.WithTimeout(tabCtx, s.cfg.NavTimeout)
	stop := forwardCancel(ctx, cancelTask)
	return taskCtx, func() {
		stop()
		cancelTask()
		cancelTab()
	}
}

func (s *Session) waitBudget(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("navigation rate limit: %w", err)
	}
	return nil
}

// classify wraps transient failures as recoverable. Cancellation of the
// caller's context stays terminal.
func (s *Session) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	return harvest.Recoverable(err)
}

func (s *Session) userAgent() string {
	if s.cfg.UserAgent != "" {
		return s.cfg.UserAgent
	}
	return "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
}

func scrollToBottom() chromedp.Action {
	return chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil)
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
