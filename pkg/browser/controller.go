// Package browser drives a headless Chrome instance over the DevTools
// protocol and exposes the browser.* tool set.
package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout = 30 * time.Second
	searchURL      = "https://html.duckduckgo.com/html/?q="
	// resultTextCap keeps search observations small enough for the model
	// context.
	resultTextCap = 4000
)

// Config configures the browser controller.
type Config struct {
	// ControlURL connects to an already-running Chrome DevTools endpoint.
	// When empty, a managed headless Chrome is launched.
	ControlURL string
	Headless   bool
	Timeout    time.Duration
	Logger     zerolog.Logger
}

// Controller owns one Chrome connection and a single active page. Tool calls
// operate on the current page, mirroring how a person uses one tab.
type Controller struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	timeout  time.Duration
	logger   zerolog.Logger

	mu   sync.Mutex
	page *rod.Page
}

// NewController launches or connects to Chrome and returns a controller.
func NewController(cfg Config) (*Controller, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Controller{timeout: timeout, logger: cfg.Logger}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(cfg.Headless)
		launched, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		c.launcher = l
		controlURL = launched
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if c.launcher != nil {
			c.launcher.Kill()
		}
		return nil, fmt.Errorf("connect to chrome devtools: %w", err)
	}
	c.browser = browser

	c.logger.Info().Bool("managed", cfg.ControlURL == "").Msg("Browser controller connected")
	return c, nil
}

// Close disconnects from Chrome and kills the managed process if any.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.browser != nil {
		err = c.browser.Close()
		c.browser = nil
	}
	if c.launcher != nil {
		c.launcher.Kill()
		c.launcher = nil
	}
	return err
}

// currentPage returns the active page, creating a blank one on first use.
func (c *Controller) currentPage() (*rod.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.page != nil {
		return c.page, nil
	}

	page, err := c.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	c.page = page
	return page, nil
}

// Navigate opens target in the current page and waits for it to load.
func (c *Controller) Navigate(ctx context.Context, target string) (string, error) {
	page, err := c.currentPage()
	if err != nil {
		return "", err
	}
	page = page.Context(ctx).Timeout(c.timeout)

	if err := page.Navigate(target); err != nil {
		return "", fmt.Errorf("navigate to %s: %w", target, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("page load timeout for %s: %w", target, err)
	}

	info, err := page.Info()
	if err != nil {
		return fmt.Sprintf("Navigated to %s", target), nil
	}
	return fmt.Sprintf("Navigated to %s (title: %s)", info.URL, info.Title), nil
}

// Search runs a web search and returns the result page text.
func (c *Controller) Search(ctx context.Context, query string) (string, error) {
	if _, err := c.Navigate(ctx, searchURL+url.QueryEscape(query)); err != nil {
		return "", fmt.Errorf("search for %q: %w", query, err)
	}

	text, err := c.ExtractText(ctx, ".results")
	if err != nil {
		// Fall back to the whole page when the results container moves.
		text, err = c.ExtractText(ctx, "body")
		if err != nil {
			return "", fmt.Errorf("read search results for %q: %w", query, err)
		}
	}
	return truncate(text, resultTextCap), nil
}

// Click performs a left click on the first element matching selector.
func (c *Controller) Click(ctx context.Context, selector string) (string, error) {
	elem, err := c.element(ctx, selector)
	if err != nil {
		return "", err
	}
	if err := elem.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return "", fmt.Errorf("click %s: %w", selector, err)
	}
	return fmt.Sprintf("Clicked element %s", selector), nil
}

// Type enters text into the first element matching selector.
func (c *Controller) Type(ctx context.Context, selector, text string) (string, error) {
	elem, err := c.element(ctx, selector)
	if err != nil {
		return "", err
	}
	if err := elem.Input(text); err != nil {
		return "", fmt.Errorf("type into %s: %w", selector, err)
	}
	return fmt.Sprintf("Typed %d characters into %s", len(text), selector), nil
}

// ExtractText returns the visible text of the first element matching
// selector.
func (c *Controller) ExtractText(ctx context.Context, selector string) (string, error) {
	elem, err := c.element(ctx, selector)
	if err != nil {
		return "", err
	}
	text, err := elem.Text()
	if err != nil {
		return "", fmt.Errorf("read text of %s: %w", selector, err)
	}
	return text, nil
}

// Screenshot captures the current viewport and returns it base64-encoded.
func (c *Controller) Screenshot(ctx context.Context) (string, error) {
	page, err := c.currentPage()
	if err != nil {
		return "", err
	}
	page = page.Context(ctx).Timeout(c.timeout)

	data, err := page.Screenshot(false, nil)
	if err != nil {
		return "", fmt.Errorf("capture screenshot: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (c *Controller) element(ctx context.Context, selector string) (*rod.Element, error) {
	page, err := c.currentPage()
	if err != nil {
		return nil, err
	}
	page = page.Context(ctx).Timeout(c.timeout)

	elem, err := page.Element(selector)
	if err != nil {
		return nil, fmt.Errorf("element not found: %s", selector)
	}
	return elem, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n[truncated]"
}
