package network

import (
	"context"
	"fmt"
	"time"

	"github.com/SirZenith/gimme/common"
	"github.com/SirZenith/gimme/gallery"
	"github.com/SirZenith/gimme/harvest"
	"github.com/charmbracelet/log"
	"github.com/playwright-community/playwright-go"
)

// Renderer provides page context by loading target page in a headless
// browser, so content generated by scripts is visible to harvesting.
type Renderer struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
	Proxy     string
}

func (r *Renderer) Acquire(ctx context.Context, describe harvest.DescribeFunc) (*harvest.PageProbe, error) {
	loc, err := parsePageURL(r.URL)
	if err != nil {
		return nil, err
	}

	content, err := r.render(ctx, loc.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", gallery.ErrContextUnavailable, err)
	}

	doc, err := ParseDocument([]byte(content), "text/html; charset=utf-8")
	if err != nil {
		return nil, err
	}

	return newPageProbe(loc, doc, describe), nil
}

func (r *Renderer) render(ctx context.Context, uri string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	pw, err := playwright.Run()
	if err != nil {
		return "", fmt.Errorf("failed to start playwright, try running install command first: %s", err)
	}
	defer pw.Stop()

	launchOptions := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	}
	if r.Proxy != "" {
		launchOptions.Proxy = &playwright.Proxy{Server: r.Proxy}
	}

	browser, err := pw.Chromium.Launch(launchOptions)
	if err != nil {
		return "", fmt.Errorf("failed to launch browser: %s", err)
	}
	defer browser.Close()

	page, err := browser.NewPage(playwright.BrowserNewPageOptions{
		UserAgent: playwright.String(common.GetStrOr(r.UserAgent, DefaultUserAgent)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to open page: %s", err)
	}

	// closing browser aborts navigation when run gets stopped
	stop := context.AfterFunc(ctx, func() { browser.Close() })
	defer stop()

	timeout := common.GetDurationOr(r.Timeout, DefaultTimeout)
	if _, err = page.Goto(uri, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		return "", fmt.Errorf("failed to load %s: %s", uri, err)
	}

	content, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read content of %s: %s", uri, err)
	}

	log.Debugf("rendered %s, %d bytes", uri, len(content))

	return content, nil
}
