package browser

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/formpilot/formpilot/internal/fill"
)

// Config controls the browser driver.
type Config struct {
	Headless bool
	Timeout  time.Duration
}

// DefaultConfig returns sensible defaults for the driver.
func DefaultConfig() Config {
	return Config{
		Headless: true,
		Timeout:  30 * time.Second,
	}
}

// Driver owns a Playwright browser used to snapshot live pages and replay
// mutation plans against them. The fill engine itself never touches the
// browser; it works on a detached tree and emits a plan the driver replays.
type Driver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	config  Config
	logger  *zap.Logger
}

// NewDriver starts Playwright and launches a Chromium instance.
func NewDriver(config Config, logger *zap.Logger) (*Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(config.Headless),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	return &Driver{
		pw:      pw,
		browser: browser,
		config:  config,
		logger:  logger,
	}, nil
}

// Close cleans up driver resources
func (d *Driver) Close() error {
	if d.browser != nil {
		d.browser.Close()
	}
	if d.pw != nil {
		return d.pw.Stop()
	}
	return nil
}

// LivePage is one open page the driver can snapshot and mutate.
type LivePage struct {
	ctx    playwright.BrowserContext
	page   playwright.Page
	driver *Driver
}

// Open navigates a fresh page to the URL and waits for it to settle.
func (d *Driver) Open(url string) (*LivePage, error) {
	browserCtx, err := d.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  1920,
			Height: 1080,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating browser context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		browserCtx.Close()
		return nil, fmt.Errorf("creating page: %w", err)
	}

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(d.config.Timeout.Milliseconds())),
	}); err != nil {
		page.Close()
		browserCtx.Close()
		return nil, fmt.Errorf("navigating to %s: %w", url, err)
	}

	return &LivePage{ctx: browserCtx, page: page, driver: d}, nil
}

// Close releases the page and its context.
func (p *LivePage) Close() error {
	if p.page != nil {
		p.page.Close()
	}
	if p.ctx != nil {
		return p.ctx.Close()
	}
	return nil
}

// Content returns the page's current serialized DOM.
func (p *LivePage) Content() (string, error) {
	html, err := p.page.Content()
	if err != nil {
		return "", fmt.Errorf("getting page content: %w", err)
	}
	return html, nil
}

// Apply replays a mutation plan against the live page. Steps are applied
// in order; a step whose selector matches nothing is skipped rather than
// aborting the whole plan, since the detached tree and the live page can
// drift while answers are being resolved.
func (p *LivePage) Apply(plan []fill.Mutation) (int, error) {
	applied := 0
	timeout := playwright.Float(float64(p.driver.config.Timeout.Milliseconds()))

	for _, m := range plan {
		if m.Selector == "" {
			continue
		}
		loc := p.page.Locator(m.Selector).First()

		var err error
		switch m.Kind {
		case fill.MutationSetValue:
			err = loc.Fill(m.Value, playwright.LocatorFillOptions{Timeout: timeout})
		case fill.MutationSetChecked:
			if m.Role {
				err = loc.Click(playwright.LocatorClickOptions{Timeout: timeout})
			} else if m.Checked {
				err = loc.Check(playwright.LocatorCheckOptions{Timeout: timeout})
			} else {
				err = loc.Uncheck(playwright.LocatorUncheckOptions{Timeout: timeout})
			}
		case fill.MutationClick, fill.MutationSubmit:
			err = loc.Click(playwright.LocatorClickOptions{Timeout: timeout})
		default:
			continue
		}

		if err != nil {
			p.driver.logger.Warn("mutation step skipped",
				zap.String("kind", string(m.Kind)),
				zap.String("selector", m.Selector),
				zap.Error(err))
			continue
		}
		applied++
	}

	return applied, nil
}
