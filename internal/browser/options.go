// Package browser drives a real Chrome through chromedp behind the page.Page interface.
package browser

import (
	"time"

	"github.com/chromedp/chromedp"

	"sjsage522/placereviewworker/helpers"
)

// Options configure one Chrome session
type Options struct {
	Headless     bool
	Proxy        string
	UserAgent    string
	WindowWidth  int
	WindowHeight int
	FrameTimeout time.Duration
	// ActionRate caps page actions per second
	ActionRate int
}

func DefaultOptions() Options {
	return Options{
		Headless:     true,
		WindowWidth:  1400,
		WindowHeight: 1000,
		FrameTimeout: 10 * time.Second,
		ActionRate:   20,
	}
}

// BuildChromeOptions creates allocator options. Site isolation is disabled so
// the top document can reach into the place iframes.
func BuildChromeOptions(opts Options) []chromedp.ExecAllocatorOption {
	chromeOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-web-security", true),
		chromedp.Flag("disable-features", "VizDisplayCompositor,IsolateOrigins,site-per-process"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("lang", "ko-KR"),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
	)

	if opts.Headless {
		chromeOpts = append(chromeOpts, chromedp.Flag("headless", "new"))
	} else {
		chromeOpts = append(chromeOpts, chromedp.Flag("headless", false))
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = helpers.RandomUserAgent()
	}
	chromeOpts = append(chromeOpts, chromedp.UserAgent(userAgent))

	if opts.Proxy != "" {
		chromeOpts = append(chromeOpts, chromedp.ProxyServer(opts.Proxy))
	}
	return chromeOpts
}
