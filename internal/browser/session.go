package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"sjsage522/placereviewworker/internal/page"
)

// prelude runs before every evaluated snippet. Element handles live in a
// registry on the top window; the target document is the top document or the
// content document of the current frame.
const prelude = `
const rh = window.__rh || (window.__rh = {els: new Map(), next: 0});
const frameSel = %s;
let doc = document;
if (frameSel) {
  const f = document.querySelector(frameSel);
  doc = f && f.contentDocument;
  if (!doc) throw new Error("frame gone: " + frameSel);
}
const win = doc.defaultView;
const el = (id) => {
  const e = rh.els.get(id);
  if (!e || !e.isConnected) throw new Error("stale element " + id);
  return e;
};
const match = (nodes, text, exact) => nodes.filter((n) => {
  if (!text) return true;
  const t = (n.innerText || n.textContent || "").trim();
  return exact ? t === text : t.includes(text);
});
const reg = (nodes) => nodes.map((n) => { rh.next += 1; rh.els.set(rh.next, n); return rh.next; });
`

// Session is one Chrome tab implementing page.Page
type Session struct {
	ctx     context.Context
	cancels []context.CancelFunc
	limiter *rate.Limiter
	opts    Options
	frame   string
}

var _ page.Page = (*Session)(nil)

// NewSession starts a dedicated browser for one harvest
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), BuildChromeOptions(opts)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	rps := opts.ActionRate
	if rps <= 0 {
		rps = 20
	}
	s := &Session{
		ctx:     tabCtx,
		cancels: []context.CancelFunc{cancelTab, cancelAlloc},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		opts:    opts,
	}

	// the first Run allocates the browser and must not carry a deadline
	if err := chromedp.Run(tabCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}
	return s, nil
}

// Factory returns a session constructor bound to opts
func Factory(opts Options) func(ctx context.Context) (page.Page, error) {
	return func(ctx context.Context) (page.Page, error) {
		return NewSession(ctx, opts)
	}
}

// run executes actions on the tab, aborting when the caller's ctx ends
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func quote(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func (s *Session) eval(ctx context.Context, body string, res interface{}) error {
	js := "(() => {" + fmt.Sprintf(prelude, quote(s.frame)) + body + "\n})()"
	return s.run(ctx, chromedp.Evaluate(js, res))
}

func (s *Session) Open(ctx context.Context, url string) error {
	s.frame = ""
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *Session) SwitchToFrame(ctx context.Context, selector string) error {
	s.frame = ""
	cond := fmt.Sprintf(`(() => {
  const f = document.querySelector(%s);
  const d = f && f.contentDocument;
  return !!(d && d.body && d.readyState !== "loading");
})()`, quote(selector))

	var ready bool
	err := s.run(ctx, chromedp.Poll(cond, &ready,
		chromedp.WithPollingTimeout(s.opts.FrameTimeout),
		chromedp.WithPollingInterval(200*time.Millisecond),
	))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %v", page.ErrFrameUnavailable, selector, err)
	}
	s.frame = selector
	return nil
}

func (s *Session) SwitchToDefault(ctx context.Context) error {
	s.frame = ""
	return nil
}

func (s *Session) Find(ctx context.Context, q page.Query) ([]page.Element, error) {
	body := fmt.Sprintf(`
rh.els = new Map();
return reg(match(Array.from(doc.querySelectorAll(%s)), %s, %t));`, quote(q.CSS), quote(q.Text), q.Exact)
	return s.elements(ctx, body)
}

func (s *Session) FindIn(ctx context.Context, parent page.Element, q page.Query) ([]page.Element, error) {
	body := fmt.Sprintf(`
return reg(match(Array.from(el(%d).querySelectorAll(%s)), %s, %t));`, parent.ID, quote(q.CSS), quote(q.Text), q.Exact)
	return s.elements(ctx, body)
}

func (s *Session) elements(ctx context.Context, body string) ([]page.Element, error) {
	var ids []int64
	if err := s.eval(ctx, body, &ids); err != nil {
		return nil, err
	}
	out := make([]page.Element, len(ids))
	for i, id := range ids {
		out[i] = page.Element{ID: id}
	}
	return out, nil
}

func (s *Session) Click(ctx context.Context, e page.Element) error {
	return s.eval(ctx, fmt.Sprintf(`el(%d).click(); return true;`, e.ID), nil)
}

func (s *Session) ScrollIntoView(ctx context.Context, e page.Element) error {
	return s.eval(ctx, fmt.Sprintf(`el(%d).scrollIntoView({block: "center"}); return true;`, e.ID), nil)
}

func (s *Session) ScrollBy(ctx context.Context, dy int) error {
	return s.eval(ctx, fmt.Sprintf(`win.scrollBy(0, %d); return true;`, dy), nil)
}

func (s *Session) ScrollTo(ctx context.Context, fraction float64) error {
	f := strconv.FormatFloat(fraction, 'f', -1, 64)
	return s.eval(ctx, `win.scrollTo(0, doc.body.scrollHeight * `+f+`); return true;`, nil)
}

func (s *Session) ViewportHeight(ctx context.Context) (int, error) {
	var h int
	err := s.eval(ctx, `return Math.floor(win.innerHeight);`, &h)
	return h, err
}

func (s *Session) DocumentHeight(ctx context.Context) (int, error) {
	var h int
	err := s.eval(ctx, `return Math.floor(doc.body.scrollHeight);`, &h)
	return h, err
}

func (s *Session) Text(ctx context.Context, e page.Element) (string, error) {
	var t string
	err := s.eval(ctx, fmt.Sprintf(`return (el(%d).innerText || "").trim();`, e.ID), &t)
	return t, err
}

func (s *Session) Attribute(ctx context.Context, e page.Element, name string) (string, error) {
	var v string
	body := fmt.Sprintf(`
const e = el(%d);
const name = %s;
if (typeof e[name] === "string") return e[name];
return e.getAttribute(name) || "";`, e.ID, quote(name))
	err := s.eval(ctx, body, &v)
	return v, err
}

func (s *Session) Visible(ctx context.Context, e page.Element) (bool, error) {
	var ok bool
	body := fmt.Sprintf(`
const e = el(%d);
if (win.getComputedStyle(e).visibility === "hidden") return false;
return !!(e.offsetWidth || e.offsetHeight || e.getClientRects().length);`, e.ID)
	err := s.eval(ctx, body, &ok)
	return ok, err
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.eval(ctx, `return doc.documentElement.outerHTML;`, &html)
	return html, err
}

// Close terminates the tab and the browser process
func (s *Session) Close() error {
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
	return nil
}
