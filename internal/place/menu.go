package place

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/placereviewworker/internal/navigate"
	"sjsage522/placereviewworker/internal/page"
	"sjsage522/placereviewworker/logger"
	"sjsage522/placereviewworker/pkg/errors"
	"sjsage522/placereviewworker/services/sink"
)

// MenusTab is the detail tab listing menu items
const MenusTab = "메뉴"

var MenuHeader = []string{"menu_name", "price_text", "price", "signature"}

// MenuItem is one priced entry of a place's menu
type MenuItem struct {
	Name      string `json:"menu_name"`
	PriceText string `json:"price_text"`
	Price     *int   `json:"price"`
	Signature bool   `json:"signature"`
}

// MenuExtractor expands and reads the menu tab
type MenuExtractor struct {
	Page      page.Page
	Pacer     page.Pacer
	MaxRounds int
}

func NewMenuExtractor(p page.Page, pacer page.Pacer) *MenuExtractor {
	return &MenuExtractor{Page: p, Pacer: pacer, MaxRounds: 6}
}

// Extract opens the menu tab, presses the menu section's 더보기 while it keeps
// revealing items and parses what is listed.
func (m *MenuExtractor) Extract(ctx context.Context, nav *navigate.Navigator, entity string) ([]MenuItem, error) {
	if err := nav.EnsureEntryFrame(ctx, entity); err != nil {
		return nil, err
	}
	if !nav.OpenTab(ctx, MenusTab) {
		logger.ForEntity(entity).Debug().Msg("menu tab not found")
	}

	for i := 0; i < 3; i++ {
		_ = m.Page.ScrollBy(ctx, 700)
		m.Pacer.Pause(ctx, page.Range{Min: 0.2, Max: 0.3})
	}

	prev := m.count(ctx)
	for round := 0; round < m.MaxRounds && ctx.Err() == nil; round++ {
		more, ok := m.moreButton(ctx)
		if !ok {
			break
		}
		_ = m.Page.ScrollIntoView(ctx, more)
		if err := m.Page.Click(ctx, more); err != nil {
			break
		}
		m.Pacer.Pause(ctx, page.Range{Min: 0.5, Max: 0.7})

		cur := m.count(ctx)
		if cur <= prev {
			break
		}
		prev = cur
	}

	doc, err := snapshot(ctx, m.Page, entity)
	if err != nil {
		return nil, err
	}
	return ParseMenu(doc), nil
}

func (m *MenuExtractor) count(ctx context.Context) int {
	html, err := m.Page.HTML(ctx)
	if err != nil {
		return 0
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0
	}
	return menuItems(doc).Length()
}

// moreButton finds a visible 더보기 inside the section headed 메뉴
func (m *MenuExtractor) moreButton(ctx context.Context) (page.Element, bool) {
	sections, err := m.Page.Find(ctx, page.Query{CSS: "section", Text: MenusTab})
	if err != nil {
		return page.Element{}, false
	}
	for _, sec := range sections {
		heads, err := m.Page.FindIn(ctx, sec, page.Query{CSS: "h2", Text: MenusTab})
		if err != nil || len(heads) == 0 {
			continue
		}
		buttons, err := m.Page.FindIn(ctx, sec, page.Query{CSS: "button, a", Text: "더보기"})
		if err != nil || len(buttons) == 0 {
			continue
		}
		if el, ok := firstVisible(ctx, m.Page, buttons); ok {
			return el, true
		}
	}
	return page.Element{}, false
}

func menuItems(doc *goquery.Document) *goquery.Selection {
	inSection := doc.Find("section").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.Find("h2").Text(), MenusTab)
	}).Find("li")
	return inSection.Union(doc.Find("li.E2jtL"))
}

// ParseMenu reads every menu item of doc. Items with neither a name nor a price are dropped.
func ParseMenu(doc *goquery.Document) []MenuItem {
	var out []MenuItem
	menuItems(doc).Each(func(_ int, li *goquery.Selection) {
		item := MenuItem{Name: firstText(li, "span.lPzHi", "div.yQlqY span")}

		item.PriceText = strings.TrimSpace(li.Find("em").First().Text())
		if item.PriceText == "" {
			item.PriceText = strings.TrimSpace(li.Text())
		}
		item.Price = IntFrom(item.PriceText)

		li.Find(".place_blind").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if strings.Contains(s.Text(), "대표") {
				item.Signature = true
				return false
			}
			return true
		})

		if item.Name != "" || item.Price != nil {
			out = append(out, item)
		}
	})
	return out
}

func firstText(s *goquery.Selection, selectors ...string) string {
	for _, css := range selectors {
		var found string
		s.Find(css).EachWithBreak(func(_ int, e *goquery.Selection) bool {
			found = strings.TrimSpace(e.Text())
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// Menus collects and writes one <slug>_menus_<ts>.csv per place
func (r *Runner) Menus(ctx context.Context, names []string) (failed int) {
	return r.eachPlace(ctx, names, func(p page.Page, nav *navigate.Navigator, name string) error {
		items, err := NewMenuExtractor(p, r.Pacer).Extract(ctx, nav, name)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
			return errors.NewStorage(name, "create output dir", err)
		}
		path := filepath.Join(r.OutputDir, fmt.Sprintf("%s_menus_%s.csv", fileSlug(name), r.stamp()))
		err = sink.WriteCSV(path, MenuHeader, len(items), func(i int) []string {
			it := items[i]
			return []string{it.Name, it.PriceText, formatInt(it.Price), fmt.Sprint(it.Signature)}
		})
		if err != nil {
			return errors.NewStorage(name, "write menus", err)
		}
		logger.ForEntity(name).Info().Int("items", len(items)).Str("path", path).Msg("menus saved")
		return nil
	})
}
