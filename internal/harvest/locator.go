package harvest

import "github.com/PuerkitoBio/goquery"

// BlockLocator finds review blocks in a frame snapshot
type BlockLocator interface {
	Name() string
	Locate(doc *goquery.Document) *goquery.Selection
}

// CSSLocator matches blocks with a single selector
type CSSLocator struct {
	Selector string
}

func (l CSSLocator) Name() string { return "css:" + l.Selector }

func (l CSSLocator) Locate(doc *goquery.Document) *goquery.Selection {
	return doc.Find(l.Selector)
}

// AncestorLocator matches Inner nodes and climbs to their closest Ancestor
type AncestorLocator struct {
	Inner    string
	Ancestor string
}

func (l AncestorLocator) Name() string { return "ancestor:" + l.Inner + "<" + l.Ancestor }

func (l AncestorLocator) Locate(doc *goquery.Document) *goquery.Selection {
	return doc.Find(l.Inner).Closest(l.Ancestor)
}

// FallbackLocator tries each locator in order and returns the first non-empty match
type FallbackLocator []BlockLocator

func (f FallbackLocator) Name() string { return "fallback" }

func (f FallbackLocator) Locate(doc *goquery.Document) *goquery.Selection {
	for _, l := range f {
		if sel := l.Locate(doc); sel.Length() > 0 {
			return sel
		}
	}
	return doc.Selection.Slice(0, 0)
}

// DefaultLocator goes from full review list items to bare visit-info divs
func DefaultLocator() FallbackLocator {
	return FallbackLocator{
		CSSLocator{Selector: "li.place_apply_pui, li.EjjAW"},
		AncestorLocator{Inner: "div.pui__QKE5Pr", Ancestor: "li"},
		CSSLocator{Selector: "div.pui__QKE5Pr"},
	}
}
