package analysis

import (
	"sort"
)

// Keyword is one ranked corpus-wide term
type Keyword struct {
	Rank  int
	Term  string
	Score float64
}

// PlaceKeyword is a term that sets one place apart from the others
type PlaceKeyword struct {
	Place           string
	Term            string
	PlaceScore      float64
	Distinctiveness float64
}

// Document is one review's keyword tokens
type Document struct {
	Place  string
	Tokens []string
}

// KeywordOptions bounds the keyword tables
type KeywordOptions struct {
	GlobalTop      int
	PlaceTop       int
	MinPlaceReview int
}

var DefaultKeywordOptions = KeywordOptions{GlobalTop: 100, PlaceTop: 20, MinPlaceReview: 3}

// KeywordTables fits the vectoriser on every non-empty document and ranks
// terms globally and per place.
func KeywordTables(v *Vectorizer, docs []Document, opts KeywordOptions) ([]Keyword, []PlaceKeyword, error) {
	var kept []Document
	for _, d := range docs {
		if len(d.Tokens) > 0 {
			kept = append(kept, d)
		}
	}
	tokens := make([][]string, len(kept))
	for i, d := range kept {
		tokens[i] = d.Tokens
	}

	rows, err := v.Fit(tokens)
	if err != nil {
		return nil, nil, err
	}
	terms := v.Terms()
	return GlobalKeywords(rows, terms, opts.GlobalTop), PlaceKeywords(rows, kept, terms, opts), nil
}

// GlobalKeywords ranks terms by their summed weight over all rows
func GlobalKeywords(rows []Row, terms []string, top int) []Keyword {
	sums := columnSums(rows, len(terms))
	idx := make([]int, len(terms))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return sums[idx[a]] > sums[idx[b]] })
	if top > 0 && len(idx) > top {
		idx = idx[:top]
	}

	out := make([]Keyword, len(idx))
	for r, i := range idx {
		out[r] = Keyword{Rank: r + 1, Term: terms[i], Score: sums[i]}
	}
	return out
}

// PlaceKeywords scores each term of a place as its summed weight over the
// mean weight per place. Places with too few reviews are skipped.
func PlaceKeywords(rows []Row, docs []Document, terms []string, opts KeywordOptions) []PlaceKeyword {
	byPlace := map[string][]Row{}
	var places []string
	for i, d := range docs {
		if _, ok := byPlace[d.Place]; !ok {
			places = append(places, d.Place)
		}
		byPlace[d.Place] = append(byPlace[d.Place], rows[i])
	}
	total := columnSums(rows, len(terms))
	nPlaces := float64(len(places))

	var out []PlaceKeyword
	for _, place := range places {
		own := byPlace[place]
		if len(own) < opts.MinPlaceReview {
			continue
		}
		scores := columnSums(own, len(terms))

		dist := make([]float64, len(terms))
		idx := make([]int, 0, len(terms))
		for i := range terms {
			if total[i] > 0 {
				dist[i] = scores[i] / (total[i] / nPlaces)
			}
			idx = append(idx, i)
		}
		sort.SliceStable(idx, func(a, b int) bool { return dist[idx[a]] > dist[idx[b]] })
		if opts.PlaceTop > 0 && len(idx) > opts.PlaceTop {
			idx = idx[:opts.PlaceTop]
		}

		for _, i := range idx {
			if scores[i] <= 0 {
				continue
			}
			out = append(out, PlaceKeyword{Place: place, Term: terms[i], PlaceScore: scores[i], Distinctiveness: dist[i]})
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Place != out[b].Place {
			return out[a].Place < out[b].Place
		}
		return out[a].Distinctiveness > out[b].Distinctiveness
	})
	return out
}
