package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Vectorizer builds smoothed, L2-normalised TF-IDF rows over uni- and bi-grams
type Vectorizer struct {
	MinDF       int
	MaxDF       float64
	MaxFeatures int
	MaxN        int

	vocab map[string]int
	terms []string
	idf   []float64
}

func NewVectorizer() *Vectorizer {
	return &Vectorizer{MinDF: 2, MaxDF: 0.9, MaxFeatures: 1000, MaxN: 2}
}

// Row is a sparse document vector keyed by feature index
type Row map[int]float64

// Terms returns the fitted features in index order
func (v *Vectorizer) Terms() []string {
	return v.terms
}

func (v *Vectorizer) ngrams(tokens []string) []string {
	out := make([]string, 0, len(tokens)*v.MaxN)
	for n := 1; n <= v.MaxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.ToLower(strings.Join(tokens[i:i+n], " ")))
		}
	}
	return out
}

// Fit learns the vocabulary and idf weights of docs and returns their rows
func (v *Vectorizer) Fit(docs [][]string) ([]Row, error) {
	df := map[string]int{}
	tf := map[string]int{}
	for _, doc := range docs {
		seen := map[string]struct{}{}
		for _, g := range v.ngrams(doc) {
			tf[g]++
			if _, ok := seen[g]; !ok {
				seen[g] = struct{}{}
				df[g]++
			}
		}
	}

	maxDocs := v.MaxDF * float64(len(docs))
	if maxDocs < float64(v.MinDF) {
		return nil, fmt.Errorf("max_df %.2f keeps fewer documents than min_df %d with %d documents", v.MaxDF, v.MinDF, len(docs))
	}

	var kept []string
	for term, n := range df {
		if n >= v.MinDF && float64(n) <= maxDocs {
			kept = append(kept, term)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("no terms remain after document frequency pruning")
	}
	sort.Strings(kept)

	if v.MaxFeatures > 0 && len(kept) > v.MaxFeatures {
		sort.SliceStable(kept, func(i, j int) bool { return tf[kept[i]] > tf[kept[j]] })
		kept = kept[:v.MaxFeatures]
		sort.Strings(kept)
	}

	n := float64(len(docs))
	v.terms = kept
	v.vocab = make(map[string]int, len(kept))
	v.idf = make([]float64, len(kept))
	for i, term := range kept {
		v.vocab[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return v.Transform(docs), nil
}

// Transform maps docs onto the fitted vocabulary. Unknown terms are ignored.
func (v *Vectorizer) Transform(docs [][]string) []Row {
	rows := make([]Row, len(docs))
	for d, doc := range docs {
		row := Row{}
		for _, g := range v.ngrams(doc) {
			if i, ok := v.vocab[g]; ok {
				row[i]++
			}
		}
		var norm float64
		for i, c := range row {
			row[i] = c * v.idf[i]
			norm += row[i] * row[i]
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for i := range row {
				row[i] /= norm
			}
		}
		rows[d] = row
	}
	return rows
}

// columnSums adds up every row per feature
func columnSums(rows []Row, width int) []float64 {
	sums := make([]float64, width)
	for _, r := range rows {
		for i, x := range r {
			sums[i] += x
		}
	}
	return sums
}
