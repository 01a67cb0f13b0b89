package analysis

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"sjsage522/placereviewworker/logger"
	"sjsage522/placereviewworker/pkg/errors"
	"sjsage522/placereviewworker/services/sink"
)

// Pipeline loads review files, tokenises them and writes the keyword and
// sentiment tables into OutputDir.
type Pipeline struct {
	Loader     *Loader
	Lexicon    *Lexicon
	Vectorizer *Vectorizer
	Keywords   KeywordOptions
	OutputDir  string

	now func() time.Time
}

func NewPipeline(loader *Loader, lexicon *Lexicon, outputDir string) *Pipeline {
	return &Pipeline{
		Loader:     loader,
		Lexicon:    lexicon,
		Vectorizer: NewVectorizer(),
		Keywords:   DefaultKeywordOptions,
		OutputDir:  outputDir,
		now:        time.Now,
	}
}

// Report summarises one pipeline run
type Report struct {
	Reviews    int
	Global     []Keyword
	Places     []PlaceKeyword
	Scored     []ScoredReview
	ByPlace    []PlaceSentiment
	Files      []string
	KeywordErr error
}

// Counts returns how many reviews got each label
func (r Report) Counts() map[string]int {
	out := map[string]int{Positive: 0, Negative: 0, Neutral: 0}
	for _, s := range r.Scored {
		out[s.Label]++
	}
	return out
}

type tokenized struct {
	Review
	keyword   []string
	sentiment []string
}

func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	log := logger.ForComponent("analysis")

	reviews, err := p.Loader.Load(ctx)
	if err != nil {
		return Report{}, err
	}
	if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
		return Report{}, errors.NewStorage("analysis", "create output dir", err)
	}

	docs := make([]tokenized, len(reviews))
	for i, r := range reviews {
		raw := Tokenize(r.Text)
		docs[i] = tokenized{Review: r, keyword: KeywordTokens(raw), sentiment: SentimentTokens(raw)}
	}

	rep := Report{Reviews: len(reviews)}
	stamp := p.now().Format("20060102_150405")
	write := func(name string, header []string, n int, rowAt func(int) []string) error {
		path := filepath.Join(p.OutputDir, fmt.Sprintf(name, stamp))
		if err := sink.WriteCSV(path, header, n, rowAt); err != nil {
			return errors.NewStorage("analysis", "write "+filepath.Base(path), err)
		}
		rep.Files = append(rep.Files, path)
		return nil
	}

	if err := p.writeTokens(docs, write); err != nil {
		return rep, err
	}

	kwDocs := make([]Document, len(docs))
	for i, d := range docs {
		kwDocs[i] = Document{Place: d.Place, Tokens: d.keyword}
	}
	rep.Global, rep.Places, rep.KeywordErr = KeywordTables(p.Vectorizer, kwDocs, p.Keywords)
	if rep.KeywordErr != nil {
		log.Warn().Err(rep.KeywordErr).Int("reviews", len(reviews)).Msg("keyword tables skipped")
	} else if err := p.writeKeywords(rep, write); err != nil {
		return rep, err
	}

	rep.Scored = make([]ScoredReview, len(docs))
	for i, d := range docs {
		rep.Scored[i] = ScoredReview{Review: d.Review, Sentiment: p.Lexicon.Score(d.sentiment)}
	}
	rep.ByPlace = Aggregate(rep.Scored)
	if err := p.writeSentiment(rep, write); err != nil {
		return rep, err
	}

	counts := rep.Counts()
	log.Info().
		Int("reviews", rep.Reviews).
		Int("keywords", len(rep.Global)).
		Int("positive", counts[Positive]).
		Int("negative", counts[Negative]).
		Int("neutral", counts[Neutral]).
		Msg("analysis complete")
	return rep, nil
}

type writeFunc func(name string, header []string, n int, rowAt func(int) []string) error

func (p *Pipeline) writeTokens(docs []tokenized, write writeFunc) error {
	header := []string{"place_name", "review_number", "visit_date", "visit_count", "tokens_join"}
	tokenRow := func(d tokenized, tokens []string) []string {
		return []string{d.Place, strconv.Itoa(d.Number), d.Date, formatCount(d.Count), strings.Join(tokens, " ")}
	}

	if err := write("reviews_tokens_tfidf_%s.csv", header, len(docs), func(i int) []string {
		return tokenRow(docs[i], docs[i].keyword)
	}); err != nil {
		return err
	}
	if err := write("reviews_tokens_sentiment_%s.csv", header, len(docs), func(i int) []string {
		return tokenRow(docs[i], docs[i].sentiment)
	}); err != nil {
		return err
	}

	var long [][]string
	for _, d := range docs {
		for _, t := range d.keyword {
			long = append(long, []string{d.Place, strconv.Itoa(d.Number), d.Date, t})
		}
	}
	return write("reviews_tokens_long_%s.csv", []string{"place_name", "review_number", "visit_date", "token"}, len(long), func(i int) []string {
		return long[i]
	})
}

func (p *Pipeline) writeKeywords(rep Report, write writeFunc) error {
	if err := write("global_keywords_%s.csv", []string{"keyword", "tfidf_score", "rank", "analysis_type"}, len(rep.Global), func(i int) []string {
		k := rep.Global[i]
		return []string{k.Term, formatFloat(k.Score), strconv.Itoa(k.Rank), "global_tfidf"}
	}); err != nil {
		return err
	}
	return write("place_keywords_%s.csv", []string{"place_name", "keyword", "place_tfidf", "distinctiveness", "analysis_type"}, len(rep.Places), func(i int) []string {
		k := rep.Places[i]
		return []string{k.Place, k.Term, formatFloat(k.PlaceScore), formatFloat(k.Distinctiveness), "place_distinctive"}
	})
}

func (p *Pipeline) writeSentiment(rep Report, write writeFunc) error {
	header := []string{"place_name", "review_number", "sentiment", "positive_score", "negative_score", "sentiment_score", "matched_positive_words", "matched_negative_words"}
	if err := write("sentiment_by_review_%s.csv", header, len(rep.Scored), func(i int) []string {
		s := rep.Scored[i]
		return []string{
			s.Place, strconv.Itoa(s.Number), s.Label,
			formatFloat(round(s.Pos, 2)), formatFloat(round(s.Neg, 2)), formatFloat(round(s.Score(), 2)),
			strings.Join(s.MatchedPos, ", "), strings.Join(s.MatchedNeg, ", "),
		}
	}); err != nil {
		return err
	}

	header = []string{"place_name", "avg_sentiment_score", "sentiment_std", "review_count", "total_positive_score", "total_negative_score", "all_positive_keywords", "all_negative_keywords"}
	if err := write("sentiment_by_place_%s.csv", header, len(rep.ByPlace), func(i int) []string {
		ps := rep.ByPlace[i]
		return []string{
			ps.Place, formatFloat(round(ps.Mean, 3)), formatFloat(round(ps.Std, 3)), strconv.Itoa(ps.Count),
			formatFloat(round(ps.TotalPos, 3)), formatFloat(round(ps.TotalNeg, 3)),
			strings.Join(ps.PositiveWord, ", "), strings.Join(ps.NegativeWord, ", "),
		}
	}); err != nil {
		return err
	}

	words := MatchedWords(rep.Scored)
	return write("place_word_long_%s.csv", []string{"place_name", "review_number", "word_info", "words"}, len(words), func(i int) []string {
		w := words[i]
		return []string{w.Place, strconv.Itoa(w.Number), w.Polarity, w.Word}
	})
}

// MatchedWord is one sentiment-bearing word of one review
type MatchedWord struct {
	Place    string
	Number   int
	Polarity string
	Word     string
}

// MatchedWords lists every matched word once per review and polarity
func MatchedWords(scored []ScoredReview) []MatchedWord {
	seen := map[MatchedWord]struct{}{}
	var out []MatchedWord
	add := func(w MatchedWord) {
		if _, ok := seen[w]; ok {
			return
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	for _, s := range scored {
		for _, w := range s.MatchedPos {
			add(MatchedWord{Place: s.Place, Number: s.Number, Polarity: Positive, Word: w})
		}
		for _, w := range s.MatchedNeg {
			add(MatchedWord{Place: s.Place, Number: s.Number, Polarity: Negative, Word: w})
		}
	}
	return out
}

func formatFloat(x float64) string {
	if math.IsNaN(x) {
		return ""
	}
	return strconv.FormatFloat(x, 'f', -1, 64)
}

func formatCount(c *int) string {
	if c == nil {
		return ""
	}
	return strconv.Itoa(*c)
}
