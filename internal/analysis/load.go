// Package analysis turns harvested review files into keyword and sentiment tables.
package analysis

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"sjsage522/placereviewworker/helpers"
	"sjsage522/placereviewworker/pkg/errors"
)

// ReviewFilePattern matches the files written by the CSV sink
const ReviewFilePattern = "*_new_reviews*.csv"

var (
	digitRun   = regexp.MustCompile(`\d+`)
	dateLayout = []string{"2006-01-02", "2006-1-2", "2006.01.02", "2006.1.2", "2006/01/02", "2006/1/2", "20060102", time.RFC3339}
)

// column aliases, lower-cased
var (
	placeColumns = []string{"place_name"}
	textColumns  = []string{"review_text", "본문"}
	dateColumns  = []string{"visit_date", "방문일"}
	countColumns = []string{"visit_count", "방문횟수"}
)

// Review is one cleaned review. Number is its 1-based position after dedup.
type Review struct {
	Number int
	Place  string
	Date   string
	Count  *int
	Text   string
}

func (r Review) key() string {
	count := ""
	if r.Count != nil {
		count = strconv.Itoa(*r.Count)
	}
	return r.Place + "\x00" + r.Text + "\x00" + r.Date + "\x00" + count
}

// Loader reads every review file of a directory
type Loader struct {
	Dir     string
	Charset string
	// Workers bounds how many files are parsed at once
	Workers int
}

func NewLoader(dir, charset string) *Loader {
	return &Loader{Dir: dir, Charset: charset, Workers: 4}
}

// Load unions every review file in name order, cleans the rows and drops
// duplicates of (place, text, date, count).
func (l *Loader) Load(ctx context.Context) ([]Review, error) {
	paths, err := filepath.Glob(filepath.Join(l.Dir, ReviewFilePattern))
	if err != nil {
		return nil, errors.NewValidation("analysis", "bad input pattern: "+err.Error())
	}
	if len(paths) == 0 {
		return nil, errors.NewValidation("analysis", fmt.Sprintf("no %s files in %s", ReviewFilePattern, l.Dir))
	}
	sort.Strings(paths)

	perFile := make([][]Review, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	if l.Workers > 0 {
		g.SetLimit(l.Workers)
	}
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rows, err := l.readFile(path)
			if err != nil {
				return err
			}
			perFile[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Review
	for _, rows := range perFile {
		all = append(all, rows...)
	}
	return Dedup(all), nil
}

func (l *Loader) readFile(path string) ([]Review, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewStorage(path, "read review file", err)
	}
	data, err := helpers.DecodeUTF8(raw, l.Charset)
	if err != nil {
		return nil, errors.NewParsing(path, "decode review file", err)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.NewParsing(path, "read csv", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	cols := map[string]int{}
	for i, h := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	textCol := column(cols, textColumns)
	if textCol < 0 {
		return nil, errors.NewValidation(path, "no review text column")
	}
	placeCol := column(cols, placeColumns)
	dateCol := column(cols, dateColumns)
	countCol := column(cols, countColumns)
	stemPlace := PlaceFromFileName(path)

	out := make([]Review, 0, len(records)-1)
	for _, rec := range records[1:] {
		rv := Review{
			Place: stemPlace,
			Text:  CleanText(field(rec, textCol)),
			Date:  NormalizeDate(field(rec, dateCol)),
			Count: NormalizeCount(field(rec, countCol)),
		}
		if v := strings.TrimSpace(field(rec, placeCol)); placeCol >= 0 && v != "" {
			rv.Place = v
		}
		out = append(out, rv)
	}
	return out, nil
}

func column(cols map[string]int, names []string) int {
	for _, n := range names {
		if i, ok := cols[n]; ok {
			return i
		}
	}
	return -1
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

// PlaceFromFileName recovers the place name from "<place>_new_reviews*.csv"
func PlaceFromFileName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.Index(stem, "_new_reviews"); i >= 0 {
		return stem[:i]
	}
	return stem
}

// CleanText applies NFKC and collapses whitespace
func CleanText(s string) string {
	s = norm.NFKC.String(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeDate renders a parseable date as YYYY-MM-DD and anything else as ""
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayout {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// NormalizeCount reads the first digit run, nil when there is none
func NormalizeCount(s string) *int {
	m := digitRun.FindString(s)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &n
}

// Dedup keeps the first of every (place, text, date, count) and numbers the survivors
func Dedup(in []Review) []Review {
	seen := make(map[string]struct{}, len(in))
	out := make([]Review, 0, len(in))
	for _, r := range in {
		k := r.key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		r.Number = len(out) + 1
		out = append(out, r)
	}
	return out
}
