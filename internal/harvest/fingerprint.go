package harvest

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
)

var zeroWidth = regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}]`)

// Fingerprint identifies a review by its content; the platform exposes no review id.
type Fingerprint string

// NormalizeText strips zero-width characters and collapses whitespace
func NormalizeText(s string) string {
	s = zeroWidth.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeDate trims an ISO date
func NormalizeDate(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeCount renders an optional visit count, "" when absent
func NormalizeCount(c *int) string {
	if c == nil {
		return ""
	}
	return strconv.Itoa(*c)
}

// MakeFingerprint hashes the normalized "date|count|text" key with SHA-1 and
// returns the normalized parts alongside the identifier.
func MakeFingerprint(visitDate string, visitCount *int, reviewText string) (id Fingerprint, date, count, text string) {
	date = NormalizeDate(visitDate)
	count = NormalizeCount(visitCount)
	text = NormalizeText(reviewText)

	sum := sha1.Sum([]byte(date + "|" + count + "|" + text))
	return Fingerprint(hex.EncodeToString(sum[:])), date, count, text
}

// SeenSet holds the fingerprints of one harvest run. It only grows.
type SeenSet struct {
	ids map[Fingerprint]struct{}
}

func NewSeenSet() *SeenSet {
	return &SeenSet{ids: make(map[Fingerprint]struct{})}
}

// Add records id and reports whether it was new
func (s *SeenSet) Add(id Fingerprint) bool {
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *SeenSet) Has(id Fingerprint) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *SeenSet) Len() int {
	return len(s.ids)
}
