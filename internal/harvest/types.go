package harvest

// Candidate is a parsed review block before dedup
type Candidate struct {
	VisitDate  string
	VisitCount *int
	ReviewText string
}

// Record is a deduplicated review ready to persist
type Record struct {
	PlaceName  string `json:"place_name"`
	VisitDate  string `json:"visit_date"`
	VisitCount *int   `json:"visit_count"`
	ReviewText string `json:"review_text"`
}

// Fingerprint recomputes the record's identity
func (r Record) Fingerprint() Fingerprint {
	id, _, _, _ := MakeFingerprint(r.VisitDate, r.VisitCount, r.ReviewText)
	return id
}

// Dedup keeps the first record of every fingerprint, preserving order
func Dedup(records []Record) []Record {
	seen := NewSeenSet()
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if seen.Add(r.Fingerprint()) {
			out = append(out, r)
		}
	}
	return out
}
