package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"sjsage522/placereviewworker/internal/harvest"
)

const createReviewsSQL = `
CREATE TABLE IF NOT EXISTS place_reviews (
  fingerprint  CHAR(40)      NOT NULL,
  place_name   VARCHAR(255)  NOT NULL,
  visit_date   DATE          NULL,
  visit_count  INT           NULL,
  review_text  TEXT          NOT NULL,
  harvested_at TIMESTAMP     NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (place_name, fingerprint)
) DEFAULT CHARSET=utf8mb4`

const insertReviewsPrefix = "INSERT INTO place_reviews\n  (fingerprint, place_name, visit_date, visit_count, review_text)\nVALUES "

// re-harvesting a review only refreshes its timestamp
const insertReviewsOnDup = " ON DUPLICATE KEY UPDATE\n  harvested_at = CURRENT_TIMESTAMP\n"

// rows per INSERT statement
const mysqlBatch = 500

func valDate(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

// MySQLSink upserts reviews into place_reviews keyed by fingerprint
type MySQLSink struct{ db *sql.DB }

// OpenMySQL connects and makes sure the table exists
func OpenMySQL(ctx context.Context, dsn string) (*MySQLSink, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	s := NewMySQLSink(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func NewMySQLSink(db *sql.DB) *MySQLSink { return &MySQLSink{db: db} }

func (s *MySQLSink) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, createReviewsSQL)
	return err
}

func (s *MySQLSink) Save(ctx context.Context, place string, records []harvest.Record) error {
	for start := 0; start < len(records); start += mysqlBatch {
		end := min(start+mysqlBatch, len(records))
		if err := s.insert(ctx, records[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *MySQLSink) insert(ctx context.Context, rs []harvest.Record) error {
	values := make([]string, 0, len(rs))
	args := make([]any, 0, len(rs)*5)
	for _, r := range rs {
		values = append(values, "(?,?,?,?,?)")
		args = append(args,
			string(r.Fingerprint()),
			r.PlaceName,
			valDate(r.VisitDate),
			valInt(r.VisitCount),
			r.ReviewText,
		)
	}
	_, err := s.db.ExecContext(ctx, insertReviewsPrefix+strings.Join(values, ",")+insertReviewsOnDup, args...)
	return err
}

// Count returns the number of stored reviews for place
func (s *MySQLSink) Count(ctx context.Context, place string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM place_reviews WHERE place_name = ?", place).Scan(&n)
	return n, err
}

func (s *MySQLSink) Close() error { return s.db.Close() }
