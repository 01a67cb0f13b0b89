package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"sjsage522/placereviewworker/helpers"
	"sjsage522/placereviewworker/internal/harvest"
	"sjsage522/placereviewworker/logger"
)

// CSVSink writes <place>_new_reviews.csv files, UTF-8 with a byte order mark
type CSVSink struct {
	Dir string
}

func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{Dir: dir}
}

// Path returns the file a place's reviews are written to
func (s *CSVSink) Path(place string) string {
	return filepath.Join(s.Dir, helpers.SafeFileName(place)+"_new_reviews.csv")
}

func (s *CSVSink) Save(ctx context.Context, place string, records []harvest.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	path := s.Path(place)
	if err := WriteCSV(path, Header, len(records), func(i int) []string { return row(records[i]) }); err != nil {
		return err
	}
	logger.ForEntity(place).Info().Str("path", path).Int("rows", len(records)).Msg("reviews saved")
	return nil
}

// WriteCSV writes header and n rows to path as UTF-8 with a byte order mark
func WriteCSV(path string, header []string, n int, rowAt func(int) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := w.Write(rowAt(i)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
