package helpers

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeUTF8 returns data as UTF-8 text.
// Valid UTF-8 input only loses its byte order mark; anything else is decoded
// with the sniffed encoding, falling back to the named charset.
func DecodeUTF8(data []byte, fallback string) ([]byte, error) {
	if utf8.Valid(data) {
		return bytes.TrimPrefix(data, utf8BOM), nil
	}

	encoding, name, _ := charset.DetermineEncoding(data, "text/csv; charset="+fallback)
	decoded, err := io.ReadAll(encoding.NewDecoder().Reader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s content: %w", name, err)
	}
	return bytes.TrimPrefix(decoded, utf8BOM), nil
}
