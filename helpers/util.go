package helpers

import (
	"errors"
	"regexp"
	"strings"
)

var (
	unsafeFileChars = regexp.MustCompile(`[\\/:*?"<>|]+`)
	slugSpaces      = regexp.MustCompile(`\s+`)
)

func GetSplitPart(target string, separate string, index int) (string, error) {
	parts := strings.Split(target, separate)
	if index >= len(parts) {
		return "", errors.New("index out of range")
	}
	return parts[index], nil
}

// SafeFileName replaces characters that are illegal in file names with '_'
func SafeFileName(name string) string {
	return unsafeFileChars.ReplaceAllString(strings.TrimSpace(name), "_")
}

// Slugify builds a cache/stream friendly key from a place name
func Slugify(name string) string {
	s := strings.ToLower(SafeFileName(name))
	return slugSpaces.ReplaceAllString(s, "-")
}
