package util

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	reSpaces   = regexp.MustCompile(`\s+`)
	reFileName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

func NormalizeSpaces(input string) string {
	s := strings.ReplaceAll(input, "\u00A0", " ")
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

func IsBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// TrimTrailingBlank drops empty cells from the end of a row.
func TrimTrailingBlank(row []string) []string {
	n := len(row)
	for n > 0 && strings.TrimSpace(row[n-1]) == "" {
		n--
	}
	return row[:n]
}

func ContainsAny(haystack string, needles []string) bool {
	h := strings.ToLower(haystack)
	for _, n := range needles {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" && strings.Contains(h, n) {
			return true
		}
	}
	return false
}

func SanitizeFileName(input string) string {
	out := strings.Trim(reFileName.ReplaceAllString(input, "_"), "_")
	if len(out) > 120 {
		out = out[:120]
	}
	if out == "" {
		return "report"
	}
	return out
}

// ReplaceExt swaps the extension of path, adding one if path has none.
func ReplaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func IntPtr(v int) *int { return &v }

func StringPtr(v string) *string { return &v }
