// Package utils holds small stateless helpers shared by collectors, the merge
// step and the renderers.
package utils

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	extensionRe  = regexp.MustCompile(`(?i)\s*(?:x|ext\.?)\s*(\d*)\s*$`)
	nonDigitRe   = regexp.MustCompile(`\D`)
	meridiemRe   = regexp.MustCompile(`(?i)(\d)\s*([ap])\.?m\.?`)
)

// IsBlank reports whether s is empty or only whitespace
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// FirstNonBlank returns the first argument that is not blank, trimmed
func FirstNonBlank(values ...string) string {
	for _, v := range values {
		if !IsBlank(v) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// CollapseSpaces trims s and replaces internal whitespace runs with one space
func CollapseSpaces(s string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// PhoneTrim normalizes an upstream phone number. Ten digit numbers are
// rendered as 555-555-5555; an extension is kept only when it is non-zero.
func PhoneTrim(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	ext := ""
	if m := extensionRe.FindStringSubmatchIndex(raw); m != nil {
		digits := raw[m[2]:m[3]]
		if strings.Trim(digits, "0") != "" {
			ext = digits
		}
		raw = raw[:m[0]]
	}

	digits := nonDigitRe.ReplaceAllString(raw, "")
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}

	var phone string
	if len(digits) == 10 {
		phone = digits[0:3] + "-" + digits[3:6] + "-" + digits[6:]
	} else {
		phone = CollapseSpaces(raw)
	}
	if ext != "" {
		phone += " x " + ext
	}
	return phone
}

// NormalizeHours cleans an upstream hours-of-operation value. Blank, "-" and
// any spelling of "closed" become "Closed".
func NormalizeHours(raw string) string {
	v := CollapseSpaces(raw)
	if v == "" || v == "-" || strings.EqualFold(v, "closed") {
		return "Closed"
	}
	v = strings.ReplaceAll(v, " - ", "-")
	return meridiemRe.ReplaceAllStringFunc(v, func(m string) string {
		sub := meridiemRe.FindStringSubmatch(m)
		return sub[1] + strings.ToUpper(sub[2]) + "M"
	})
}

// LowerCamel converts "Primary Care", "primary_care" or "PrimaryCare" into
// "primaryCare".
func LowerCamel(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return ""
	}

	var b strings.Builder
	for i, w := range words {
		runes := []rune(w)
		if i == 0 {
			runes[0] = unicode.ToLower(runes[0])
			if isUpperWord(runes) {
				b.WriteString(strings.ToLower(w))
				continue
			}
		} else {
			runes[0] = unicode.ToUpper(runes[0])
		}
		b.WriteString(string(runes))
	}
	return b.String()
}

func isUpperWord(runes []rune) bool {
	letters := 0
	for _, r := range runes[1:] {
		if unicode.IsLetter(r) {
			letters++
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return letters > 0
}

// NormalizeKey lowercases s and drops everything but letters and digits. It is
// the lookup form used by alias tables.
func NormalizeKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// RoundCoordinate rounds a latitude or longitude to fixed eight decimal
// precision.
func RoundCoordinate(v float64) float64 {
	const scale = 1e8
	return math.Round(v*scale) / scale
}
