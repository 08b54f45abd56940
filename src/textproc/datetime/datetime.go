// Package datetime normalizes spoken date/time phrases in final
// transcripts (spec.md §4.8, "Date/Time normalization"), grounded on
// original_source/src/text_processor.py's DateAndTimeOptimizer.
package datetime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	deOneUhr   = regexp.MustCompile(`(?i)(^|\W)(ein Uhr)($|\W)`)
	deTimeRe   = regexp.MustCompile(`(?i)(^|\W)(\d{1,2} Uhr \d{1,2})($|\W)`)
	deDateRe   = regexp.MustCompile(`(\d{1,2})\.\s(\d{1,2})\.(\s\d{4})?`)
	enOneTime  = regexp.MustCompile(`(?i)(^|\W)(one (a\.m\.|am|p\.m\.|pm|o'clock|oclock))($|\W)`)
	enTimeRe   = regexp.MustCompile(`(?i)(^|\W)(\d{1,2} \d{1,2}\s?(a\.m\.|am|p\.m\.|pm|o'clock|oclock))($|\W)`)
)

// SupportsLanguage reports whether Optimize has rules for languageShort.
// Mirrors DateAndTimeOptimizer.__init__'s supports_language gate, which
// in original_source is hard-limited to English and German.
func SupportsLanguage(languageShort string) bool {
	switch strings.ToLower(languageShort) {
	case "en", "de":
		return true
	default:
		return false
	}
}

// Optimize rewrites date/time phrases in text for the given short
// language code. Unsupported languages return text unchanged.
func Optimize(text, languageShort string) string {
	switch strings.ToLower(languageShort) {
	case "de":
		text = optimizeTimeDE(text)
		text = optimizeDateDESlashDot(text)
		return text
	case "en":
		text = optimizeTimeEN(text)
		return text
	default:
		return text
	}
}

// optimizeTimeDE rewrites "<h> Uhr <m>" to "<h>:<mm> Uhr", first folding
// the standalone "ein Uhr" to "1 Uhr" as the original does.
func optimizeTimeDE(text string) string {
	text = deOneUhr.ReplaceAllString(text, "${1}1 Uhr${3}")
	return replaceFirstMatchRecursive(text, deTimeRe, func(match string) string {
		parts := strings.Fields(match)
		hour, herr := strconv.Atoi(parts[0])
		minutes, merr := strconv.Atoi(parts[2])
		if herr != nil || merr != nil || hour > 24 || minutes >= 60 {
			return match
		}
		return fmt.Sprintf("%d:%02d Uhr", hour, minutes)
	})
}

// optimizeTimeEN rewrites "<h> <m> (am|pm|o'clock)" to "<h>:<mm> <ind>".
func optimizeTimeEN(text string) string {
	text = enOneTime.ReplaceAllString(text, "${1}1 ${3}${4}")
	return replaceFirstMatchRecursive(text, enTimeRe, func(match string) string {
		parts := strings.Fields(match)
		if len(parts) < 3 {
			return match
		}
		hour, herr := strconv.Atoi(parts[0])
		minutes, merr := strconv.Atoi(parts[1])
		ind := strings.Join(parts[2:], " ")
		if herr != nil || merr != nil || hour > 24 || minutes >= 60 {
			return match
		}
		return fmt.Sprintf("%d:%02d %s", hour, minutes, ind)
	})
}

// optimizeDateDESlashDot rewrites "D. M." or "D. M. YYYY" to
// "DD.MM." / "DD.MM.YYYY" when day<=31 and month<=12.
func optimizeDateDESlashDot(text string) string {
	return deDateRe.ReplaceAllStringFunc(text, func(match string) string {
		m := deDateRe.FindStringSubmatch(match)
		day, derr := strconv.Atoi(m[1])
		month, merr := strconv.Atoi(m[2])
		if derr != nil || merr != nil || day > 31 || month > 12 {
			return match
		}
		year := strings.TrimSpace(m[3])
		if year != "" {
			return fmt.Sprintf("%02d.%02d.%s", day, month, year)
		}
		return fmt.Sprintf("%02d.%02d.", day, month)
	})
}

// replaceFirstMatchRecursive applies fn to each match of re in text,
// left to right, non-overlapping -- the Go equivalent of the original's
// find-first-then-recurse-on-remainder pattern.
func replaceFirstMatchRecursive(text string, re *regexp.Regexp, fn func(string) string) string {
	return re.ReplaceAllStringFunc(text, func(match string) string {
		sub := re.FindStringSubmatch(match)
		inner := sub[2]
		return strings.Replace(match, inner, fn(inner), 1)
	})
}
