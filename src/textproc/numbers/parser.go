package numbers

import (
	"strconv"
	"strings"
)

// groupAccumulator implements the streaming value-parser rule from
// parsers.py: "a multiplier applies to the current group if it has a
// value, else to the running total". This covers both English-style
// word-per-token numbers and German-style numbers once they've been
// segmented into words by splitCompoundWords (see german.go).
type groupAccumulator struct {
	total int64
	group int64
	seen  bool
}

func (a *groupAccumulator) push(v vocabulary, word string) bool {
	word = strings.ToLower(word)
	switch {
	case v.zero[word]:
		a.seen = true
		return true
	case word == v.and:
		if a.seen {
			return true
		}
		return false
	}
	if n, ok := v.units[word]; ok {
		a.group += n
		a.seen = true
		return true
	}
	if n, ok := v.teens[word]; ok {
		a.group += n
		a.seen = true
		return true
	}
	if n, ok := v.tens[word]; ok {
		a.group += n
		a.seen = true
		return true
	}
	if n, ok := v.hundred[word]; ok {
		if a.group > 0 {
			a.group *= n
		} else {
			a.group = n
		}
		a.seen = true
		return true
	}
	if n, ok := v.multiplier[word]; ok {
		if a.group > 0 {
			a.total += a.group * n
			a.group = 0
		} else if a.total > 0 {
			a.total *= n
		} else {
			a.total = n
		}
		a.seen = true
		return true
	}
	return false
}

func (a *groupAccumulator) value() int64 {
	return a.total + a.group
}

func (a *groupAccumulator) reset() {
	*a = groupAccumulator{}
}

// Convert scans text for runs of number words in the given short
// language code and replaces each run with its digit value, the way
// TextToNumberProcessor.process wraps alpha2digit. Unsupported languages
// and empty input are returned unchanged (mirrors the original's
// pass-through behavior).
func Convert(text, languageShort string) string {
	if text == "" {
		return text
	}
	vocab, ok := vocabFor(languageShort)
	if !ok {
		return text
	}
	if vocab.agglutinative {
		text = splitCompoundWords(text, vocab)
	}

	words := splitKeepingSeparators(text)
	var out strings.Builder
	var run []int // indices into words that are number tokens
	flushRun := func(upTo int) {
		if len(run) == 0 {
			return
		}
		// A run may have speculatively absorbed the whitespace that
		// follows its last number word, kept only so a failed run can
		// still re-emit the original text verbatim. That trailing
		// separator belongs to whatever follows the run, not to the
		// number itself, so it's held out of the value/fallback below
		// and re-emitted after.
		trailingSep := ""
		if strings.TrimSpace(words[run[len(run)-1]]) == "" {
			trailingSep = words[run[len(run)-1]]
			run = run[:len(run)-1]
		}

		acc := groupAccumulator{}
		for _, idx := range run {
			acc.push(vocab, strings.Trim(words[idx], ".,!?;:"))
		}
		single := len(run) == 1
		word := strings.ToLower(strings.Trim(words[run[0]], ".,!?;:"))
		if single && (vocab.neverAlone[word] || word == vocab.and) {
			for _, idx := range run {
				out.WriteString(words[idx])
			}
		} else if acc.seen {
			out.WriteString(strconv.FormatInt(acc.value(), 10))
		} else {
			for _, idx := range run {
				out.WriteString(words[idx])
			}
		}
		out.WriteString(trailingSep)
		run = nil
	}

	for i, tok := range words {
		if strings.TrimSpace(tok) == "" {
			// whitespace between number words keeps the run open so
			// flushRun can re-emit original spacing on a failed run.
			if len(run) > 0 {
				run = append(run, i)
				continue
			}
			out.WriteString(tok)
			continue
		}
		trimmed := strings.Trim(tok, ".,!?;:")
		if trimmed != "" && vocab.isNumberWord(trimmed) {
			run = append(run, i)
			continue
		}
		flushRun(i)
		out.WriteString(tok)
	}
	flushRun(len(words))
	return out.String()
}

// splitKeepingSeparators splits text into word and whitespace tokens,
// alternating, so re-joining tokens reproduces the original spacing.
func splitKeepingSeparators(text string) []string {
	var tokens []string
	var cur strings.Builder
	curIsSpace := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		isSpace := r == ' ' || r == '\t' || r == '\n'
		if cur.Len() > 0 && isSpace != curIsSpace {
			flush()
		}
		curIsSpace = isSpace
		cur.WriteRune(r)
	}
	flush()
	return tokens
}
