package numbers

import "strings"

// splitCompoundWords walks each whitespace-separated token of text and,
// for tokens that look like one-word German numbers (e.g.
// "einhundertfünfzig"), greedily segments them against the vocabulary
// sorted longest-match-first, inserting spaces between the segments.
// This mirrors german.py's split_number_word, simplified to the common
// case: greedy prefix matching with "und" treated as a normal segment.
func splitCompoundWords(text string, vocab vocabulary) string {
	fields := strings.Fields(text)
	for i, f := range fields {
		lower := strings.ToLower(f)
		trailing := ""
		for len(lower) > 0 {
			last := lower[len(lower)-1]
			if last == '.' || last == ',' || last == '!' || last == '?' {
				trailing = string(last) + trailing
				lower = lower[:len(lower)-1]
				continue
			}
			break
		}
		if len(lower) < 6 || vocab.isNumberWord(lower) {
			continue // too short to be a compound, or already a plain word
		}
		if segments, ok := segmentWord(lower, vocab.sortedVocab); ok {
			fields[i] = strings.Join(segments, " ") + trailing
		}
	}
	return strings.Join(fields, " ")
}

// segmentWord greedily matches the longest vocabulary word at the
// current position, repeating until the whole word is consumed. Returns
// ok=false if any leftover cannot be matched (so the original word is
// left untouched rather than mangled).
func segmentWord(word string, sortedVocab []string) ([]string, bool) {
	var segments []string
	remaining := word
	for len(remaining) > 0 {
		matched := false
		for _, v := range sortedVocab {
			if strings.HasPrefix(remaining, v) {
				segments = append(segments, v)
				remaining = remaining[len(v):]
				matched = true
				break
			}
		}
		if !matched {
			if strings.HasPrefix(remaining, "und") {
				segments = append(segments, "und")
				remaining = remaining[3:]
				continue
			}
			return nil, false
		}
	}
	if len(segments) < 2 {
		return nil, false
	}
	return segments, true
}
