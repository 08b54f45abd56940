// Package numbers converts number words to digits in running text
// (spec.md §4.8, "Words -> digits"), grounded on
// original_source/src/text_to_num/parsers.py and
// original_source/src/text_to_num/lang/{base,english,german}.py
// (Allo-Media's text_to_num, MIT licensed).
package numbers

import "strings"

// vocabulary is the table-driven word list for one language, mirroring
// the Language base class's MULTIPLIERS/UNITS/STENS/MTENS/HUNDRED tables.
type vocabulary struct {
	units      map[string]int64 // one..nine
	teens      map[string]int64 // ten..nineteen / STENS
	tens       map[string]int64 // twenty..ninety / MTENS
	hundred    map[string]int64 // "hundred"/"hundert" -> 100
	multiplier map[string]int64 // thousand, million, ...
	zero       map[string]bool
	and        string // "and" / "und": connective word between groups
	neverAlone map[string]bool

	// agglutinative indicates numbers may appear as a single compound
	// word (German) requiring split_number_word-style segmentation
	// before parsing.
	agglutinative bool
	// sortedVocab is every vocabulary word, longest first, used for
	// greedy left-to-right segmentation of compound words.
	sortedVocab []string
}

func (v vocabulary) isNumberWord(w string) bool {
	w = strings.ToLower(w)
	if _, ok := v.units[w]; ok {
		return true
	}
	if _, ok := v.teens[w]; ok {
		return true
	}
	if _, ok := v.tens[w]; ok {
		return true
	}
	if _, ok := v.hundred[w]; ok {
		return true
	}
	if _, ok := v.multiplier[w]; ok {
		return true
	}
	if v.zero[w] {
		return true
	}
	return w == v.and
}

func buildSorted(maps ...map[string]int64) []string {
	var words []string
	for _, m := range maps {
		for w := range m {
			words = append(words, w)
		}
	}
	// Longest-match-first, grounded on german.py's ALL_WORDS_SORTED_REVERSE.
	for i := 0; i < len(words); i++ {
		for j := i + 1; j < len(words); j++ {
			if len(words[j]) > len(words[i]) {
				words[i], words[j] = words[j], words[i]
			}
		}
	}
	return words
}

var english = vocabulary{
	units: map[string]int64{
		"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
		"six": 6, "seven": 7, "eight": 8, "nine": 9,
	},
	teens: map[string]int64{
		"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
		"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
	},
	tens: map[string]int64{
		"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
		"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
	},
	hundred:    map[string]int64{"hundred": 100},
	multiplier: map[string]int64{"thousand": 1_000, "million": 1_000_000, "billion": 1_000_000_000},
	zero:       map[string]bool{"zero": true, "o": true},
	and:        "and",
	neverAlone: map[string]bool{"one": true},
}

var german = vocabulary{
	units: map[string]int64{
		"ein": 1, "eine": 1, "eins": 1, "zwei": 2, "drei": 3, "vier": 4, "fünf": 5,
		"sechs": 6, "sieben": 7, "acht": 8, "neun": 9,
	},
	teens: map[string]int64{
		"zehn": 10, "elf": 11, "zwölf": 12, "dreizehn": 13, "vierzehn": 14,
		"fünfzehn": 15, "sechzehn": 16, "siebzehn": 17, "achtzehn": 18, "neunzehn": 19,
	},
	tens: map[string]int64{
		"zwanzig": 20, "dreißig": 30, "vierzig": 40, "fünfzig": 50,
		"sechzig": 60, "siebzig": 70, "achtzig": 80, "neunzig": 90,
	},
	hundred:       map[string]int64{"hundert": 100},
	multiplier:    map[string]int64{"tausend": 1_000, "million": 1_000_000, "millionen": 1_000_000, "milliarde": 1_000_000_000, "milliarden": 1_000_000_000},
	zero:          map[string]bool{"null": true},
	and:           "und",
	neverAlone:    map[string]bool{"ein": true, "eine": true},
	agglutinative: true,
}

func init() {
	english.sortedVocab = buildSorted(english.units, english.teens, english.tens, english.hundred, english.multiplier)
	german.sortedVocab = buildSorted(german.units, german.teens, german.tens, german.hundred, german.multiplier)
}

// vocabFor returns the vocabulary table for a short language code, and
// whether the language is supported at all.
func vocabFor(languageShort string) (vocabulary, bool) {
	switch strings.ToLower(languageShort) {
	case "en":
		return english, true
	case "de":
		return german, true
	default:
		return vocabulary{}, false
	}
}

// SupportsLanguage reports whether Convert has a vocabulary table for
// languageShort (spec.md §4.8 only specifies behavior for supported
// languages; original_source gates this the same way via `LANG` membership).
func SupportsLanguage(languageShort string) bool {
	_, ok := vocabFor(languageShort)
	return ok
}
