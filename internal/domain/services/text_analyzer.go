// Package services holds the graph service's pure domain logic: text
// extraction and graph analysis.
package services

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Mention types.
const (
	MentionEntity  = "entity"
	MentionConcept = "concept"
)

// Mention is an entity candidate found in text.
type Mention struct {
	Name string
	Type string
	// Count is the number of occurrences.
	Count int
	// Sentences holds the indexes of the sentences mentioning it, ascending.
	Sentences []int
}

// Key identifies a mention regardless of case.
func (m Mention) Key() string {
	return NormalizeName(m.Name)
}

// NormalizeName folds a name for comparisons.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// TextAnalyzer extracts entity candidates from text.
type TextAnalyzer struct {
	stopWords        map[string]bool
	minKeywordLength int
}

// NewTextAnalyzer creates an analyzer with common English stop words.
// Concepts shorter than minKeywordLength are ignored.
func NewTextAnalyzer(minKeywordLength int) *TextAnalyzer {
	if minKeywordLength < 1 {
		minKeywordLength = 3
	}
	return &TextAnalyzer{
		stopWords:        defaultStopWords(),
		minKeywordLength: minKeywordLength,
	}
}

// SplitSentences splits text on sentence terminators and line breaks.
// Blank sentences are dropped.
func (ta *TextAnalyzer) SplitSentences(text string) []string {
	var (
		sentences []string
		current   strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		switch {
		case r == '\n':
			flush()
		case r == '.' || r == '!' || r == '?':
			current.WriteRune(r)
			// "3.5" or "e.g.x" stay in one sentence
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush()
			}
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return sentences
}

// ExtractMentions finds named entities (runs of capitalized words) and
// concepts (significant lowercase keywords) in sentences. Concepts seen fewer
// than minConceptCount times are dropped. Mentions are returned in order of
// first appearance.
func (ta *TextAnalyzer) ExtractMentions(sentences []string, minConceptCount int) []Mention {
	var order []string
	byKey := make(map[string]*Mention)

	add := func(name, kind string, sentence int) {
		key := NormalizeName(name)
		m, ok := byKey[key]
		if !ok {
			m = &Mention{Name: name, Type: kind}
			byKey[key] = m
			order = append(order, key)
		}
		// A name seen capitalized anywhere is an entity.
		if kind == MentionEntity && m.Type == MentionConcept {
			m.Type = MentionEntity
			m.Name = name
		}
		m.Count++
		if n := len(m.Sentences); n == 0 || m.Sentences[n-1] != sentence {
			m.Sentences = append(m.Sentences, sentence)
		}
	}

	for i, sentence := range sentences {
		var run []string
		flushRun := func() {
			if len(run) > 0 {
				add(strings.Join(run, " "), MentionEntity, i)
				run = run[:0]
			}
		}

		for _, word := range tokenize(sentence) {
			lower := strings.ToLower(word)
			if ta.stopWords[lower] {
				flushRun()
				continue
			}
			if isCapitalized(word) {
				run = append(run, word)
				continue
			}
			flushRun()
			if len([]rune(lower)) >= ta.minKeywordLength && !isNumeric(lower) {
				add(lower, MentionConcept, i)
			}
		}
		flushRun()
	}

	out := make([]Mention, 0, len(order))
	for _, key := range order {
		m := byKey[key]
		if m.Type == MentionConcept && m.Count < minConceptCount {
			continue
		}
		out = append(out, *m)
	}
	return out
}

// ExtractKeywords returns the unique significant lowercase words of text in
// order of first appearance.
func (ta *TextAnalyzer) ExtractKeywords(text string) []string {
	seen := make(map[string]bool)
	keywords := make([]string, 0)
	for _, word := range tokenize(text) {
		lower := strings.ToLower(word)
		if seen[lower] || ta.stopWords[lower] || len([]rune(lower)) < ta.minKeywordLength {
			continue
		}
		seen[lower] = true
		keywords = append(keywords, lower)
	}
	return keywords
}

// SentencesMentioning returns the sentences containing name as a whole
// phrase, ignoring case.
func (ta *TextAnalyzer) SentencesMentioning(sentences []string, name string) []string {
	target := strings.Fields(strings.ToLower(name))
	if len(target) == 0 {
		return nil
	}

	var out []string
	for _, s := range sentences {
		words := tokenize(s)
		for i := 0; i+len(target) <= len(words); i++ {
			if phraseAt(words, i, target) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func phraseAt(words []string, i int, target []string) bool {
	for j, t := range target {
		if strings.ToLower(words[i+j]) != t {
			return false
		}
	}
	return true
}

// tokenize splits on anything that is not a letter, digit, hyphen or
// apostrophe, and strips possessive suffixes.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '\''
	})
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "-'")
		f = strings.TrimSuffix(strings.TrimSuffix(f, "'s"), "'S")
		if len([]rune(f)) > 1 {
			words = append(words, f)
		}
	}
	return words
}

func isCapitalized(word string) bool {
	r, _ := utf8.DecodeRuneInString(word)
	return unicode.IsUpper(r)
}

func isNumeric(word string) bool {
	for _, r := range word {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func defaultStopWords() map[string]bool {
	words := []string{
		"the", "be", "to", "of", "and", "a", "in", "that", "have", "i",
		"it", "for", "not", "on", "with", "he", "as", "you", "do", "at",
		"this", "but", "his", "by", "from", "they", "we", "say", "her", "she",
		"or", "an", "will", "my", "one", "all", "would", "there", "their", "what",
		"so", "up", "out", "if", "about", "who", "get", "which", "go", "me",
		"when", "make", "can", "like", "time", "no", "just", "him", "know", "take",
		"people", "into", "year", "your", "good", "some", "could", "them", "see", "other",
		"than", "then", "now", "look", "only", "come", "its", "over", "think", "also",
		"back", "after", "use", "two", "how", "our", "work", "first", "well", "way",
		"even", "new", "want", "because", "any", "these", "give", "day", "most", "us",
		"is", "was", "are", "been", "has", "had", "were", "said", "did", "having",
		"may", "am", "should", "too", "very", "works", "worked", "does", "while", "where",
	}
	stopWords := make(map[string]bool, len(words))
	for _, w := range words {
		stopWords[w] = true
	}
	return stopWords
}
