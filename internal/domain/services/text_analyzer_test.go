package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(mentions []Mention) []string {
	out := make([]string, len(mentions))
	for i, m := range mentions {
		out[i] = m.Name
	}
	return out
}

func TestSplitSentences(t *testing.T) {
	ta := NewTextAnalyzer(3)
	tests := []struct {
		text string
		want []string
	}{
		{"Alice works at Acme.", []string{"Alice works at Acme."}},
		{"One. Two!  Three?", []string{"One.", "Two!", "Three?"}},
		{"Version 3.5 shipped. Done", []string{"Version 3.5 shipped.", "Done"}},
		{"line one\nline two", []string{"line one", "line two"}},
		{"   \n  ", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ta.SplitSentences(tt.text), tt.text)
	}
}

func TestExtractMentions_NamedEntities(t *testing.T) {
	ta := NewTextAnalyzer(3)
	mentions := ta.ExtractMentions(ta.SplitSentences("Alice works at Acme."), 2)

	require.Equal(t, []string{"Alice", "Acme"}, names(mentions))
	assert.Equal(t, MentionEntity, mentions[0].Type)
	assert.Equal(t, []int{0}, mentions[1].Sentences)
}

func TestExtractMentions_MultiWordAndCounts(t *testing.T) {
	ta := NewTextAnalyzer(3)
	text := "Ada Lovelace wrote notes. The notes described the Analytical Engine. Ada Lovelace's notes survive."
	mentions := ta.ExtractMentions(ta.SplitSentences(text), 2)

	require.Equal(t, []string{"Ada Lovelace", "notes", "Analytical Engine"}, names(mentions))
	assert.Equal(t, 2, mentions[0].Count)
	assert.Equal(t, []int{0, 2}, mentions[0].Sentences)
	assert.Equal(t, MentionConcept, mentions[1].Type)
	assert.Equal(t, 3, mentions[1].Count)
}

func TestExtractMentions_ConceptThreshold(t *testing.T) {
	ta := NewTextAnalyzer(3)
	sentences := []string{"graphs store knowledge", "knowledge grows"}

	assert.Equal(t, []string{"knowledge"}, names(ta.ExtractMentions(sentences, 2)))
	assert.Equal(t, []string{"graphs", "store", "knowledge", "grows"}, names(ta.ExtractMentions(sentences, 1)))
}

func TestExtractMentions_CapitalizedWinsOverConcept(t *testing.T) {
	ta := NewTextAnalyzer(3)
	mentions := ta.ExtractMentions([]string{"the python snake", "Python is a language"}, 1)

	require.NotEmpty(t, mentions)
	assert.Equal(t, "Python", mentions[0].Name)
	assert.Equal(t, MentionEntity, mentions[0].Type)
	assert.Equal(t, 2, mentions[0].Count)
}

func TestExtractKeywords(t *testing.T) {
	ta := NewTextAnalyzer(4)
	assert.Equal(t, []string{"graph", "stores", "facts", "grew"}, ta.ExtractKeywords("The graph stores facts; the graph grew a lot"))
}

func TestSentencesMentioning(t *testing.T) {
	ta := NewTextAnalyzer(3)
	sentences := []string{"Acme Corp hired Alice.", "Bob left acme corp.", "Acme Widgets sells widgets."}

	assert.Equal(t, sentences[:2], ta.SentencesMentioning(sentences, "Acme Corp"))
	assert.Empty(t, ta.SentencesMentioning(sentences, " "))
}
