package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

const DefaultMaxSentences = 5

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)

// FrequencySummarizer ranks sentences by word frequency (stopwords filtered).
type FrequencySummarizer struct {
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['\x{2019}]\p{L}+)*|\p{N}+`),
		stopwords:    defaultStopwords(),
	}
}

// Summarize returns a short summary by ranking sentences using token frequency.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	return s.rank(text, nil, maxSentences), nil
}

// SummarizeFor ranks sentences like Summarize but only credits tokens that also occur
// in query. When no sentence shares a token with the query it returns "".
func (s *FrequencySummarizer) SummarizeFor(text, query string, maxSentences int) string {
	focus := map[string]struct{}{}
	for _, tok := range s.Tokens(query) {
		focus[tok] = struct{}{}
	}
	if len(focus) == 0 {
		return ""
	}
	return s.rank(text, focus, maxSentences)
}

// Tokens lowercases text and returns its word tokens without stopwords.
func (s *FrequencySummarizer) Tokens(text string) []string {
	all := s.tokens(text)
	out := all[:0]
	for _, tok := range all {
		if _, ok := s.stopwords[tok]; ok {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Sentences splits text into trimmed sentences. Trailing text without terminal
// punctuation is kept as a final sentence.
func Sentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range sentencePattern.FindAllStringIndex(text, -1) {
		if sent := strings.TrimSpace(text[loc[0]:loc[1]]); sent != "" {
			out = append(out, sent)
		}
		last = loc[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

func (s *FrequencySummarizer) rank(text string, focus map[string]struct{}, maxSentences int) string {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	sentences := Sentences(text)
	if len(sentences) == 0 {
		if focus != nil {
			return ""
		}
		return strings.TrimSpace(text)
	}
	tokenized := make([][]string, len(sentences))
	freq := map[string]float64{}
	for i, sent := range sentences {
		tokenized[i] = s.Tokens(sent)
		for _, tok := range tokenized[i] {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, 0, len(sentences))
	for i, toks := range tokenized {
		sscore := 0.0
		for _, tok := range toks {
			if focus != nil {
				if _, ok := focus[tok]; !ok {
					continue
				}
			}
			sscore += freq[tok]
		}
		if focus != nil && sscore == 0 {
			continue
		}
		// Normalize by sentence length to avoid bias
		if l := float64(len(toks)); l > 0 {
			sscore /= math.Sqrt(l)
		}
		scores = append(scores, pair{i, sscore})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if maxSentences > len(scores) {
		maxSentences = len(scores)
	}
	// Keep original order among selected
	selected := make([]int, maxSentences)
	for i := 0; i < maxSentences; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, len(selected))
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " ")
}

func (s *FrequencySummarizer) tokens(text string) []string {
	return s.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "whom", "how", "why", "when", "where", "does", "do", "did", "has", "have", "had",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
