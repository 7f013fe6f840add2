package helper

import "strings"

// SplitSentences splits text into sentences on terminal punctuation.
func SplitSentences(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	text = strings.ReplaceAll(text, "! ", "!|")
	text = strings.ReplaceAll(text, "? ", "?|")
	text = strings.ReplaceAll(text, ". ", ".|")
	text = strings.ReplaceAll(text, "!\n", "!|")
	text = strings.ReplaceAll(text, "?\n", "?|")
	text = strings.ReplaceAll(text, ".\n", ".|")

	parts := strings.Split(text, "|")
	var sentences []string
	for _, s := range parts {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// FirstSentences returns up to n leading sentences of text joined by spaces.
func FirstSentences(text string, n int) string {
	if n <= 0 {
		return ""
	}
	sentences := SplitSentences(text)
	if len(sentences) > n {
		sentences = sentences[:n]
	}
	return strings.Join(sentences, " ")
}

// LastSentences returns up to n trailing sentences of text joined by spaces.
func LastSentences(text string, n int) string {
	if n <= 0 {
		return ""
	}
	sentences := SplitSentences(text)
	if len(sentences) > n {
		sentences = sentences[len(sentences)-n:]
	}
	return strings.Join(sentences, " ")
}
