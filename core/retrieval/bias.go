package retrieval

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/corpuslab/psyrag/model"
)

// ApplyEntityBias boosts candidates whose content mentions entities from
// the query. Entity and content are both normalized (case fold, diacritic
// fold, whitespace collapse) before the substring test. Each distinct
// matched entity adds boost once; the summed boost is limited by cap
// (0 disables the cap). Repeated mentions of one entity do not compound.
func ApplyEntityBias(candidates []*model.Candidate, entities []string, boost float64, cap float64) {
	if len(entities) == 0 || boost == 0 {
		return
	}

	normalized := make([]string, 0, len(entities))
	seen := make(map[string]bool, len(entities))
	for _, entity := range entities {
		n := NormalizeForMatch(entity)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		normalized = append(normalized, n)
	}

	for _, candidate := range candidates {
		content := NormalizeForMatch(candidate.Content)

		total := 0.0
		for _, entity := range normalized {
			if strings.Contains(content, entity) {
				total += boost
			}
		}
		if cap > 0 && total > cap {
			total = cap
		}

		candidate.BiasedScore += total
	}
}

// ApplyIntentBias runs the pluggable intent strategy over every candidate.
func ApplyIntentBias(candidates []*model.Candidate, intent model.QueryIntent, strategy IntentBiasStrategy) {
	if strategy == nil {
		return
	}
	for _, candidate := range candidates {
		candidate.BiasedScore += strategy.Bias(intent, candidate)
	}
}

var diacriticStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// NormalizeForMatch lowercases text, strips diacritics and collapses all
// whitespace runs to single spaces.
func NormalizeForMatch(text string) string {
	stripped, _, err := transform.String(diacriticStripper, text)
	if err != nil {
		stripped = text
	}
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}
