package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corpuslab/psyrag/model"
)

func TestApplyEntityBias(t *testing.T) {
	t.Run("No entities leaves scores untouched", func(t *testing.T) {
		candidate := &model.Candidate{Content: "working memory capacity", BiasedScore: 0.8}

		ApplyEntityBias([]*model.Candidate{candidate}, nil, 0.05, 0.15)

		assert.Equal(t, 0.8, candidate.BiasedScore)
	})

	t.Run("Matched entity adds the boost once", func(t *testing.T) {
		candidate := &model.Candidate{Content: "Baddeley proposed the model. Baddeley later revised it.", BiasedScore: 0.8}

		ApplyEntityBias([]*model.Candidate{candidate}, []string{"Baddeley"}, 0.05, 0.15)

		assert.InDelta(t, 0.85, candidate.BiasedScore, 1e-12)
	})

	t.Run("Distinct entities stack up to the cap", func(t *testing.T) {
		candidate := &model.Candidate{
			Content:     "Baddeley and Hitch built on Atkinson and Shiffrin, as did Cowan.",
			BiasedScore: 0.5,
		}
		entities := []string{"Baddeley", "Hitch", "Atkinson", "Shiffrin", "Cowan"}

		ApplyEntityBias([]*model.Candidate{candidate}, entities, 0.05, 0.15)

		// Five matches at 0.05 each would be 0.25, limited to 0.15
		assert.InDelta(t, 0.65, candidate.BiasedScore, 1e-12)
	})

	t.Run("Match is case and diacritic insensitive", func(t *testing.T) {
		candidate := &model.Candidate{Content: "a study by PIAGET on schemas", BiasedScore: 0}

		ApplyEntityBias([]*model.Candidate{candidate}, []string{"Piagét"}, 0.05, 0)

		assert.InDelta(t, 0.05, candidate.BiasedScore, 1e-12)
	})

	t.Run("Duplicate entity inputs count once", func(t *testing.T) {
		candidate := &model.Candidate{Content: "freud on defense mechanisms", BiasedScore: 0}

		ApplyEntityBias([]*model.Candidate{candidate}, []string{"Freud", "freud", "FREUD"}, 0.05, 0)

		assert.InDelta(t, 0.05, candidate.BiasedScore, 1e-12)
	})

	t.Run("Unmatched entities add nothing", func(t *testing.T) {
		candidate := &model.Candidate{Content: "classical conditioning in dogs", BiasedScore: 0.3}

		ApplyEntityBias([]*model.Candidate{candidate}, []string{"Skinner"}, 0.05, 0.15)

		assert.Equal(t, 0.3, candidate.BiasedScore)
	})
}

func TestApplyIntentBias(t *testing.T) {
	t.Run("Noop strategy changes nothing", func(t *testing.T) {
		candidate := &model.Candidate{BiasedScore: 0.4}

		ApplyIntentBias([]*model.Candidate{candidate}, model.IntentDefinition, NoopIntentBias{})

		assert.Equal(t, 0.4, candidate.BiasedScore)
	})

	t.Run("Custom strategy delta is added", func(t *testing.T) {
		candidate := &model.Candidate{BiasedScore: 0.4}

		ApplyIntentBias([]*model.Candidate{candidate}, model.IntentCritique, intentBiasFunc(func(intent model.QueryIntent, c *model.Candidate) float64 {
			if intent == model.IntentCritique {
				return 0.1
			}
			return 0
		}))

		assert.InDelta(t, 0.5, candidate.BiasedScore, 1e-12)
	})
}

type intentBiasFunc func(intent model.QueryIntent, candidate *model.Candidate) float64

func (f intentBiasFunc) Bias(intent model.QueryIntent, candidate *model.Candidate) float64 {
	return f(intent, candidate)
}

func TestNormalizeForMatch(t *testing.T) {
	assert.Equal(t, "piaget", NormalizeForMatch("  PIAGÉT "))
	assert.Equal(t, "working memory", NormalizeForMatch("Working\n\tMemory"))
	assert.Equal(t, "", NormalizeForMatch("   "))
}
