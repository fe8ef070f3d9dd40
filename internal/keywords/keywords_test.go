package keywords

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract_DropsStopwordsAndShortTokens(t *testing.T) {
	got := Extract("The image shows a red car on an empty highway", DefaultMax)
	assert.Equal(t, []string{"red", "car", "empty", "highway"}, got)
}

func TestExtract_Deterministic(t *testing.T) {
	text := "Quarterly revenue grew while quarterly costs declined; revenue outlook improved."
	first := Extract(text, DefaultMax)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Extract(text, DefaultMax))
	}
}

func TestExtract_DedupesPreservingOrder(t *testing.T) {
	got := Extract("alpha beta alpha gamma beta alpha", DefaultMax)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, got)
}

func TestExtract_StripsPunctuationAndLowercases(t *testing.T) {
	got := Extract("Hello, WORLD! (testing: punctuation-handling)", DefaultMax)
	assert.Equal(t, []string{"hello", "world", "testing", "punctuationhandling"}, got)
}

func TestExtract_KeepsAccentedAndNonLatinLetters(t *testing.T) {
	got := Extract("Café menu: crème brûlée, naïve zürich", DefaultMax)
	assert.Equal(t, []string{"café", "menu", "crème", "brûlée", "naïve", "zürich"}, got)

	got = Extract("東京タワー near the 駅前 plaza", DefaultMax)
	assert.Contains(t, got, "東京タワー")
	assert.Contains(t, got, "駅前")
}

func TestExtract_CapsResult(t *testing.T) {
	text := "zero uno dos tres quatro cinco seis siete ocho nueve diez once doce"
	got := Extract(text, 10)
	assert.Len(t, got, 10)

	got = Extract(text, 3)
	assert.Equal(t, []string{"zero", "uno", "dos"}, got)
}

func TestExtract_NonPositiveMaxUsesDefault(t *testing.T) {
	text := "zero uno dos tres quatro cinco seis siete ocho nueve diez once doce"
	assert.Len(t, Extract(text, 0), DefaultMax)
	assert.Len(t, Extract(text, -1), DefaultMax)
}

func TestExtract_SkipsOverlongTokens(t *testing.T) {
	long := strings.Repeat("x", 300)
	got := Extract("valid "+long+" tokens", DefaultMax)
	assert.Equal(t, []string{"valid", "tokens"}, got)
}

func TestExtract_EmptyInput(t *testing.T) {
	assert.Empty(t, Extract("", DefaultMax))
	assert.Empty(t, Extract("   \n\t  ", DefaultMax))
}
