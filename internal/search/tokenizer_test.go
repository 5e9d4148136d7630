package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize_Empty(t *testing.T) {
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("   "))
}

func TestTokenize_PlainWords(t *testing.T) {
	assert.Equal(t, []string{"nitrile", "gloves"}, Tokenize("nitrile gloves"))
}

func TestTokenize_SKUShapeDualEmission(t *testing.T) {
	// SKU-shaped parts keep the original and add a separator-stripped variant.
	assert.Equal(t, []string{"abc-123", "abc123"}, Tokenize("abc-123"))
	assert.Equal(t, []string{"ab_1", "ab1"}, Tokenize("ab_1"))
}

func TestTokenize_SKUShapeNoVariantWhenIdentical(t *testing.T) {
	// No separators, so no second emission.
	assert.Equal(t, []string{"abc123"}, Tokenize("abc123"))
}

func TestTokenize_StripsPunctuation(t *testing.T) {
	// "gloves," is not SKU-shaped (comma), so punctuation is stripped.
	assert.Equal(t, []string{"gloves", "large"}, Tokenize("gloves, large!"))
}

func TestTokenize_Deterministic(t *testing.T) {
	in := "nitrile gloves glv-200 box, of 100"
	assert.Equal(t, Tokenize(in), Tokenize(in))
}

func TestTokenize_NoDeduplication(t *testing.T) {
	assert.Equal(t, []string{"glove", "glove"}, Tokenize("glove glove"))
}

func TestTokenize_ShortSKUShapeNotPreserved(t *testing.T) {
	// Single characters never qualify as SKU-shaped but survive as plain tokens.
	assert.Equal(t, []string{"a", "bc"}, Tokenize("a bc"))
}

func TestSKUVariants(t *testing.T) {
	assert.Equal(t, []string{"GLV-200", "GLV200"}, SKUVariants("GLV-200"))
	assert.Equal(t, []string{"A_B", "AB"}, SKUVariants("A_B"))
	assert.Equal(t, []string{"PLAIN"}, SKUVariants("PLAIN"))
	assert.Nil(t, SKUVariants("  "))
}
