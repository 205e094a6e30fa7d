package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenInSet(t *testing.T) {
	assert := assert.New(t)

	keywords := []string{
		"example",
		"bunch",
	}

	assert.True(TokenInSet("example", keywords))
	assert.False(TokenInSet("Example", keywords))
	assert.False(TokenInSet("elephant", keywords))
}

func TestTextContainsKeyword(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		text string
		kw   string
		out  bool
	}{
		{text: "buy cheap spam now", kw: "spam", out: true},
		{text: "buy cheap spam now", kw: "cheap spam", out: true},
		{text: "buy cheap spam now", kw: "spam cheap", out: false},
		{text: "buy cheap spam now", kw: "spa", out: false},
		{text: "hello world", kw: "spam", out: false},
		{text: "BUY NOW!!!", kw: "buy now", out: true},
		{text: "Crème brûlée", kw: "creme", out: true},
		{text: "anything", kw: "", out: false},
		{text: "", kw: "spam", out: false},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.out, TextContainsKeyword(fix.text, fix.kw), "%q in %q", fix.kw, fix.text)
	}
}

func TestSlugContainsKeyword(t *testing.T) {
	assert := assert.New(t)

	assert.True(SlugContainsKeyword("s.p.a.m for sale", "spam"))
	assert.True(SlugContainsKeyword("very spammy", "spam"))
	assert.False(SlugContainsKeyword("hello world", "spam"))
	assert.False(SlugContainsKeyword("hello world", "!!"))
}
