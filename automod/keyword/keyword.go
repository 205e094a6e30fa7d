package keyword

import (
	"slices"
	"strings"
)

// Helper to check a single token against a list of tokens
func TokenInSet(tok string, set []string) bool {
	return slices.Contains(set, tok)
}

// Checks whether the phrase (one or more words) appears as a contiguous run of tokens in the text token list.
//
// Both sides are expected to already be tokenized with the same tokenizer. An empty phrase never matches.
func TokensContainPhrase(tokens, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return false
	}
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		if slices.Equal(tokens[i:i+len(phrase)], phrase) {
			return true
		}
	}
	return false
}

// Tokenizes both the text and the keyword, and checks if the keyword occurs as a whole-word phrase.
//
// "buy cheap spam now" contains "spam" and "cheap spam", but not "spa".
func TextContainsKeyword(text, kw string) bool {
	return TokensContainPhrase(TokenizeText(text), TokenizeText(kw))
}

// Looser than TextContainsKeyword: compares slugified forms, so punctuation and spacing tricks ("s.p.a.m") still match, as do substrings ("spammy").
func SlugContainsKeyword(text, kw string) bool {
	slug := Slugify(kw)
	if slug == "" {
		return false
	}
	return strings.Contains(Slugify(text), slug)
}
