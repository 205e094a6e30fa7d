package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractURL(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		s   string
		out []string
	}{
		{
			s:   "this is a description with example.com mentioned in the middle",
			out: []string{"example.com"},
		},
		{
			s:   "this is another example with https://en.wikipedia.org/index.html: and archive.org, and https://eff.org/... and example.app.",
			out: []string{"https://en.wikipedia.org/index.html", "archive.org", "https://eff.org/", "example.app"},
		},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.out, ExtractTextURLs(fix.s))
	}
}

func TestURLHost(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("example.com", URLHost("https://www.Example.com/path?x=1"))
	assert.Equal("spam.example.net", URLHost("spam.example.net/buy"))
	assert.Equal("", URLHost(""))
}

func TestHostMatchesDomain(t *testing.T) {
	assert := assert.New(t)

	assert.True(HostMatchesDomain("example.com", "example.com"))
	assert.True(HostMatchesDomain("shop.example.com", "example.com"))
	assert.True(HostMatchesDomain("example.com", "www.example.com"))
	assert.False(HostMatchesDomain("badexample.com", "example.com"))
	assert.False(HostMatchesDomain("example.com", ""))
}

func TestExtractHosts(t *testing.T) {
	assert := assert.New(t)

	hosts := ExtractHosts("check out https://cheap.example.net/deal and example.com", []string{"http://www.example.com/x"})
	assert.Equal([]string{"example.com", "cheap.example.net"}, hosts)

	assert.Empty(ExtractHosts("hello world", nil))
}

func TestDedupeStrings(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([]string{"a", "b"}, DedupeStrings([]string{"a", "b", "a"}))
	assert.Nil(DedupeStrings(nil))
}
