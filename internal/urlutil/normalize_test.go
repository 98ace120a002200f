package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLinkRejectsNonFetchableSchemes(t *testing.T) {
	base := "https://example.com/a/b"

	for _, href := range []string{"mailto:x@example.com", "javascript:void(0)", "#frag", "tel:+15551234567"} {
		_, ok := NormalizeLink(base, href)
		assert.Falsef(t, ok, "expected %q to be rejected", href)
	}
}

func TestNormalizeLinkResolvesRelativePaths(t *testing.T) {
	got, ok := NormalizeLink("https://example.com/a/b", "/c")
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/c", got)
}

func TestNormalizeLinkIsIdempotent(t *testing.T) {
	base := "https://example.com/a/b"
	first, ok := NormalizeLink(base, "/c?x=1#frag")
	assert.True(t, ok)

	second, ok := NormalizeLink(base, first)
	assert.True(t, ok)
	assert.Equal(t, first, second)
}

func TestIsAllowedDomainMatchesSubdomains(t *testing.T) {
	assert.True(t, IsAllowedDomain("https://sub.example.com/x", []string{"example.com"}))
	assert.True(t, IsAllowedDomain("https://example.com/x", []string{"example.com"}))
	assert.False(t, IsAllowedDomain("https://evil.com", []string{"example.com"}))
}

func TestIsAllowedDomainEmptyListAllowsAll(t *testing.T) {
	assert.True(t, IsAllowedDomain("https://anything.example", nil))
}

func TestNormalizeStartsAddsSchemeAndStripsFragment(t *testing.T) {
	out := NormalizeStarts([]string{"example.com/path#section", "https://other.com"})
	assert.Equal(t, []string{"https://example.com/path", "https://other.com"}, out)
}
