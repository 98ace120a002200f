package testutil

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTestSiteServesLinkedPages(t *testing.T) {
	ts := NewTestServer()
	defer ts.Close()
	ts.BuildTestSite()

	resp, err := http.Get(ts.URL() + "/about")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(body), "About Us")
	assert.Equal(t, 1, ts.GetHits("/about"))
}

func TestHTMLBuilderProducesExpectedMarkup(t *testing.T) {
	doc := NewHTMLBuilder().
		Title("Fixture").
		MetaDescription("a fixture page").
		H1("Heading").
		Link("/next", "Next").
		Build()

	assert.Contains(t, doc, "<title>Fixture</title>")
	assert.Contains(t, doc, `content="a fixture page"`)
	assert.Contains(t, doc, "<h1>Heading</h1>")
	assert.Contains(t, doc, `<a href="/next">Next</a>`)
}
