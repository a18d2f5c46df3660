package models

import (
	"errors"
	"testing"

	"github.com/romangod6/sitemapdump/internal/pattern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWebsite_Defaults(t *testing.T) {
	w := NewWebsite("example.com", "", "", nil)

	assert.Equal(t, "http://example.com/sitemap.xml", w.IndexURL())
	assert.True(t, w.Accepts("anything at all"))
}

func TestWebsite_Accepts(t *testing.T) {
	p, err := pattern.Compile(`https://example\.com/blog/`)
	require.NoError(t, err)

	w := NewWebsite("example.com", "https", "/sitemap_index.xml", p)

	assert.Equal(t, "https://example.com/sitemap_index.xml", w.IndexURL())
	assert.True(t, w.Accepts("https://example.com/blog/a"))
	assert.False(t, w.Accepts("https://example.com/about"))
}

func TestURLSet(t *testing.T) {
	s := NewURLSet()

	assert.True(t, s.Add("https://b.example/"))
	assert.True(t, s.Add("https://a.example/"))
	assert.False(t, s.Add("https://b.example/"))
	assert.True(t, s.Add("https://b.example"))

	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Contains("https://a.example/"))
	assert.False(t, s.Contains("https://c.example/"))
	assert.Equal(t, []string{"https://a.example/", "https://b.example", "https://b.example/"}, s.Sorted())
}

func TestRun_Finish(t *testing.T) {
	r := NewRun(RunKindIndex, "urls.txt", `(\d+)`)
	assert.Equal(t, RunStatusRunning, r.Status)
	assert.Nil(t, r.FinishedAt)

	r.Finish(10, 2, nil)
	assert.Equal(t, RunStatusCompleted, r.Status)
	assert.Equal(t, 10, r.ItemCount)
	assert.Equal(t, 2, r.Warnings)
	require.NotNil(t, r.FinishedAt)

	failed := NewRun(RunKindCollect, "http://example.com/sitemap.xml", "")
	failed.Finish(0, 0, errors.New("boom"))
	assert.Equal(t, RunStatusFailed, failed.Status)
	assert.Equal(t, "boom", failed.Error)
}
