package indexer

import (
	"bytes"
	"errors"
	"net/url"
	"sort"
	"testing"

	"github.com/romangod6/sitemapdump/internal/errs"
	"github.com/romangod6/sitemapdump/internal/models"
	"github.com/romangod6/sitemapdump/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuilder(t *testing.T, expr string, log *bytes.Buffer) *Builder {
	t.Helper()
	b, err := NewBuilder(expr, utils.NewConsoleLogger(log))
	require.NoError(t, err)
	return b
}

func TestNewBuilder_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"invalid", `https://example\.com/(\d+`},
		{"no capture group", `https://example\.com/\d+`},
		{"only non-capturing", `https://example\.com/(?:\d+)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuilder(tt.expr, utils.NewConsoleLogger(&bytes.Buffer{}))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrConfig))
		})
	}
}

func TestBuild_Example(t *testing.T) {
	var log bytes.Buffer
	b := newTestBuilder(t, `^https://example\.com/articles/(\d+)`, &log)

	rows, unmatched := b.Build([]string{
		"https://example.com/articles/42",
		"https://example.com/articles/7",
		"https://x.com/y",
	})

	assert.Equal(t, []models.IndexRow{
		{Key: "42", URL: "https://example.com/articles/42"},
		{Key: "7", URL: "https://example.com/articles/7"},
	}, rows)
	assert.Equal(t, []string{"https://x.com/y"}, unmatched)
	assert.Contains(t, log.String(), "[WARN] https://x.com/y doesn't match index pattern")
}

func TestBuild_AnchoredAtStart(t *testing.T) {
	var log bytes.Buffer
	b := newTestBuilder(t, `example\.com/(\w+)`, &log)

	rows, unmatched := b.Build([]string{"https://example.com/a", "example.com/b"})

	assert.Equal(t, []models.IndexRow{{Key: "b", URL: "example.com/b"}}, rows)
	assert.Equal(t, []string{"https://example.com/a"}, unmatched)
}

func TestBuild_StableForEqualKeys(t *testing.T) {
	var log bytes.Buffer
	b := newTestBuilder(t, `https://example\.com/(\w+)/`, &log)

	rows, _ := b.Build([]string{
		"https://example.com/b/2",
		"https://example.com/a/1",
		"https://example.com/b/1",
		"https://example.com/a/2",
		"https://example.com/b/2",
	})

	assert.Equal(t, []models.IndexRow{
		{Key: "a", URL: "https://example.com/a/1"},
		{Key: "a", URL: "https://example.com/a/2"},
		{Key: "b", URL: "https://example.com/b/2"},
		{Key: "b", URL: "https://example.com/b/1"},
		{Key: "b", URL: "https://example.com/b/2"},
	}, rows)
}

func TestBuild_SortedNonDecreasing(t *testing.T) {
	var log bytes.Buffer
	b := newTestBuilder(t, `https://example\.com/wiki/([^/?#]+)`, &log)

	rows, unmatched := b.Build([]string{
		"https://example.com/wiki/Zebra",
		"https://example.com/wiki/%C3%89cole",
		"https://example.com/wiki/apple",
		"https://example.com/wiki/Apple",
		"https://example.com/wiki/",
		"https://example.com/wiki/Caf%C3%A9",
	})

	assert.Len(t, unmatched, 1)
	require.Len(t, rows, 5)
	assert.True(t, sort.SliceIsSorted(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key }))
	assert.Equal(t, []string{"Apple", "Café", "Zebra", "apple", "École"}, keys(rows))
}

func TestBuild_NonParticipatingGroupIsUnmatched(t *testing.T) {
	var log bytes.Buffer
	b := newTestBuilder(t, `https://example\.com/(?:p/(\d+)|about)`, &log)

	rows, unmatched := b.Build([]string{"https://example.com/about", "https://example.com/p/3"})

	assert.Equal(t, []models.IndexRow{{Key: "3", URL: "https://example.com/p/3"}}, rows)
	assert.Equal(t, []string{"https://example.com/about"}, unmatched)
}

func TestBuild_NamedGroupKeyIsFirstWritten(t *testing.T) {
	for _, expr := range []string{
		`https://a\.com/(?<id>\d+)/(\w+)`,
		`https://a\.com/(?P<id>\d+)/(\w+)`,
	} {
		var log bytes.Buffer
		b := newTestBuilder(t, expr, &log)

		rows, unmatched := b.Build([]string{"https://a.com/42/slug", "https://a.com/7/zzz"})

		assert.Empty(t, unmatched)
		assert.Equal(t, []models.IndexRow{
			{Key: "42", URL: "https://a.com/42/slug"},
			{Key: "7", URL: "https://a.com/7/zzz"},
		}, rows, expr)
	}
}

func TestBuild_UnbalancedPatternRejected(t *testing.T) {
	_, err := NewBuilder(`https://a\.com/(\d+))|(.*x`, utils.NewConsoleLogger(&bytes.Buffer{}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConfig))
}

func TestBuild_PercentEncodedRoundTrip(t *testing.T) {
	var log bytes.Buffer
	b := newTestBuilder(t, `https://example\.com/k/(.*)`, &log)

	for _, key := range []string{"abc", "A-Z_0.9~", "~", "x-y.z_w", "Hello-World"} {
		encoded := "https://example.com/k/"
		for i := 0; i < len(key); i++ {
			encoded += "%" + upperHex(key[i])
		}

		got, ok := b.Key(encoded)
		require.True(t, ok)
		assert.Equal(t, key, got)

		// The stdlib escaper leaves these characters alone; decoding must still be identity.
		got, ok = b.Key("https://example.com/k/" + url.PathEscape(key))
		require.True(t, ok)
		assert.Equal(t, key, got)
	}
}

func keys(rows []models.IndexRow) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Key)
	}
	return out
}

func upperHex(c byte) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{digits[c>>4], digits[c&0xf]})
}
