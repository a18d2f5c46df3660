package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/romangod6/sitemapdump/internal/errs"
	"github.com/romangod6/sitemapdump/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func newSitemapServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>%[1]s/pages.xml</loc></sitemap>
  <sitemap><loc>%[1]s/broken.xml</loc></sitemap>
</sitemapindex>`, srv.URL)
	})
	mux.HandleFunc("/pages.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>%[1]s/blog/b</loc></url>
  <url><loc>%[1]s/about</loc></url>
  <url><loc>%[1]s/blog/a</loc></url>
</urlset>`, srv.URL)
	})
	mux.HandleFunc("/broken.xml", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	return srv
}

func TestDump(t *testing.T) {
	srv := newSitemapServer(t)
	host := strings.TrimPrefix(srv.URL, "http://")

	out, log, err := run(t, "", "dump", host, "--retries", "0", "-u", `http://[^/]+/blog/`)
	require.NoError(t, err, log)

	assert.Equal(t, srv.URL+"/blog/a\n"+srv.URL+"/blog/b\n", out)
	assert.Contains(t, log, "Downloading sitemap for "+srv.URL+"/sitemap.xml")
	assert.Contains(t, log, "Giving up on "+srv.URL+"/broken.xml")
	assert.Contains(t, log, "[INFO] Done!")
}

func TestDump_InteractiveDecline(t *testing.T) {
	srv := newSitemapServer(t)
	host := strings.TrimPrefix(srv.URL, "http://")

	out, log, err := run(t, "maybe\nn\n", "dump", host, "--interactive")
	require.NoError(t, err)

	assert.Equal(t, 3, strings.Count(out, "\n"))
	assert.Contains(t, log, "Please answer y or n.")
}

func TestDump_IndexFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	out, _, err := run(t, "", "dump", strings.TrimPrefix(srv.URL, "http://"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrFetch))
	assert.Empty(t, out)
}

func TestDump_BadPattern(t *testing.T) {
	_, _, err := run(t, "", "dump", "example.com", "-u", "(")

	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
}

func TestIndex(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "urls.txt")
	output := filepath.Join(dir, "index.csv")
	require.NoError(t, os.WriteFile(input, []byte(
		"https://example.com/wiki/Zebra\nhttps://example.com/wiki/Caf%C3%A9\nhttps://other.org/x\nhttps://example.com/wiki/Apple\n",
	), 0644))

	_, log, err := run(t, "", "index", input, output, "-i", `https://example\.com/wiki/([^/]+)`)
	require.NoError(t, err, log)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t,
		"Apple,https://example.com/wiki/Apple\nCafé,https://example.com/wiki/Caf%C3%A9\nZebra,https://example.com/wiki/Zebra\n",
		string(data))
	assert.Contains(t, log, "https://other.org/x doesn't match index pattern")
}

func TestIndex_StdinToStdoutCRLF(t *testing.T) {
	out, _, err := run(t, "https://example.com/p/2\nhttps://example.com/p/1\n",
		"index", "-", "-", "-i", `https://example\.com/p/(\d+)`, "--crlf")
	require.NoError(t, err)

	assert.Equal(t, "1,https://example.com/p/1\r\n2,https://example.com/p/2\r\n", out)
}

func TestIndex_Errors(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "urls.txt")
	require.NoError(t, os.WriteFile(input, []byte("https://example.com/1\n"), 0644))

	tests := []struct {
		name string
		args []string
		kind error
	}{
		{"missing pattern", []string{"index", input, filepath.Join(dir, "a.csv")}, errs.ErrConfig},
		{"pattern without group", []string{"index", input, filepath.Join(dir, "b.csv"), "-i", `https://example\.com/\d`}, errs.ErrConfig},
		{"missing input", []string{"index", filepath.Join(dir, "nope.txt"), filepath.Join(dir, "c.csv"), "-i", `(.*)`}, errs.ErrIO},
		{"unwritable output", []string{"index", input, filepath.Join(dir, "no", "such", "d.csv"), "-i", `(.*)`}, errs.ErrIO},
		{"xlsx to stdout", []string{"index", input, "-", "-i", `(.*)`, "--format", "xlsx"}, errs.ErrConfig},
		{"unknown format", []string{"index", input, filepath.Join(dir, "e.csv"), "-i", `(.*)`, "--format", "tsv"}, errs.ErrConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, "", tt.args...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), err.Error())
		})
	}
}

func TestIndex_RecordsRunInStore(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "urls.txt")
	require.NoError(t, os.WriteFile(input, []byte("https://example.com/p/1\n"), 0644))

	_, _, err := run(t, "", "index", input, filepath.Join(dir, "out.csv"),
		"-i", `https://example\.com/p/(\d+)`, "--store", "sqlite:"+filepath.Join(dir, "runs.db"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "runs.db"))
	assert.NoError(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(fmt.Errorf("%w: bad flag", errs.ErrConfig)))
	assert.Equal(t, 1, exitCode(fmt.Errorf("%w: down", errs.ErrFetch)))
	assert.Equal(t, 1, exitCode(errors.New("other")))
}

func TestOpenSink_OutputOnlyOnSuccess(t *testing.T) {
	for _, format := range []string{"csv", "xlsx"} {
		t.Run(format, func(t *testing.T) {
			dir := t.TempDir()
			c := &cli{out: &bytes.Buffer{}}
			rows := []models.IndexRow{{Key: "1", URL: "https://example.com/p/1"}}

			output := filepath.Join(dir, "failed."+format)
			sink, finish, err := c.openSink(format, false, output)
			require.NoError(t, err)
			require.NoError(t, sink.WriteRows(context.Background(), rows))
			require.NoError(t, finish(false))
			assertDirEntries(t, dir)

			output = filepath.Join(dir, "index."+format)
			sink, finish, err = c.openSink(format, false, output)
			require.NoError(t, err)
			require.NoError(t, sink.WriteRows(context.Background(), rows))
			require.NoError(t, finish(true))
			assertDirEntries(t, dir, "index."+format)
		})
	}
}

func assertDirEntries(t *testing.T, dir string, want ...string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if want == nil {
		want = []string{}
	}
	assert.Equal(t, want, names)
}
