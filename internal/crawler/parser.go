// internal/crawler/parser.go
package crawler

import (
	"bytes"
	"compress/gzip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/romangod6/sitemapdump/internal/errs"
	"github.com/romangod6/sitemapdump/internal/models"
	"golang.org/x/net/html/charset"
)

var gzipMagic = []byte{0x1f, 0x8b}

// ParseSitemapIndex returns the loc of every <sitemap> in a <sitemapindex>
// document. Entries are returned in document order, empty locs included.
func ParseSitemapIndex(body []byte, lenient bool) ([]string, error) {
	data, err := decodeBody(body)
	if err != nil {
		return nil, err
	}

	var index models.SitemapIndex
	if err := unmarshalXML(data, &index); err != nil {
		if lenient && isSyntaxError(err) {
			return lenientLocs(data, "sitemapindex", "sitemap")
		}
		return nil, fmt.Errorf("%w: sitemap index: %w", errs.ErrParse, err)
	}

	locs := make([]string, 0, len(index.Sitemaps))
	for _, s := range index.Sitemaps {
		locs = append(locs, strings.TrimSpace(s.Loc))
	}
	return locs, nil
}

// ParseURLSet returns the loc of every <url> in a <urlset> document.
func ParseURLSet(body []byte, lenient bool) ([]string, error) {
	data, err := decodeBody(body)
	if err != nil {
		return nil, err
	}

	var set models.URLSetDoc
	if err := unmarshalXML(data, &set); err != nil {
		if lenient && isSyntaxError(err) {
			return lenientLocs(data, "urlset", "url")
		}
		return nil, fmt.Errorf("%w: urlset: %w", errs.ErrParse, err)
	}

	locs := make([]string, 0, len(set.URLs))
	for _, u := range set.URLs {
		locs = append(locs, strings.TrimSpace(u.Loc))
	}
	return locs, nil
}

// decodeBody transparently gunzips .xml.gz payloads.
func decodeBody(body []byte) ([]byte, error) {
	if !bytes.HasPrefix(body, gzipMagic) {
		return body, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %w", errs.ErrParse, err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %w", errs.ErrParse, err)
	}
	return data, nil
}

func unmarshalXML(data []byte, v interface{}) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	return dec.Decode(v)
}

func isSyntaxError(err error) bool {
	var syntaxErr *xml.SyntaxError
	return errors.As(err, &syntaxErr)
}

// lenientLocs reads a document that is not well-formed XML through an HTML
// tree builder, which recovers from unclosed and stray tags.
func lenientLocs(data []byte, root, entry string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errs.ErrParse, root, err)
	}

	rootSel := doc.Find(root).First()
	if rootSel.Length() == 0 {
		return nil, fmt.Errorf("%w: no <%s> element", errs.ErrParse, root)
	}

	var locs []string
	rootSel.Find(entry).Each(func(_ int, s *goquery.Selection) {
		locs = append(locs, strings.TrimSpace(s.Find("loc").First().Text()))
	})
	return locs, nil
}
