package indexer

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/romangod6/sitemapdump/internal/errs"
	"github.com/romangod6/sitemapdump/internal/models"
	"github.com/xuri/excelize/v2"
)

// Sink receives the sorted rows of one index build.
type Sink interface {
	WriteRows(ctx context.Context, rows []models.IndexRow) error
}

// ReadURLs reads one URL per line. Blank lines are kept so they surface as
// non-matching input instead of vanishing silently.
func ReadURLs(r io.Reader) ([]string, error) {
	var urls []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		urls = append(urls, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read urls: %w", errs.ErrIO, err)
	}

	return urls, nil
}

// CSVSink writes rows as key,url records without a header.
type CSVSink struct {
	w       io.Writer
	useCRLF bool
}

func NewCSVSink(w io.Writer, useCRLF bool) *CSVSink {
	return &CSVSink{w: w, useCRLF: useCRLF}
}

func (s *CSVSink) WriteRows(_ context.Context, rows []models.IndexRow) error {
	writer := csv.NewWriter(s.w)
	writer.UseCRLF = s.useCRLF

	for _, row := range rows {
		if err := writer.Write([]string{row.Key, row.URL}); err != nil {
			return fmt.Errorf("%w: write csv: %w", errs.ErrIO, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("%w: write csv: %w", errs.ErrIO, err)
	}
	return nil
}

// XLSXSink writes rows to the first sheet of a new workbook, key in column A
// and url in column B.
type XLSXSink struct {
	path string
}

func NewXLSXSink(path string) *XLSXSink {
	return &XLSXSink{path: path}
}

func (s *XLSXSink) WriteRows(_ context.Context, rows []models.IndexRow) error {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(f.GetSheetName(0))
	if err != nil {
		return fmt.Errorf("%w: xlsx: %w", errs.ErrIO, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("%w: xlsx: %w", errs.ErrIO, err)
		}
		if err := sw.SetRow(cell, []interface{}{row.Key, row.URL}); err != nil {
			return fmt.Errorf("%w: xlsx row %d: %w", errs.ErrIO, i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("%w: xlsx: %w", errs.ErrIO, err)
	}
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("%w: save %s: %w", errs.ErrIO, s.path, err)
	}
	return nil
}

// Result summarizes one Run.
type Result struct {
	Rows      []models.IndexRow
	Unmatched []string
}

// Run builds the index of urls and hands the rows to every sink in order.
func Run(ctx context.Context, b *Builder, urls []string, sinks ...Sink) (*Result, error) {
	rows, unmatched := b.Build(urls)

	for _, sink := range sinks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := sink.WriteRows(ctx, rows); err != nil {
			return nil, err
		}
	}

	return &Result{Rows: rows, Unmatched: unmatched}, nil
}
