// Package decode turns uploaded CSV or XLSX bytes into header-keyed raw records.
package decode

import (
	"context"
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/pricing-cli/internal/model"
)

// Format identifies the input encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatFromName picks the format by file extension, defaulting to CSV.
func FormatFromName(name string) Format {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

// rowReader yields raw cell slices; io.EOF ends the stream.
type rowReader interface {
	Read() ([]string, error)
}

// Stream decodes r and sends one RawRecord per data line. The first non-empty
// line is the header and is not emitted. After it every row is numbered and
// emitted, including rows whose cells are all empty. Both channels are closed when
// decoding ends; the caller must drain rowCh or cancel ctx.
func Stream(ctx context.Context, r io.Reader, format Format) (<-chan model.RawRecord, <-chan error) {
	rowCh := make(chan model.RawRecord, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader, err := newRowReader(r, format)
		if err != nil {
			errCh <- err
			return
		}

		var header []string
		row := 0
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "decode: context cancelled")
				return
			}

			cells, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrapf(err, "decode: read row %d", row+1)
				return
			}
			if header == nil {
				if blank(cells) {
					continue
				}
				row++
				header = cells
				continue
			}
			row++

			select {
			case rowCh <- model.NewRawRecord(row, header, cells):
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "decode: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// CountRecords counts data lines (header excluded) and rewinds rs to where it
// started so the same input can then be streamed.
func CountRecords(rs io.ReadSeeker, format Format) (int, error) {
	start, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, eris.Wrap(err, "decode: locate input start")
	}

	reader, err := newRowReader(rs, format)
	if err != nil {
		return 0, err
	}
	n := 0
	seenHeader := false
	for {
		cells, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, eris.Wrap(err, "decode: count rows")
		}
		if !seenHeader && blank(cells) {
			continue
		}
		seenHeader = true
		n++
	}

	if _, err := rs.Seek(start, io.SeekStart); err != nil {
		return 0, eris.Wrap(err, "decode: rewind input")
	}
	if n > 0 {
		n-- // header
	}
	return n, nil
}

func newRowReader(r io.Reader, format Format) (rowReader, error) {
	switch format {
	case FormatXLSX:
		return newXLSXReader(r)
	default:
		return newCSVReader(r), nil
	}
}

func newCSVReader(r io.Reader) *csv.Reader {
	// Spreadsheet exports often lead with a UTF-8 BOM that would otherwise
	// stick to the first header name.
	bomless := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(bomless)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = false
	return reader
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
