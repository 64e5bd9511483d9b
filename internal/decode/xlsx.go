package decode

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// xlsxReader walks the rows of the first worksheet.
type xlsxReader struct {
	rows []*xlsx.Row
	next int
}

func newXLSXReader(r io.Reader) (*xlsxReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: read input")
	}
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open workbook")
	}
	if len(f.Sheets) == 0 {
		return &xlsxReader{}, nil
	}
	return &xlsxReader{rows: f.Sheets[0].Rows}, nil
}

func (x *xlsxReader) Read() ([]string, error) {
	if x.next >= len(x.rows) {
		return nil, io.EOF
	}
	row := x.rows[x.next]
	x.next++
	if row == nil {
		return nil, nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells, nil
}
