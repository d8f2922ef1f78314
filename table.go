// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package transcriptome

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
)

// CountsTable is an expression matrix with genes as rows and samples
// as columns. Values[i][j] is the value for Genes[i] in Samples[j].
// Sample labels are stored exactly as read; engines trim them when
// aligning.
type CountsTable struct {
	GeneColumn string
	Genes      []string
	Samples    []string
	Values     [][]float64
}

// MetadataTable holds one row of text cells per sample.
type MetadataTable struct {
	Columns []string
	Rows    [][]string
}

// ColumnIndex returns the index of the named column, or -1.
func (t *MetadataTable) ColumnIndex(name string) int {
	for i, col := range t.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column's cells.
func (t *MetadataTable) Column(name string) ([]string, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, &MissingColumnError{Table: "metadata", Column: name}
	}
	col := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		col[i] = row[idx]
	}
	return col, nil
}

var missingValueTokens = map[string]bool{
	"":    true,
	"NA":  true,
	"N/A": true,
	"NaN": true,
	"nan": true,
}

// ReadCountsTable parses a delimited counts matrix. The first column
// holds gene identifiers and the remaining header cells are sample
// identifiers. Missing cells become NaN.
func ReadCountsTable(r io.Reader) (*CountsTable, error) {
	cr, err := newDelimitedReader(r, "counts")
	if err != nil {
		return nil, err
	}
	header, err := cr.Read()
	if err == io.EOF {
		return nil, &TableFormatError{Table: "counts", Msg: "file is empty"}
	} else if err != nil {
		return nil, csvError("counts", err)
	}
	if len(header) < 2 {
		return nil, &TableFormatError{Table: "counts", Line: 1, Msg: "counts file must have at least one sample column"}
	}
	ct := &CountsTable{
		GeneColumn: strings.TrimSpace(header[0]),
		Samples:    append([]string(nil), header[1:]...),
	}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, csvError("counts", err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) != len(header) {
			return nil, &TableFormatError{Table: "counts", Line: line, Msg: fmt.Sprintf("%d fields, header has %d", len(rec), len(header))}
		}
		row := make([]float64, len(rec)-1)
		for i, cell := range rec[1:] {
			cell = strings.TrimSpace(cell)
			if missingValueTokens[cell] {
				row[i] = math.NaN()
				continue
			}
			row[i], err = strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, &TableFormatError{Table: "counts", Line: line, Msg: fmt.Sprintf("sample %q: cannot parse %q as a number", ct.Samples[i], cell)}
			}
		}
		ct.Genes = append(ct.Genes, rec[0])
		ct.Values = append(ct.Values, row)
	}
	return ct, nil
}

// ReadMetadataTable parses a delimited sample metadata table with a
// header row. Header names are trimmed; cells are kept as text. Short
// rows are padded with empty cells.
func ReadMetadataTable(r io.Reader) (*MetadataTable, error) {
	cr, err := newDelimitedReader(r, "metadata")
	if err != nil {
		return nil, err
	}
	header, err := cr.Read()
	if err == io.EOF {
		return nil, &TableFormatError{Table: "metadata", Msg: "file is empty"}
	} else if err != nil {
		return nil, csvError("metadata", err)
	}
	mt := &MetadataTable{}
	for _, name := range header {
		mt.Columns = append(mt.Columns, strings.TrimSpace(name))
	}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, csvError("metadata", err)
		}
		if len(rec) > len(header) {
			line, _ := cr.FieldPos(0)
			return nil, &TableFormatError{Table: "metadata", Line: line, Msg: fmt.Sprintf("%d fields, header has %d", len(rec), len(header))}
		}
		for len(rec) < len(header) {
			rec = append(rec, "")
		}
		mt.Rows = append(mt.Rows, rec)
	}
	return mt, nil
}

func csvError(table string, err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return &TableFormatError{Table: table, Line: perr.Line, Msg: perr.Err.Error()}
	}
	return fmt.Errorf("read %s table: %w", table, err)
}

// newDelimitedReader returns a csv.Reader for r, transparently
// decompressing gzip input and choosing the field delimiter from the
// header line.
func newDelimitedReader(r io.Reader, table string) (*csv.Reader, error) {
	br := bufio.NewReaderSize(r, 1<<16)
	if magic, _ := br.Peek(2); len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := pgzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%s table: gzip: %w", table, err)
		}
		br = bufio.NewReaderSize(gz, 1<<16)
	}
	if bom, _ := br.Peek(3); bytes.Equal(bom, []byte{0xef, 0xbb, 0xbf}) {
		br.Discard(3)
	}
	head, _ := br.Peek(br.Size())
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	cr := csv.NewReader(br)
	cr.Comma = sniffDelimiter(head)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr, nil
}

// sniffDelimiter picks tab, comma or semicolon, whichever occurs most
// often in the header line. Comma wins ties.
func sniffDelimiter(header []byte) rune {
	best, bestCount := ',', bytes.Count(header, []byte{','})
	for _, d := range []rune{'\t', ';'} {
		if n := bytes.Count(header, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
