// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package transcriptome

import (
	"bytes"
	"math"
	"strings"

	"github.com/klauspost/pgzip"
	"gopkg.in/check.v1"
)

type tableSuite struct{}

var _ = check.Suite(&tableSuite{})

func (s *tableSuite) TestReadCountsCSV(c *check.C) {
	counts := mustReadCounts(c, "gene_id,S1,S2, S3\nG1,1,2.5,3\nG2,4,NA,\n")
	c.Check(counts.GeneColumn, check.Equals, "gene_id")
	c.Check(counts.Genes, check.DeepEquals, []string{"G1", "G2"})
	c.Check(counts.Samples, check.DeepEquals, []string{"S1", "S2", " S3"})
	c.Check(counts.Values[0], check.DeepEquals, []float64{1, 2.5, 3})
	c.Check(counts.Values[1][0], check.Equals, 4.0)
	c.Check(math.IsNaN(counts.Values[1][1]), check.Equals, true)
	c.Check(math.IsNaN(counts.Values[1][2]), check.Equals, true)
}

func (s *tableSuite) TestReadCountsGzipTSV(c *check.C) {
	var buf bytes.Buffer
	zw := pgzip.NewWriter(&buf)
	_, err := zw.Write([]byte("gene\tS1\tS2\nG1\t1\t2\n"))
	c.Assert(err, check.IsNil)
	c.Assert(zw.Close(), check.IsNil)

	counts, err := ReadCountsTable(&buf)
	c.Assert(err, check.IsNil)
	c.Check(counts.Samples, check.DeepEquals, []string{"S1", "S2"})
	c.Check(counts.Values, check.DeepEquals, [][]float64{{1, 2}})
}

func (s *tableSuite) TestReadCountsErrors(c *check.C) {
	for _, trial := range []struct {
		text string
		line int
	}{
		{"", 0},
		{"gene\nG1\n", 1},
		{"gene,S1,S2\nG1,1,2\nG2,1,x\n", 3},
		{"gene,S1,S2\nG1,1\n", 2},
		{"gene,S1,S2\nG1,1,2,3\n", 2},
	} {
		_, err := ReadCountsTable(strings.NewReader(trial.text))
		c.Assert(err, check.FitsTypeOf, &TableFormatError{}, check.Commentf("%q", trial.text))
		c.Check(err.(*TableFormatError).Line, check.Equals, trial.line, check.Commentf("%q: %s", trial.text, err))
		c.Check(IsInputError(err), check.Equals, true)
	}
}

func (s *tableSuite) TestReadMetadata(c *check.C) {
	meta := mustReadMetadata(c, "\ufeff sample ;group;notes\nS1;A;first\nS2;B\n")
	c.Check(meta.Columns, check.DeepEquals, []string{"sample", "group", "notes"})
	c.Check(meta.Rows, check.DeepEquals, [][]string{{"S1", "A", "first"}, {"S2", "B", ""}})
	c.Check(meta.ColumnIndex("group"), check.Equals, 1)
	c.Check(meta.ColumnIndex("Group"), check.Equals, -1)

	col, err := meta.Column("group")
	c.Check(err, check.IsNil)
	c.Check(col, check.DeepEquals, []string{"A", "B"})
	_, err = meta.Column("batch")
	c.Check(err, check.FitsTypeOf, &MissingColumnError{})
	c.Check(err, check.ErrorMatches, `metadata table has no column named "batch"`)
}

func (s *tableSuite) TestReadMetadataTooManyFields(c *check.C) {
	_, err := ReadMetadataTable(strings.NewReader("sample,group\nS1,A\nS2,B,extra\n"))
	c.Check(err, check.ErrorMatches, `metadata table line 3: 3 fields, header has 2`)
}

func (s *tableSuite) TestSniffDelimiter(c *check.C) {
	for _, trial := range []struct {
		header string
		delim  rune
	}{
		{"gene,S1,S2", ','},
		{"gene\tS1\tS2", '\t'},
		{"gene;S1;S2", ';'},
		{"gene\tS1,x\tS2", '\t'},
		{"gene", ','},
		{"a,b\tc", ','},
	} {
		c.Check(sniffDelimiter([]byte(trial.header)), check.Equals, trial.delim, check.Commentf("%q", trial.header))
	}
}
