// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package transcriptome

import (
	"gopkg.in/check.v1"
)

type alignSuite struct{}

var _ = check.Suite(&alignSuite{})

func (s *alignSuite) TestTrimAndOrder(c *check.C) {
	counts := mustReadCounts(c, "gene, S1,S2 ,S3\nG1,1,2,3\n")
	meta := mustReadMetadata(c, "id,grp\nS4,x\n S2,b\nS1 ,a\n")
	aln, err := Align(counts, meta, "id", "grp")
	c.Assert(err, check.IsNil)
	c.Check(aln.Len(), check.Equals, 2)
	c.Check(aln.Samples, check.DeepEquals, []string{"S1", "S2"})
	c.Check(aln.CountsIndex, check.DeepEquals, []int{0, 1})
	c.Check(aln.MetadataRow, check.DeepEquals, []int{2, 1})
	c.Check(aln.Groups, check.DeepEquals, []string{"a", "b"})
	c.Check(aln.distinctGroups(), check.DeepEquals, []string{"a", "b"})

	// inputs are not modified
	c.Check(counts.Samples, check.DeepEquals, []string{" S1", "S2 ", "S3"})
	c.Check(meta.Rows[1][0], check.Equals, " S2")
}

func (s *alignSuite) TestMissingColumns(c *check.C) {
	counts := mustReadCounts(c, testCounts)
	meta := mustReadMetadata(c, testMetadata)
	_, err := Align(counts, meta, "sample_id", "condition")
	c.Check(err, check.DeepEquals, &MissingColumnError{Table: "metadata", Column: "sample_id"})
	_, err = Align(counts, meta, "sample", "group")
	c.Check(err, check.DeepEquals, &MissingColumnError{Table: "metadata", Column: "group"})
}

func (s *alignSuite) TestDuplicates(c *check.C) {
	counts := mustReadCounts(c, testCounts)
	meta := mustReadMetadata(c, "sample,condition\nC1,control\n C1,treated\n")
	_, err := Align(counts, meta, "sample", "condition")
	c.Check(err, check.DeepEquals, &DuplicateSampleError{Table: "metadata", Sample: "C1"})

	counts = mustReadCounts(c, "gene,C1,C2,C1 \nG1,1,2,3\n")
	meta = mustReadMetadata(c, testMetadata)
	_, err = Align(counts, meta, "sample", "condition")
	c.Check(err, check.DeepEquals, &DuplicateSampleError{Table: "counts", Sample: "C1"})
	c.Check(IsInputError(err), check.Equals, true)
}

func (s *alignSuite) TestNoOverlap(c *check.C) {
	counts := mustReadCounts(c, "gene,X1,X2\nG1,1,2\n")
	meta := mustReadMetadata(c, testMetadata)
	aln, err := Align(counts, meta, "sample", "condition")
	c.Assert(err, check.IsNil)
	c.Check(aln.Len(), check.Equals, 0)
	c.Check(aln.distinctGroups(), check.HasLen, 0)
}
