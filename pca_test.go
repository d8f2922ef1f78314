// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package transcriptome

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"golang.org/x/exp/rand"
	"gopkg.in/check.v1"
)

type pcaSuite struct{}

var _ = check.Suite(&pcaSuite{})

// G2 is 2*G1 and G3 is constant, so all variance lies on one axis.
const (
	rankOneCounts = `gene,S1,S2,S3,S4
G1,1,2,3,10
G2,2,4,6,20
G3,5,5,5,5
`
	rankOneMetadata = `sample,group
S4,b
S2,a
S1,a
S3,b
`
)

func (s *pcaSuite) TestRankOne(c *check.C) {
	counts := mustReadCounts(c, rankOneCounts)
	meta := mustReadMetadata(c, rankOneMetadata)
	res, err := ComputePCA(counts, meta, "sample", "group", 2)
	c.Assert(err, check.IsNil)
	c.Check(res.Components, check.Equals, 2)
	c.Assert(res.Records, check.HasLen, 4)
	c.Check(res.ExplainedVarianceRatio[0], closeTo, 1.0, 1e-9)
	c.Check(res.ExplainedVarianceRatio[1], closeTo, 0.0, 1e-9)

	expect := []float64{-15, -10, -5, 30}
	for i, rec := range res.Records {
		c.Check(rec.Sample, check.Equals, fmt.Sprintf("S%d", i+1))
		c.Check(rec.Components, check.HasLen, 2)
		c.Check(rec.Components[0], closeTo, expect[i]/math.Sqrt(5), 1e-9)
		c.Check(rec.Components[1], closeTo, 0.0, 1e-9)
	}
	c.Check(res.Records[0].Group, check.Equals, "a")
	c.Check(res.Records[3].Group, check.Equals, "b")
}

func (s *pcaSuite) TestSampleCount(c *check.C) {
	counts := mustReadCounts(c, rankOneCounts)

	meta := mustReadMetadata(c, "sample,group\nS1,a\nX,b\n")
	_, err := ComputePCA(counts, meta, "sample", "group", 2)
	c.Check(err, check.DeepEquals, &InsufficientSamplesError{Analysis: "PCA", Have: 1, Need: 2})

	meta = mustReadMetadata(c, "sample,group\nS1,a\nS4,b\n")
	res, err := ComputePCA(counts, meta, "sample", "group", 2)
	c.Assert(err, check.IsNil)
	c.Assert(res.Records, check.HasLen, 2)
	// two samples tie on |PC1|, so the first is positive
	c.Check(res.Records[0].Components[0] > 0, check.Equals, true)
	c.Check(res.Records[0].Components[0], closeTo, -res.Records[1].Components[0], 1e-9)
}

func (s *pcaSuite) TestScoreSign(c *check.C) {
	for _, trial := range []struct {
		score []float64
		sign  float64
	}{
		{[]float64{1, -3, 2}, -1},
		{[]float64{-1, 3, 2}, 1},
		{[]float64{0, 0}, 1},
		{[]float64{-2, 2}, -1},
		{[]float64{2, -2}, 1},
		// rounding noise does not break a tie
		{[]float64{-10.062305898749052, 10.062305898749054}, -1},
		{[]float64{10.062305898749052, -10.062305898749054}, 1},
	} {
		c.Check(scoreSign(trial.score), check.Equals, trial.sign, check.Commentf("%v", trial.score))
	}
}

func (s *pcaSuite) TestClampComponents(c *check.C) {
	counts := mustReadCounts(c, rankOneCounts)
	meta := mustReadMetadata(c, rankOneMetadata)
	res, err := ComputePCA(counts, meta, "sample", "group", 10)
	c.Assert(err, check.IsNil)
	c.Check(res.Components, check.Equals, 3)
	c.Check(res.ExplainedVarianceRatio, check.HasLen, 3)
	for _, rec := range res.Records {
		c.Check(rec.Components, check.HasLen, 3)
	}

	_, err = ComputePCA(counts, meta, "sample", "group", 0)
	c.Check(err, check.FitsTypeOf, &InvalidArgumentError{})
}

func (s *pcaSuite) TestMissingValue(c *check.C) {
	counts := mustReadCounts(c, "gene,S1,S2,S3\nG1,1,NA,3\nG2,1,2,3\n")
	meta := mustReadMetadata(c, "sample,group\nS1,a\nS2,a\nS3,b\n")
	_, err := ComputePCA(counts, meta, "sample", "group", 2)
	c.Check(err, check.FitsTypeOf, &TableFormatError{})
	c.Check(err, check.ErrorMatches, `.*gene "G1" has no value for sample "S2".*`)
}

func (s *pcaSuite) TestRandom(c *check.C) {
	rnd := rand.New(rand.NewSource(42))
	nsamples, ngenes := 12, 60
	var counts, meta strings.Builder
	counts.WriteString("gene")
	meta.WriteString("sample,group\n")
	for j := 0; j < nsamples; j++ {
		fmt.Fprintf(&counts, ",S%d", j)
		fmt.Fprintf(&meta, "S%d,g%d\n", j, j%3)
	}
	counts.WriteString("\n")
	for i := 0; i < ngenes; i++ {
		fmt.Fprintf(&counts, "G%d", i)
		for j := 0; j < nsamples; j++ {
			fmt.Fprintf(&counts, ",%g", rnd.ExpFloat64()*float64(1+i%7))
		}
		counts.WriteString("\n")
	}
	res, err := ComputePCA(mustReadCounts(c, counts.String()), mustReadMetadata(c, meta.String()), "sample", "group", 4)
	c.Assert(err, check.IsNil)
	c.Check(res.Components, check.Equals, 4)

	total := 0.0
	for k, ratio := range res.ExplainedVarianceRatio {
		total += ratio
		if k > 0 {
			c.Check(ratio <= res.ExplainedVarianceRatio[k-1]+1e-9, check.Equals, true, check.Commentf("%v", res.ExplainedVarianceRatio))
		}
	}
	c.Check(total <= 1+1e-9, check.Equals, true)

	for k := 0; k < res.Components; k++ {
		sum, maxAbs, atMax := 0.0, 0.0, 0.0
		for _, rec := range res.Records {
			v := rec.Components[k]
			sum += v
			if math.Abs(v) > maxAbs {
				maxAbs, atMax = math.Abs(v), v
			}
		}
		c.Check(sum/float64(nsamples), closeTo, 0.0, 1e-9)
		c.Check(atMax > 0, check.Equals, true, check.Commentf("component %d", k))
	}
}

func (s *pcaSuite) TestRecordJSON(c *check.C) {
	buf, err := json.Marshal([]ProjectionRecord{
		{Sample: "S1", Group: "a", Components: []float64{1.5, -2}},
		{Sample: `S"2`, Group: "b", Components: []float64{math.NaN()}},
	})
	c.Assert(err, check.IsNil)
	c.Check(string(buf), check.Equals, `[{"PC1":1.5,"PC2":-2,"Sample":"S1","Group":"a"},{"PC1":null,"Sample":"S\"2","Group":"b"}]`)
}
