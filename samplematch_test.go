package transcriptome

import (
	"github.com/sergi/go-diff/diffmatchpatch"
	"gopkg.in/check.v1"
)

type sampleMatchSuite struct{}

var _ = check.Suite(&sampleMatchSuite{})

func (s *sampleMatchSuite) TestReport(c *check.C) {
	counts := mustReadCounts(c, "gene,S1, S2,Smp3,S5,S5,Other\nG1,1,2,3,4,5,6\n")
	meta := mustReadMetadata(c, "sample,group\nS1,a\nS2 ,a\nsmp_3,b\nS9,b\nS9,b\nS2,a\n")
	rpt, err := MatchSamples(counts, meta, "sample")
	c.Assert(err, check.IsNil)
	c.Check(rpt.Matched, check.DeepEquals, []string{"S1", "S2"})
	c.Check(rpt.MissingInMetadata, check.DeepEquals, []string{"Smp3", "S5", "Other"})
	c.Check(rpt.MissingInCounts, check.DeepEquals, []string{"smp_3", "S9"})
	c.Check(rpt.DuplicateInMetadata, check.DeepEquals, []string{"S9", "S2"})
	c.Check(rpt.DuplicateInCounts, check.DeepEquals, []string{"S5"})
	c.Check(rpt.Suggestions, check.DeepEquals, []SampleSuggestion{
		{Sample: "Smp3", Closest: "smp_3", Distance: 1},
		{Sample: "S5", Closest: "S9", Distance: 1},
		{Sample: "Other"},
	})
	c.Check(rpt.OK(), check.Equals, false)
}

func (s *sampleMatchSuite) TestAllMatched(c *check.C) {
	rpt, err := MatchSamples(mustReadCounts(c, testCounts), mustReadMetadata(c, testMetadata), "sample")
	c.Assert(err, check.IsNil)
	c.Check(rpt.Matched, check.HasLen, 8)
	c.Check(rpt.MissingInMetadata, check.HasLen, 0)
	c.Check(rpt.Suggestions, check.HasLen, 0)
	c.Check(rpt.OK(), check.Equals, true)
}

func (s *sampleMatchSuite) TestMissingColumn(c *check.C) {
	_, err := MatchSamples(mustReadCounts(c, testCounts), mustReadMetadata(c, testMetadata), "Sample")
	c.Check(err, check.FitsTypeOf, &MissingColumnError{})
}

func (s *sampleMatchSuite) TestEditDistance(c *check.C) {
	dmp := diffmatchpatch.New()
	for _, trial := range []struct {
		a, b string
		d    int
	}{
		{"s1", "s1", 0},
		{"s1", "s10", 1},
		{"sample_1", "sample-1", 1},
		{"abc", "xyz", 3},
		{"", "ab", 2},
	} {
		c.Check(editDistance(dmp, trial.a, trial.b), check.Equals, trial.d, check.Commentf("%q %q", trial.a, trial.b))
	}
}
