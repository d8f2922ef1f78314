// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package transcriptome

import (
	"math"

	"golang.org/x/exp/rand"
	"gopkg.in/check.v1"
)

type glmSuite struct{}

var _ = check.Suite(&glmSuite{})

func (s *glmSuite) TestPvalue(c *check.C) {
	cols := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	isGroup2 := []bool{false, false, false, false, false, false, true, true, true, true, true, true}
	pvalue := glmPvalueFunc(cols, isGroup2, nil)
	c.Check(pvalue([]float64{1, 2, 3, 4, 5, 7, 4, 6, 8, 9, 10, 11}), closeTo, 0.006614183254610228, 1e-6)
	c.Check(pvalue([]float64{1, 5, 3, 4, 2, 6, 2, 6, 1, 5, 3, 4}), closeTo, 1.0, 1e-6)
	c.Check(pvalue([]float64{2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2}), check.Equals, 1.0)
}

func (s *glmSuite) TestPvalueMissingValues(c *check.C) {
	nan := math.NaN()
	// cols select a subset of the row, in a different order
	cols := []int{7, 0, 1, 2, 3, 4, 5, 8, 9, 10, 11, 12, 13}
	isGroup2 := []bool{false, false, false, false, false, false, false, true, true, true, true, true, true}
	pvalue := glmPvalueFunc(cols, isGroup2, nil)
	row := []float64{1, 2, 3, 4, 5, 7, 999, nan, 4, 6, 8, 9, 10, 11}
	c.Check(pvalue(row), closeTo, 0.006614183254610228, 1e-6)
}

func (s *glmSuite) TestPvalueWithCovariates(c *check.C) {
	rnd := rand.New(rand.NewSource(7))
	n := 40
	cols := make([]int, n)
	isGroup2 := make([]bool, n)
	pc := make([]float64, n)
	row := make([]float64, n)
	for i := range cols {
		cols[i] = i
		isGroup2[i] = i%2 == 1
		pc[i] = rnd.NormFloat64()
		row[i] = rnd.NormFloat64()
		if isGroup2[i] {
			row[i] += 0.5
		}
	}
	p := glmPvalueFunc(cols, isGroup2, [][]float64{pc})(row)
	c.Check(p >= 0 && p <= 1, check.Equals, true, check.Commentf("p=%v", p))
}

func (s *glmSuite) TestNormalize(c *check.C) {
	a := []float64{1, 2, 3}
	c.Check(normalize(a), check.Equals, true)
	c.Check(a, check.DeepEquals, []float64{-1, 0, 1})
	b := []float64{4, 4}
	c.Check(normalize(b), check.Equals, false)
	c.Check(b, check.DeepEquals, []float64{4, 4})
}

func (s *glmSuite) TestLRT(c *check.C) {
	c.Check(lrtPvalue(-5, -5), check.Equals, 1.0)
	c.Check(lrtPvalue(-5, -5.000001), check.Equals, 1.0)
	c.Check(lrtPvalue(-10, -8.079), closeTo, 0.04999, 1e-4)
	c.Check(math.IsNaN(lrtPvalue(math.NaN(), -1)), check.Equals, true)
}
