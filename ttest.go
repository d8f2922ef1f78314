// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package transcriptome

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// welchTTest is a two-sided two-sample t-test without the equal
// variance assumption. Both samples need at least 2 values.
//
// When both samples have zero variance the statistic is 0 (p=1) if
// the means are equal and ±Inf (p=0) otherwise.
func welchTTest(a, b []float64) (t, p float64) {
	m1, v1 := stat.MeanVariance(a, nil)
	m2, v2 := stat.MeanVariance(b, nil)
	n1, n2 := float64(len(a)), float64(len(b))
	se1, se2 := v1/n1, v2/n2
	se := math.Sqrt(se1 + se2)
	if se == 0 {
		if m1 == m2 {
			return 0, 1
		}
		return math.Copysign(math.Inf(1), m1-m2), 0
	}
	t = (m1 - m2) / se
	df := welchDF(se1, se2, n1, n2)
	tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p = 2 * tdist.Survival(math.Abs(t))
	if p > 1 {
		p = 1
	}
	return t, p
}

// welchDF is the Welch–Satterthwaite degrees of freedom, given each
// sample's squared standard error and size.
func welchDF(se1, se2, n1, n2 float64) float64 {
	return (se1 + se2) * (se1 + se2) / (se1*se1/(n1-1) + se2*se2/(n2-1))
}

func mean(a []float64) float64 {
	if len(a) == 0 {
		return math.NaN()
	}
	return stat.Mean(a, nil)
}
