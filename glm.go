// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package transcriptome

import (
	"fmt"
	"io"
	"log"
	"math"

	"github.com/kshedden/statmodel/glm"
	"github.com/kshedden/statmodel/statmodel"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var chisquared = distuv.ChiSquared{K: 1, Src: rand.NewSource(rand.Uint64())}

var glmConfig = &glm.Config{
	Family:         glm.NewFamily(glm.BinomialFamily),
	FitMethod:      "IRLS",
	ConcurrentIRLS: 1000,
	Log:            log.New(io.Discard, "", 0),
}

// normalize rescales a to zero mean and unit variance. It returns
// false (leaving a unchanged) if a is constant.
func normalize(a []float64) bool {
	mean, std := stat.MeanStdDev(a, nil)
	if std == 0 || math.IsNaN(std) {
		return false
	}
	for i, x := range a {
		a[i] = (x - mean) / std
	}
	return true
}

// Logistic regression.
//
// isGroup2 is the outcome for each grouped sample, in the same order
// as cols (indexes into a counts row). pcs holds one slice per
// principal component covariate, also in cols order.
//
// The returned func computes a likelihood-ratio p-value for adding
// the gene's expression to a model that has only an intercept and
// the PCA covariates. Samples with a missing (NaN) expression value
// are left out of both models.
func glmPvalueFunc(cols []int, isGroup2 []bool, pcs [][]float64) func(row []float64) float64 {
	pcaNames := make([]string, 0, len(pcs))
	covariates := make([][]statmodel.Dtype, 0, len(pcs))
	for i, pc := range pcs {
		series := append([]statmodel.Dtype(nil), pc...)
		normalize(series)
		covariates = append(covariates, series)
		pcaNames = append(pcaNames, fmt.Sprintf("pca%d", i))
	}
	outcome := make([]statmodel.Dtype, len(cols))
	for i, g2 := range isGroup2 {
		if g2 {
			outcome[i] = 1
		}
	}
	nullLogLike := glmLogLike(outcome, nil, covariates, pcaNames)

	return func(row []float64) float64 {
		expr := make([]statmodel.Dtype, 0, len(cols))
		keep := make([]bool, len(cols))
		complete := true
		for i, col := range cols {
			if math.IsNaN(row[col]) {
				complete = false
				continue
			}
			keep[i] = true
			expr = append(expr, row[col])
		}
		if !normalize(expr) {
			return 1
		}
		if complete {
			return lrtPvalue(nullLogLike, glmLogLike(outcome, expr, covariates, pcaNames))
		}
		sOutcome := subset(outcome, keep)
		sCovariates := make([][]statmodel.Dtype, len(covariates))
		for i, c := range covariates {
			sCovariates[i] = subset(c, keep)
		}
		return lrtPvalue(glmLogLike(sOutcome, nil, sCovariates, pcaNames), glmLogLike(sOutcome, expr, sCovariates, pcaNames))
	}
}

// glmLogLike fits outcome ~ constant [+ expression] + covariates and
// returns the log likelihood, or NaN if the fit fails.
func glmLogLike(outcome, expr []statmodel.Dtype, covariates [][]statmodel.Dtype, covariateNames []string) (ll float64) {
	defer func() {
		if recover() != nil {
			// typically "matrix singular or near-singular with condition number +Inf"
			ll = math.NaN()
		}
	}()
	constants := make([]statmodel.Dtype, len(outcome))
	for i := range constants {
		constants[i] = 1
	}
	data := [][]statmodel.Dtype{outcome, constants}
	names := []string{"outcome", "constants"}
	if expr != nil {
		data = append(data, expr)
		names = append(names, "expression")
	}
	data = append(data, covariates...)
	names = append(names, covariateNames...)
	dataset := statmodel.NewDataset(data, names)
	model, err := glm.NewGLM(dataset, "outcome", names[1:], glmConfig)
	if err != nil {
		return math.NaN()
	}
	return model.Fit().LogLike()
}

func lrtPvalue(llNull, llFull float64) float64 {
	if math.IsNaN(llNull) || math.IsNaN(llFull) {
		return math.NaN()
	}
	x := -2 * (llNull - llFull)
	if x < 0 {
		x = 0
	}
	return chisquared.Survival(x)
}

func subset(a []float64, keep []bool) []float64 {
	out := make([]float64, 0, len(a))
	for i, k := range keep {
		if k {
			out = append(out, a[i])
		}
	}
	return out
}
