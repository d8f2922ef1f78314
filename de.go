// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package transcriptome

import (
	"encoding/json"
	"fmt"
	"math"
	"runtime"

	log "github.com/sirupsen/logrus"
)

const (
	// added to group means before taking log2
	foldChangePseudoCount = 1e-6
	// added to p-values before taking -log10
	pvaluePseudoCount = 1e-10

	deChunkSize = 512
)

// DERecord is the differential expression result for one gene.
//
// With the Welch test, a gene that is constant within both groups
// gets PValue 1 if the two group means are equal (for example all
// zeros) and PValue 0 if they differ, rather than NaN.
type DERecord struct {
	Gene      string  `json:"Gene"`
	Log2FC    float64 `json:"log2FC"`
	PValue    float64 `json:"pvalue"`
	NegLog10P float64 `json:"neglog10p"`
}

// MarshalJSON encodes non-finite values as null.
func (r DERecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Gene      string    `json:"Gene"`
		Log2FC    jsonFloat `json:"log2FC"`
		PValue    jsonFloat `json:"pvalue"`
		NegLog10P jsonFloat `json:"neglog10p"`
	}{r.Gene, jsonFloat(r.Log2FC), jsonFloat(r.PValue), jsonFloat(r.NegLog10P)})
}

type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(f))
}

// DEResult lists one record per tested gene, in counts row order.
// Records is never nil.
type DEResult struct {
	Group1        string
	Group2        string
	Group1Samples []string
	Group2Samples []string
	Records       []DERecord
}

// DEOptions selects the per-gene test. The zero value is a Welch
// t-test using all available CPUs.
type DEOptions struct {
	// "welch" (default) or "glm"
	Test string
	// principal components used as covariates by the glm test
	PCACovariates int
	// concurrent scoring goroutines (default runtime.NumCPU())
	Workers int
}

// ComputeDifferentialExpression compares the two groups named by
// groupCol across the samples shared by counts and meta.
//
// Group1 is the group of the first aligned sample in counts column
// order, and log2FC is group2 relative to group1. A gene is left out
// of the result if either group has fewer than 2 non-missing values
// for it.
func ComputeDifferentialExpression(counts *CountsTable, meta *MetadataTable, sampleCol, groupCol string, opts DEOptions) (*DEResult, error) {
	aln, err := Align(counts, meta, sampleCol, groupCol)
	if err != nil {
		return nil, err
	}
	if aln.Len() < 2 {
		return nil, &InsufficientSamplesError{Analysis: "differential expression", Have: aln.Len(), Need: 2}
	}
	groups := aln.distinctGroups()
	if len(groups) != 2 {
		return nil, &InvalidGroupingError{Column: groupCol, Count: len(groups), Values: groups}
	}

	res := &DEResult{
		Group1:  groups[0],
		Group2:  groups[1],
		Records: []DERecord{},
	}
	var idx1, idx2 []int
	isGroup2 := make([]bool, aln.Len())
	for i, g := range aln.Groups {
		if g == res.Group1 {
			idx1 = append(idx1, aln.CountsIndex[i])
			res.Group1Samples = append(res.Group1Samples, aln.Samples[i])
		} else {
			idx2 = append(idx2, aln.CountsIndex[i])
			res.Group2Samples = append(res.Group2Samples, aln.Samples[i])
			isGroup2[i] = true
		}
	}
	log.Debugf("DE: group1 %q has %d samples, group2 %q has %d samples", res.Group1, len(idx1), res.Group2, len(idx2))
	if len(idx1) < 2 || len(idx2) < 2 {
		log.Warnf("DE: fewer than 2 samples in a group (%q: %d, %q: %d), no genes can be tested", res.Group1, len(idx1), res.Group2, len(idx2))
	}

	var glmPvalue func([]float64) float64
	switch opts.Test {
	case "", "welch":
	case "glm":
		var pcs [][]float64
		if opts.PCACovariates > 0 {
			pca, err := principalComponents(counts, aln, opts.PCACovariates)
			if err != nil {
				return nil, fmt.Errorf("PCA covariates: %w", err)
			}
			for c := 0; c < pca.components; c++ {
				pc := make([]float64, aln.Len())
				for i := range pc {
					pc[i] = pca.scores.At(i, c)
				}
				pcs = append(pcs, pc)
			}
		}
		glmPvalue = glmPvalueFunc(aln.CountsIndex, isGroup2, pcs)
	default:
		return nil, &InvalidArgumentError{Msg: fmt.Sprintf("unknown DE test %q (expected \"welch\" or \"glm\")", opts.Test)}
	}

	scored := make([]DERecord, len(counts.Genes))
	tested := make([]bool, len(counts.Genes))
	workers := opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	thr := throttle{Max: workers}
	for start := 0; start < len(counts.Genes); start += deChunkSize {
		start, end := start, start+deChunkSize
		if end > len(counts.Genes) {
			end = len(counts.Genes)
		}
		thr.Go(func() error {
			x1 := make([]float64, 0, len(idx1))
			x2 := make([]float64, 0, len(idx2))
			for i := start; i < end; i++ {
				row := counts.Values[i]
				x1 = pick(x1[:0], row, idx1)
				x2 = pick(x2[:0], row, idx2)
				if len(x1) < 2 || len(x2) < 2 {
					continue
				}
				var p float64
				if glmPvalue != nil {
					p = glmPvalue(row)
				} else {
					_, p = welchTTest(x1, x2)
				}
				scored[i] = DERecord{
					Gene:      counts.Genes[i],
					Log2FC:    math.Log2(mean(x2)+foldChangePseudoCount) - math.Log2(mean(x1)+foldChangePseudoCount),
					PValue:    p,
					NegLog10P: -math.Log10(p + pvaluePseudoCount),
				}
				tested[i] = true
			}
			return nil
		})
	}
	if err := thr.Wait(); err != nil {
		return nil, fmt.Errorf("DE: %w", err)
	}
	for i, ok := range tested {
		if ok {
			res.Records = append(res.Records, scored[i])
		}
	}
	log.Debugf("DE: tested %d of %d genes", len(res.Records), len(counts.Genes))
	return res, nil
}

// pick appends the non-missing values row[idx[0]], row[idx[1]], ...
// to dst.
func pick(dst, row []float64, idx []int) []float64 {
	for _, i := range idx {
		if v := row[i]; !math.IsNaN(v) {
			dst = append(dst, v)
		}
	}
	return dst
}

// SignificantGenes returns the genes whose p-value is below maxP and
// whose absolute log2 fold change exceeds minAbsLog2FC, in record
// order.
func SignificantGenes(records []DERecord, maxP, minAbsLog2FC float64) []string {
	genes := []string{}
	for _, r := range records {
		if r.PValue < maxP && math.Abs(r.Log2FC) > minAbsLog2FC {
			genes = append(genes, r.Gene)
		}
	}
	return genes
}
