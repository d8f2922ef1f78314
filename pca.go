// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package transcriptome

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/james-bowman/nlp"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultPCAComponents is the number of principal components computed
// when the caller does not ask for a specific number.
const DefaultPCAComponents = 2

// ProjectionRecord is one sample's position on the principal
// component axes.
type ProjectionRecord struct {
	Sample     string
	Components []float64
	Group      string
}

// MarshalJSON encodes r as {"PC1":...,"PCn":...,"Sample":...,"Group":...}.
func (r ProjectionRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range r.Components {
		fmt.Fprintf(&buf, "%q:", fmt.Sprintf("PC%d", i+1))
		j, err := jsonFloat(v).MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(j)
		buf.WriteByte(',')
	}
	for i, kv := range [][2]string{{"Sample", r.Sample}, {"Group", r.Group}} {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(kv[0])
		v, err := json.Marshal(kv[1])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// PCAResult holds one record per aligned sample, in counts column
// order.
type PCAResult struct {
	// number of components actually computed, which is less than the
	// number requested if there are fewer samples or genes
	Components int
	// fraction of the total variance along each component
	ExplainedVarianceRatio []float64
	Records                []ProjectionRecord
}

// ComputePCA projects the samples shared by counts and meta onto their
// first nComponents principal components. Genes are centered but not
// scaled.
//
// The sign of each component is chosen so the sample with the largest
// absolute score on that component has a positive score. Among
// samples whose absolute scores tie, the first one is made positive.
func ComputePCA(counts *CountsTable, meta *MetadataTable, sampleCol, groupCol string, nComponents int) (*PCAResult, error) {
	if nComponents < 1 {
		return nil, &InvalidArgumentError{Msg: fmt.Sprintf("number of PCA components must be at least 1, not %d", nComponents)}
	}
	aln, err := Align(counts, meta, sampleCol, groupCol)
	if err != nil {
		return nil, err
	}
	if aln.Len() < 2 {
		return nil, &InsufficientSamplesError{Analysis: "PCA", Have: aln.Len(), Need: 2}
	}
	pca, err := principalComponents(counts, aln, nComponents)
	if err != nil {
		return nil, err
	}
	res := &PCAResult{
		Components:             pca.components,
		ExplainedVarianceRatio: pca.explained,
		Records:                make([]ProjectionRecord, aln.Len()),
	}
	for i, sample := range aln.Samples {
		coords := make([]float64, pca.components)
		for c := range coords {
			coords[c] = pca.scores.At(i, c)
		}
		res.Records[i] = ProjectionRecord{
			Sample:     sample,
			Components: coords,
			Group:      aln.Groups[i],
		}
	}
	return res, nil
}

type pcaFit struct {
	components int
	scores     *mat.Dense // aligned samples x components
	explained  []float64
}

// principalComponents builds the centered samples x genes matrix for
// the aligned samples and returns the sign-normalized scores.
func principalComponents(counts *CountsTable, aln *Alignment, n int) (*pcaFit, error) {
	rows, cols := aln.Len(), len(counts.Genes)
	if cols == 0 {
		return nil, &TableFormatError{Table: "counts", Msg: "cannot do PCA: no genes"}
	}
	k := n
	if k > rows {
		k = rows
	}
	if k > cols {
		k = cols
	}
	if k < n {
		log.Debugf("PCA: %d components requested, computing %d (%d samples, %d genes)", n, k, rows, cols)
	}

	data := mat.NewDense(rows, cols, nil)
	for j, values := range counts.Values {
		for i, ci := range aln.CountsIndex {
			v := values[ci]
			if math.IsNaN(v) {
				return nil, &TableFormatError{Table: "counts", Msg: fmt.Sprintf("cannot do PCA: gene %q has no value for sample %q", counts.Genes[j], aln.Samples[i])}
			}
			data.Set(i, j, v)
		}
	}
	totalVariance := 0.0
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, data)
		mean, variance := stat.MeanVariance(col, nil)
		totalVariance += variance
		for i, v := range col {
			data.Set(i, j, v-mean)
		}
	}

	scores, err := fitTransformPCA(data, k)
	if err != nil {
		return nil, err
	}
	fit := &pcaFit{components: k, scores: scores, explained: make([]float64, k)}
	score := make([]float64, rows)
	for c := 0; c < k; c++ {
		mat.Col(score, c, scores)
		if scoreSign(score) < 0 {
			for i, v := range score {
				scores.Set(i, c, -v)
			}
		}
		if totalVariance > 0 {
			fit.explained[c] = stat.Variance(score, nil) / totalVariance
		}
	}
	return fit, nil
}

// relative difference below which two absolute scores count as a tie
const pcaSignTieTolerance = 1e-12

// scoreSign returns the sign of the score with the largest absolute
// value, or +1 if all scores are zero. A later score only takes over
// if it is larger by more than pcaSignTieTolerance.
func scoreSign(score []float64) float64 {
	maxAbs, sign := 0.0, 1.0
	for _, v := range score {
		if math.Abs(v) > maxAbs*(1+pcaSignTieTolerance) {
			maxAbs, sign = math.Abs(v), math.Copysign(1, v)
		}
	}
	return sign
}

// fitTransformPCA fits a k-component PCA to the rows of a centered
// samples x features matrix and returns the samples x k projection.
func fitTransformPCA(centered *mat.Dense, k int) (scores *mat.Dense, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PCA failed: %v", r)
		}
	}()
	log.Debug("PCA: fitting")
	transformer := nlp.NewPCA(k)
	transformer.Fit(centered.T())
	proj, err := transformer.Transform(centered.T())
	if err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(proj.T()), nil
}
