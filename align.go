// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package transcriptome

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

// Alignment is the set of samples present in both the counts and
// metadata tables, in counts column order.
type Alignment struct {
	Samples     []string // trimmed sample IDs
	CountsIndex []int    // column index in CountsTable.Samples
	MetadataRow []int    // row index in MetadataTable.Rows
	Groups      []string // group column value for each sample
}

func (a *Alignment) Len() int { return len(a.Samples) }

// Align matches counts columns to metadata rows by sample ID after
// trimming surrounding whitespace on both sides. Neither table is
// modified.
func Align(counts *CountsTable, meta *MetadataTable, sampleCol, groupCol string) (*Alignment, error) {
	sampleIdx := meta.ColumnIndex(sampleCol)
	if sampleIdx < 0 {
		return nil, &MissingColumnError{Table: "metadata", Column: sampleCol}
	}
	groupIdx := meta.ColumnIndex(groupCol)
	if groupIdx < 0 {
		return nil, &MissingColumnError{Table: "metadata", Column: groupCol}
	}

	metaRow, err := metadataIndex(meta, sampleIdx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(counts.Samples))
	aln := &Alignment{}
	for i, label := range counts.Samples {
		id := strings.TrimSpace(label)
		if seen[id] {
			return nil, &DuplicateSampleError{Table: "counts", Sample: id}
		}
		seen[id] = true
		row, ok := metaRow[id]
		if !ok {
			continue
		}
		aln.Samples = append(aln.Samples, id)
		aln.CountsIndex = append(aln.CountsIndex, i)
		aln.MetadataRow = append(aln.MetadataRow, row)
		aln.Groups = append(aln.Groups, meta.Rows[row][groupIdx])
	}
	log.Debugf("aligned %d of %d counts samples with %d metadata rows", aln.Len(), len(counts.Samples), len(meta.Rows))
	return aln, nil
}

// metadataIndex maps trimmed sample IDs to metadata row indexes.
func metadataIndex(meta *MetadataTable, sampleIdx int) (map[string]int, error) {
	idx := make(map[string]int, len(meta.Rows))
	for i, row := range meta.Rows {
		id := strings.TrimSpace(row[sampleIdx])
		if _, dup := idx[id]; dup {
			return nil, &DuplicateSampleError{Table: "metadata", Sample: id}
		}
		idx[id] = i
	}
	return idx, nil
}

// distinctGroups returns the distinct group labels of the aligned
// samples, in order of first appearance in counts column order.
func (a *Alignment) distinctGroups() []string {
	seen := map[string]bool{}
	groups := []string{}
	for _, g := range a.Groups {
		if !seen[g] {
			seen[g] = true
			groups = append(groups, g)
		}
	}
	return groups
}
