// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package transcriptome

// Summary describes the shape of an uploaded counts/metadata pair.
type Summary struct {
	CountsShape     [2]int   `json:"counts_shape"`
	MetadataShape   [2]int   `json:"metadata_shape"`
	SampleColumns   []string `json:"sample_columns"`
	MetadataColumns []string `json:"metadata_columns"`
}

// number of counts sample columns listed in a Summary
const summarySampleColumns = 5

func Summarize(counts *CountsTable, meta *MetadataTable) Summary {
	n := len(counts.Samples)
	if n > summarySampleColumns {
		n = summarySampleColumns
	}
	return Summary{
		CountsShape:     [2]int{len(counts.Genes), len(counts.Samples)},
		MetadataShape:   [2]int{len(meta.Rows), len(meta.Columns)},
		SampleColumns:   append([]string{}, counts.Samples[:n]...),
		MetadataColumns: append([]string{}, meta.Columns...),
	}
}
