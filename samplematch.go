package transcriptome

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// maximum edit distance for suggesting a metadata sample ID
const maxSuggestionDistance = 2

type SampleSuggestion struct {
	Sample   string `json:"sample"`
	Closest  string `json:"closest,omitempty"`
	Distance int    `json:"distance,omitempty"`
}

// SampleMatchReport describes how well the counts columns and the
// metadata sample column line up, before any analysis is attempted.
type SampleMatchReport struct {
	Matched             []string           `json:"matched"`
	MissingInMetadata   []string           `json:"missing_in_metadata"`
	MissingInCounts     []string           `json:"missing_in_counts"`
	DuplicateInMetadata []string           `json:"duplicate_in_metadata"`
	DuplicateInCounts   []string           `json:"duplicate_in_counts"`
	Suggestions         []SampleSuggestion `json:"suggestions"`
}

// OK reports whether every sample appears exactly once in each table.
func (r *SampleMatchReport) OK() bool {
	return len(r.MissingInMetadata) == 0 && len(r.MissingInCounts) == 0 &&
		len(r.DuplicateInMetadata) == 0 && len(r.DuplicateInCounts) == 0
}

// MatchSamples compares trimmed counts column labels with the trimmed
// values of meta's sampleCol. For each counts sample with no metadata
// row, it suggests the metadata ID with the smallest case-insensitive
// edit distance, if that distance is at most 2.
func MatchSamples(counts *CountsTable, meta *MetadataTable, sampleCol string) (*SampleMatchReport, error) {
	metaIDs, err := meta.Column(sampleCol)
	if err != nil {
		return nil, err
	}
	rpt := &SampleMatchReport{
		Matched:             []string{},
		MissingInMetadata:   []string{},
		MissingInCounts:     []string{},
		DuplicateInMetadata: []string{},
		DuplicateInCounts:   []string{},
		Suggestions:         []SampleSuggestion{},
	}
	inMeta := map[string]int{}
	for i, id := range metaIDs {
		id = strings.TrimSpace(id)
		metaIDs[i] = id
		if inMeta[id]++; inMeta[id] == 2 {
			rpt.DuplicateInMetadata = append(rpt.DuplicateInMetadata, id)
		}
	}
	inCounts := map[string]int{}
	for _, label := range counts.Samples {
		id := strings.TrimSpace(label)
		if inCounts[id]++; inCounts[id] == 2 {
			rpt.DuplicateInCounts = append(rpt.DuplicateInCounts, id)
			continue
		} else if inCounts[id] > 2 {
			continue
		}
		if inMeta[id] > 0 {
			rpt.Matched = append(rpt.Matched, id)
		} else {
			rpt.MissingInMetadata = append(rpt.MissingInMetadata, id)
		}
	}
	seen := map[string]bool{}
	for _, id := range metaIDs {
		if inCounts[id] == 0 && !seen[id] {
			rpt.MissingInCounts = append(rpt.MissingInCounts, id)
		}
		seen[id] = true
	}

	dmp := diffmatchpatch.New()
	for _, id := range rpt.MissingInMetadata {
		sugg := SampleSuggestion{Sample: id}
		best := -1
		for _, cand := range rpt.MissingInCounts {
			d := editDistance(dmp, strings.ToLower(id), strings.ToLower(cand))
			if d <= maxSuggestionDistance && (best < 0 || d < best) {
				best, sugg.Closest, sugg.Distance = d, cand, d
			}
		}
		rpt.Suggestions = append(rpt.Suggestions, sugg)
	}
	return rpt, nil
}

func editDistance(dmp *diffmatchpatch.DiffMatchPatch, a, b string) int {
	return dmp.DiffLevenshtein(dmp.DiffMain(a, b, false))
}
