// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package transcriptome

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
)

// output formats accepted by the Write* funcs
var outputFormats = map[string]rune{
	"csv": ',',
	"tsv": '\t',
}

func checkFormat(format string) error {
	if _, ok := outputFormats[format]; !ok && format != "json" {
		return &InvalidArgumentError{Msg: fmt.Sprintf("unknown output format %q (expected json, csv, or tsv)", format)}
	}
	return nil
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "NA"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// writeTable writes a header row and data rows as csv/tsv, or encodes
// v as json.
func writeTable(w io.Writer, format string, v interface{}, header []string, rows func(func([]string) error) error) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	if format == "json" {
		return json.NewEncoder(w).Encode(v)
	}
	cw := csv.NewWriter(w)
	cw.Comma = outputFormats[format]
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := rows(cw.Write); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func WriteDERecords(w io.Writer, format string, recs []DERecord) error {
	if recs == nil {
		recs = []DERecord{}
	}
	return writeTable(w, format, recs, []string{"Gene", "log2FC", "pvalue", "neglog10p"}, func(write func([]string) error) error {
		for _, r := range recs {
			err := write([]string{r.Gene, formatFloat(r.Log2FC), formatFloat(r.PValue), formatFloat(r.NegLog10P)})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func WriteProjections(w io.Writer, format string, res *PCAResult) error {
	header := make([]string, 0, res.Components+2)
	for c := 0; c < res.Components; c++ {
		header = append(header, fmt.Sprintf("PC%d", c+1))
	}
	header = append(header, "Sample", "Group")
	return writeTable(w, format, res.Records, header, func(write func([]string) error) error {
		for _, r := range res.Records {
			row := make([]string, 0, len(header))
			for _, v := range r.Components {
				row = append(row, formatFloat(v))
			}
			if err := write(append(row, r.Sample, r.Group)); err != nil {
				return err
			}
		}
		return nil
	})
}

func WriteEnrichment(w io.Writer, format string, recs []EnrichmentRecord) error {
	if recs == nil {
		recs = []EnrichmentRecord{}
	}
	return writeTable(w, format, recs, enrichmentFields, func(write func([]string) error) error {
		for _, r := range recs {
			if err := write([]string{r.TermID, r.Name, formatFloat(r.PValue), r.Source}); err != nil {
				return err
			}
		}
		return nil
	})
}

// writePCAOutputDir writes the projection matrix to pca.npy (samples x
// components, float64) and the sample list with coordinates to
// samples.csv.
func writePCAOutputDir(res *PCAResult, outputDir string) error {
	rows, cols := len(res.Records), res.Components
	out := make([]float64, 0, rows*cols)
	for _, r := range res.Records {
		out = append(out, r.Components...)
	}
	fnm := outputDir + "/pca.npy"
	log.Infof("writing numpy: %s (%d rows, %d cols)", fnm, rows, cols)
	output, err := os.OpenFile(fnm, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	defer output.Close()
	bufw := bufio.NewWriter(output)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return fmt.Errorf("gonpy.NewWriter: %w", err)
	}
	npw.Shape = []int{rows, cols}
	err = npw.WriteFloat64(out)
	if err != nil {
		return fmt.Errorf("WriteFloat64: %w", err)
	}
	err = bufw.Flush()
	if err != nil {
		return err
	}
	err = output.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", fnm, err)
	}
	return writeSampleInfo(res, outputDir)
}

func writeSampleInfo(res *PCAResult, outputDir string) error {
	fnm := outputDir + "/samples.csv"
	log.Infof("writing sample metadata to %s", fnm)
	f, err := os.Create(fnm)
	if err != nil {
		return err
	}
	defer f.Close()
	pcaLabels := ""
	for c := 0; c < res.Components; c++ {
		pcaLabels += fmt.Sprintf(",PC%d", c+1)
	}
	_, err = fmt.Fprintf(f, "Index,SampleID,Group%s\n", pcaLabels)
	if err != nil {
		return err
	}
	for i, r := range res.Records {
		var pcavals string
		for _, v := range r.Components {
			pcavals += fmt.Sprintf(",%f", v)
		}
		_, err = fmt.Fprintf(f, "%d,%s,%s%s\n", i, r.Sample, r.Group, pcavals)
		if err != nil {
			return fmt.Errorf("write %s: %w", fnm, err)
		}
	}
	err = f.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", fnm, err)
	}
	return nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
