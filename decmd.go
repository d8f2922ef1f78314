// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package transcriptome

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"runtime"

	log "github.com/sirupsen/logrus"
)

type deCommand struct{}

func (cmd *deCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	countsFilename := flags.String("counts", "", "counts `file` (genes x samples, csv or tsv, optionally gzipped; - for stdin)")
	metadataFilename := flags.String("metadata", "", "sample metadata `file` (csv or tsv)")
	sampleCol := flags.String("sample-col", "", "metadata `column` holding sample IDs")
	groupCol := flags.String("group-col", "", "metadata `column` holding group labels (exactly 2 distinct values)")
	test := flags.String("test", "welch", "per-gene `test`: welch or glm")
	pcaCovariates := flags.Int("pca-covariates", 0, "number of principal components to use as covariates with -test=glm")
	workers := flags.Int("workers", runtime.NumCPU(), "number of genes chunks to score concurrently")
	format := flags.String("format", "csv", "output `format`: csv, tsv, or json")
	outputFilename := flags.String("o", "-", "output `file`")
	significant := flags.Bool("significant", false, "write only the IDs of significant genes, one per line")
	maxP := flags.Float64("max-p", 0.05, "p-value `threshold` for -significant")
	minAbsLog2FC := flags.Float64("min-abs-log2fc", 1, "absolute log2 fold change `threshold` for -significant")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if flags.NArg() > 0 {
		err = fmt.Errorf("errant command line arguments after parsed flags: %v", flags.Args())
		return 2
	}
	if err = checkInputFlags(*countsFilename, *metadataFilename, *sampleCol); err != nil {
		return 2
	} else if *groupCol == "" {
		err = errors.New("must provide -group-col")
		return 2
	} else if err = checkFormat(*format); err != nil {
		return 2
	}

	counts, meta, err := loadTables(*countsFilename, *metadataFilename, stdin)
	if err != nil {
		return 1
	}
	log.Print("computing differential expression")
	res, err := ComputeDifferentialExpression(counts, meta, *sampleCol, *groupCol, DEOptions{
		Test:          *test,
		PCACovariates: *pcaCovariates,
		Workers:       *workers,
	})
	if err != nil {
		return 1
	}
	log.Printf("tested %d genes, %q (%d samples) vs. %q (%d samples)", len(res.Records), res.Group2, len(res.Group2Samples), res.Group1, len(res.Group1Samples))

	output, err := create(*outputFilename, stdout)
	if err != nil {
		return 1
	}
	defer output.Close()
	bufw := bufio.NewWriter(output)
	if *significant {
		genes := SignificantGenes(res.Records, *maxP, *minAbsLog2FC)
		log.Printf("%d significant genes (p < %g, |log2FC| > %g)", len(genes), *maxP, *minAbsLog2FC)
		for _, g := range genes {
			fmt.Fprintln(bufw, g)
		}
	} else {
		err = WriteDERecords(bufw, *format, res.Records)
		if err != nil {
			return 1
		}
	}
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}
