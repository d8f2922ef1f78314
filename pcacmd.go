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

	log "github.com/sirupsen/logrus"
)

type pcaCommand struct{}

func (cmd *pcaCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	groupCol := flags.String("group-col", "", "metadata `column` holding group labels")
	components := flags.Int("components", DefaultPCAComponents, "number of components")
	format := flags.String("format", "csv", "output `format`: csv, tsv, or json")
	outputFilename := flags.String("o", "-", "output `file`")
	outputDir := flags.String("output-dir", "", "also write pca.npy and samples.csv in `directory`")
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
	log.Print("fitting")
	res, err := ComputePCA(counts, meta, *sampleCol, *groupCol, *components)
	if err != nil {
		return 1
	}
	log.Printf("projected %d samples onto %d components, explained variance ratio %.4f", len(res.Records), res.Components, res.ExplainedVarianceRatio)

	if *outputDir != "" {
		err = writePCAOutputDir(res, *outputDir)
		if err != nil {
			return 1
		}
	}
	output, err := create(*outputFilename, stdout)
	if err != nil {
		return 1
	}
	defer output.Close()
	bufw := bufio.NewWriter(output)
	err = WriteProjections(bufw, *format, res)
	if err != nil {
		return 1
	}
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	log.Print("done")
	return 0
}
