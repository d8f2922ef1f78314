// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package transcriptome

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"
)

type enrichCommand struct{}

func (cmd *enrichCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	enricher := NewEnricher()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "", "input `file` with one gene ID per line (- for stdin; default: use command line arguments)")
	organism := flags.String("organism", DefaultOrganism, "organism `code`, e.g., hsapiens or mmusculus")
	flags.StringVar(&enricher.URL, "url", enricher.URL, "enrichment service `URL`")
	flags.DurationVar(&enricher.Timeout, "timeout", enricher.Timeout, "timeout for each request attempt")
	flags.IntVar(&enricher.Attempts, "attempts", enricher.Attempts, "maximum request attempts")
	flags.Float64Var(&enricher.Threshold, "threshold", enricher.Threshold, "significance `threshold` passed to the service")
	sources := flags.String("sources", strings.Join(enricher.Sources, ","), "comma-separated ontology/pathway `sources`")
	format := flags.String("format", "csv", "output `format`: csv, tsv, or json")
	outputFilename := flags.String("o", "-", "output `file`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if err = checkFormat(*format); err != nil {
		return 2
	}
	enricher.Sources = strings.Split(*sources, ",")

	genes := flags.Args()
	if *inputFilename != "" {
		var f io.ReadCloser
		f, err = open(*inputFilename, stdin)
		if err != nil {
			return 1
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			genes = append(genes, strings.TrimSpace(scanner.Text()))
		}
		err = scanner.Err()
		if err != nil {
			return 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(enricher.Attempts+1)*(enricher.Timeout+enricher.RetryDelay))
	defer cancel()
	recs, err := enricher.Enrich(ctx, genes, *organism)
	if err != nil {
		return 1
	}
	output, err := create(*outputFilename, stdout)
	if err != nil {
		return 1
	}
	defer output.Close()
	bufw := bufio.NewWriter(output)
	err = WriteEnrichment(bufw, *format, recs)
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
	return 0
}
