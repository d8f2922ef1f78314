package transcriptome

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
)

// summaryCommand prints the shape of a counts/metadata pair as JSON.
type summaryCommand struct{}

func (cmd *summaryCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	err := cmd.run(prog, args, stdin, stdout, stderr)
	if err == flag.ErrHelp {
		return 0
	} else if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return 1
	}
	return 0
}

func (cmd *summaryCommand) run(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	countsFilename := flags.String("counts", "", "counts `file`")
	metadataFilename := flags.String("metadata", "", "sample metadata `file`")
	err := flags.Parse(args)
	if err != nil {
		return err
	} else if flags.NArg() > 0 {
		return fmt.Errorf("errant command line arguments after parsed flags: %v", flags.Args())
	}
	if *countsFilename == "" || *metadataFilename == "" {
		return fmt.Errorf("must provide -counts and -metadata")
	}
	counts, meta, err := loadTables(*countsFilename, *metadataFilename, stdin)
	if err != nil {
		return err
	}
	return json.NewEncoder(stdout).Encode(Summarize(counts, meta))
}

// matchSamplesCommand reports mismatches between counts columns and
// metadata sample IDs. It exits 1 if any sample is missing or
// duplicated, so it can gate a pipeline.
type matchSamplesCommand struct{}

func (cmd *matchSamplesCommand) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	err := cmd.run(prog, args, stdin, stdout, stderr)
	if err == flag.ErrHelp {
		return 0
	} else if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return 1
	}
	return 0
}

func (cmd *matchSamplesCommand) run(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	countsFilename := flags.String("counts", "", "counts `file`")
	metadataFilename := flags.String("metadata", "", "sample metadata `file`")
	sampleCol := flags.String("sample-col", "", "metadata `column` holding sample IDs")
	err := flags.Parse(args)
	if err != nil {
		return err
	} else if flags.NArg() > 0 {
		return fmt.Errorf("errant command line arguments after parsed flags: %v", flags.Args())
	}
	if err = checkInputFlags(*countsFilename, *metadataFilename, *sampleCol); err != nil {
		return err
	}
	counts, meta, err := loadTables(*countsFilename, *metadataFilename, stdin)
	if err != nil {
		return err
	}
	rpt, err := MatchSamples(counts, meta, *sampleCol)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	err = enc.Encode(rpt)
	if err != nil {
		return err
	}
	if !rpt.OK() {
		return fmt.Errorf("sample mismatch: %d missing in metadata, %d missing in counts, %d duplicated in metadata, %d duplicated in counts",
			len(rpt.MissingInMetadata), len(rpt.MissingInCounts), len(rpt.DuplicateInMetadata), len(rpt.DuplicateInCounts))
	}
	return nil
}
