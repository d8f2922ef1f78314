// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package transcriptome

import (
	"errors"
	"io"
	"os"
	"regexp"
	"sync"

	"git.arvados.org/arvados.git/sdk/go/arvados"
	"git.arvados.org/arvados.git/sdk/go/arvadosclient"
	"git.arvados.org/arvados.git/sdk/go/keepclient"
	log "github.com/sirupsen/logrus"
)

var collectionInPathRe = regexp.MustCompile(`^(.*/)?([0-9a-f]{32}\+[0-9]+|[0-9a-z]{5}-[0-9a-z]{5}-[0-9a-z]{15})(/.*)?$`)

var (
	keepClient *keepclient.KeepClient
	siteFS     arvados.CustomFileSystem
	siteFSMtx  sync.Mutex
)

// open returns a reader for the named input table. "-" means stdin.
//
// If ARVADOS_API_HOST is set and the path names a collection (by PDH
// or UUID, e.g. ".../zzzzz-4zz18-aaaaabbbbbccccc/counts.tsv"), the
// file is read through the Arvados API instead of the local
// filesystem. Gzip decompression happens later, in the table reader.
func open(fnm string, stdin io.Reader) (io.ReadCloser, error) {
	if fnm == "-" {
		return io.NopCloser(stdin), nil
	}
	if os.Getenv("ARVADOS_API_HOST") == "" {
		return os.Open(fnm)
	}
	m := collectionInPathRe.FindStringSubmatch(fnm)
	if m == nil {
		return os.Open(fnm)
	}
	collectionUUID := m[2]
	collectionPath := m[3]

	siteFSMtx.Lock()
	defer siteFSMtx.Unlock()
	if siteFS == nil {
		log.Info("setting up Arvados client")
		client := arvados.NewClientFromEnv()
		ac, err := arvadosclient.New(client)
		if err != nil {
			return nil, err
		}
		ac.Client = arvados.DefaultSecureClient
		keepClient = keepclient.New(ac)
		// Don't use keepclient's default short timeouts.
		keepClient.HTTPClient = arvados.DefaultSecureClient
		keepClient.BlockCache = &keepclient.BlockCache{MaxBlocks: 4}
		siteFS = client.SiteFileSystem(keepClient)
	}
	log.Infof("reading %q from %s using Arvados client", collectionPath, collectionUUID)
	return siteFS.Open("by_id/" + collectionUUID + collectionPath)
}

// loadTables reads the counts and metadata tables named on the
// command line.
func loadTables(countsFilename, metadataFilename string, stdin io.Reader) (*CountsTable, *MetadataTable, error) {
	f, err := open(countsFilename, stdin)
	if err != nil {
		return nil, nil, err
	}
	counts, err := ReadCountsTable(f)
	f.Close()
	if err != nil {
		return nil, nil, err
	}
	f, err = open(metadataFilename, stdin)
	if err != nil {
		return nil, nil, err
	}
	meta, err := ReadMetadataTable(f)
	f.Close()
	if err != nil {
		return nil, nil, err
	}
	log.Infof("read %d genes x %d samples, %d metadata rows", len(counts.Genes), len(counts.Samples), len(meta.Rows))
	return counts, meta, nil
}

// create opens the named output file for writing. "-" means stdout.
func create(fnm string, stdout io.Writer) (io.WriteCloser, error) {
	if fnm == "-" {
		return nopCloser{stdout}, nil
	}
	return os.OpenFile(fnm, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
}

func checkInputFlags(countsFilename, metadataFilename, sampleCol string) error {
	if countsFilename == "" || metadataFilename == "" || sampleCol == "" {
		return errors.New("must provide -counts, -metadata, and -sample-col")
	}
	if countsFilename == "-" && metadataFilename == "-" {
		return errors.New("cannot read both -counts and -metadata from stdin")
	}
	return nil
}
