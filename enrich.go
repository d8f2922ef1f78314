// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package transcriptome

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/context/ctxhttp"
)

const (
	DefaultEnrichmentURL = "https://biit.cs.ut.ee/gprofiler/api/gost/profile/"
	DefaultOrganism      = "hsapiens"
)

var DefaultEnrichmentSources = []string{"GO:BP", "GO:MF", "GO:CC", "KEGG", "REAC"}

// EnrichmentRecord is one functional term reported by the enrichment
// service.
type EnrichmentRecord struct {
	TermID string  `json:"term_id"`
	Name   string  `json:"name"`
	PValue float64 `json:"p_value"`
	Source string  `json:"source"`
}

var enrichmentFields = []string{"term_id", "name", "p_value", "source"}

// Enricher submits gene lists to a g:Profiler-compatible gost/profile
// endpoint.
//
// Transport errors and 5xx responses are retried up to Attempts
// times in total and then returned as *RemoteCallError. Responses
// that arrive but cannot be used are logged and yield an empty
// result.
type Enricher struct {
	Client     *http.Client // nil means http.DefaultClient
	URL        string
	Sources    []string
	Threshold  float64
	Timeout    time.Duration // per attempt; 0 means none
	Attempts   int
	RetryDelay time.Duration
}

func NewEnricher() *Enricher {
	return &Enricher{
		URL:        DefaultEnrichmentURL,
		Sources:    DefaultEnrichmentSources,
		Threshold:  0.05,
		Timeout:    30 * time.Second,
		Attempts:   2,
		RetryDelay: time.Second,
	}
}

type gostRequest struct {
	Organism      string   `json:"organism"`
	Query         []string `json:"query"`
	Sources       []string `json:"sources"`
	UserThreshold float64  `json:"user_threshold"`
}

// Enrich returns the terms enriched in genes. Blank entries are
// ignored; if nothing is left, the result is empty and no request is
// made. An empty organism means DefaultOrganism.
func (e *Enricher) Enrich(ctx context.Context, genes []string, organism string) ([]EnrichmentRecord, error) {
	query := make([]string, 0, len(genes))
	for _, g := range genes {
		if strings.TrimSpace(g) != "" {
			query = append(query, g)
		}
	}
	if len(query) == 0 {
		log.Info("enrichment: no valid genes in query, skipping request")
		return []EnrichmentRecord{}, nil
	}
	if organism == "" {
		organism = DefaultOrganism
	}
	body, err := json.Marshal(gostRequest{
		Organism:      organism,
		Query:         query,
		Sources:       e.Sources,
		UserThreshold: e.Threshold,
	})
	if err != nil {
		return nil, err
	}
	log.Infof("enrichment: submitting %d genes (organism %s) to %s", len(query), organism, e.URL)

	attempts := e.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var buf []byte
	for attempt := 1; ; attempt++ {
		buf, err = e.post(ctx, body)
		if err == nil {
			break
		}
		if attempt >= attempts || !retryable(err) || ctx.Err() != nil {
			return nil, err
		}
		log.WithError(err).Warnf("enrichment: attempt %d of %d failed, retrying", attempt, attempts)
		select {
		case <-time.After(e.RetryDelay):
		case <-ctx.Done():
			return nil, &RemoteCallError{URL: e.URL, Err: ctx.Err()}
		}
	}

	recs, err := parseGostResponse(buf)
	if err != nil {
		log.WithError(err).Warn("enrichment: returning empty result")
		return []EnrichmentRecord{}, nil
	}
	log.Infof("enrichment: %d terms", len(recs))
	return recs, nil
}

func (e *Enricher) post(ctx context.Context, body []byte) ([]byte, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	resp, err := ctxhttp.Post(ctx, e.Client, e.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, &RemoteCallError{URL: e.URL, Err: err}
	}
	defer resp.Body.Close()
	buf, err := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Warnf("enrichment: %s returned %s: %.200q", e.URL, resp.Status, buf)
		return nil, &RemoteCallError{URL: e.URL, StatusCode: resp.StatusCode}
	}
	if err != nil {
		return nil, &RemoteCallError{URL: e.URL, Err: err}
	}
	return buf, nil
}

func retryable(err error) bool {
	var rerr *RemoteCallError
	if !errors.As(err, &rerr) {
		return false
	}
	return rerr.StatusCode == 0 || rerr.StatusCode >= 500
}

// parseGostResponse extracts the required fields from each term in
// the response's result array. A term that carries "native" but no
// "term_id" uses native as its term ID.
func parseGostResponse(buf []byte) ([]EnrichmentRecord, error) {
	var resp struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(buf, &resp); err != nil {
		return nil, &MalformedRemoteResponseError{Msg: err.Error()}
	}
	var terms []map[string]interface{}
	if len(resp.Result) == 0 {
		return nil, &MalformedRemoteResponseError{Msg: `no "result" field`}
	} else if err := json.Unmarshal(resp.Result, &terms); err != nil {
		return nil, &MalformedRemoteResponseError{Msg: `"result" is not a list of objects`}
	}
	recs := make([]EnrichmentRecord, 0, len(terms))
	for i, term := range terms {
		if _, ok := term["term_id"]; !ok {
			if native, ok := term["native"]; ok {
				term["term_id"] = native
			}
		}
		var missing []string
		for _, f := range enrichmentFields {
			if _, ok := term[f]; !ok {
				missing = append(missing, f)
			}
		}
		if len(missing) > 0 {
			return nil, &MalformedRemoteResponseError{Msg: fmt.Sprintf("result %d is missing %s", i, strings.Join(missing, ", "))}
		}
		termID, ok1 := term["term_id"].(string)
		name, ok2 := term["name"].(string)
		pvalue, ok3 := term["p_value"].(float64)
		source, ok4 := term["source"].(string)
		if !(ok1 && ok2 && ok3 && ok4) {
			return nil, &MalformedRemoteResponseError{Msg: fmt.Sprintf("result %d has a field of unexpected type", i)}
		}
		recs = append(recs, EnrichmentRecord{TermID: termID, Name: name, PValue: pvalue, Source: source})
	}
	return recs, nil
}

// GeneList keeps the non-blank strings from a decoded JSON array and
// drops everything else.
func GeneList(values []interface{}) []string {
	genes := []string{}
	for _, v := range values {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			genes = append(genes, s)
		}
	}
	return genes
}
