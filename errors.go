// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package transcriptome

import (
	"errors"
	"fmt"
	"strings"
)

// MissingColumnError means a caller-named column is not in the
// table header.
type MissingColumnError struct {
	Table  string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s table has no column named %q", e.Table, e.Column)
}

// InvalidGroupingError means the group column does not split the
// aligned samples into exactly two groups.
type InvalidGroupingError struct {
	Column string
	Count  int
	Values []string
}

func (e *InvalidGroupingError) Error() string {
	return fmt.Sprintf("DE analysis requires exactly 2 groups in column %q, found %d (%s)", e.Column, e.Count, strings.Join(e.Values, ", "))
}

type InsufficientSamplesError struct {
	Analysis string
	Have     int
	Need     int
}

func (e *InsufficientSamplesError) Error() string {
	return fmt.Sprintf("%s: not enough overlapping samples between counts and metadata (%d aligned, need at least %d)", e.Analysis, e.Have, e.Need)
}

// DuplicateSampleError means a sample identifier appears more than
// once in a table after whitespace is trimmed.
type DuplicateSampleError struct {
	Table  string
	Sample string
}

func (e *DuplicateSampleError) Error() string {
	return fmt.Sprintf("duplicate sample ID %q in %s table", e.Sample, e.Table)
}

// TableFormatError reports unparseable or inconsistent table content.
// Line is 1-based; 0 means the error is not tied to a single line.
type TableFormatError struct {
	Table string
	Line  int
	Msg   string
}

func (e *TableFormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s table line %d: %s", e.Table, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s table: %s", e.Table, e.Msg)
}

type InvalidArgumentError struct {
	Msg string
}

func (e *InvalidArgumentError) Error() string { return e.Msg }

// RemoteCallError is returned when the enrichment service could not
// be reached or answered with a non-200 status.
type RemoteCallError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *RemoteCallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("enrichment request to %s: HTTP status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("enrichment request to %s: %s", e.URL, e.Err)
}

func (e *RemoteCallError) Unwrap() error { return e.Err }

// MalformedRemoteResponseError describes an unusable enrichment
// response. Enricher logs it and returns an empty result instead.
type MalformedRemoteResponseError struct {
	Msg string
}

func (e *MalformedRemoteResponseError) Error() string {
	return "malformed enrichment response: " + e.Msg
}

// IsInputError reports whether err was caused by the caller's input
// (tables, column names, parameters) rather than by a fault in this
// process or a remote service.
func IsInputError(err error) bool {
	var (
		missing  *MissingColumnError
		grouping *InvalidGroupingError
		samples  *InsufficientSamplesError
		dup      *DuplicateSampleError
		format   *TableFormatError
		arg      *InvalidArgumentError
	)
	return errors.As(err, &missing) ||
		errors.As(err, &grouping) ||
		errors.As(err, &samples) ||
		errors.As(err, &dup) ||
		errors.As(err, &format) ||
		errors.As(err, &arg)
}
