// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package transcriptome

import (
	"bytes"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

type tableKey [blake2b.Size256]byte

// tableCache holds recently parsed upload tables keyed by a hash of
// the uploaded bytes. A client that posts the same files to /upload,
// /pca, and /de only pays for parsing once.
//
// Cached tables are shared between requests and must not be
// modified.
type tableCache struct {
	Max int

	mtx     sync.Mutex
	entries map[tableKey]interface{}
	order   []tableKey
}

func (tc *tableCache) get(key tableKey) (interface{}, bool) {
	tc.mtx.Lock()
	defer tc.mtx.Unlock()
	v, ok := tc.entries[key]
	return v, ok
}

func (tc *tableCache) put(key tableKey, v interface{}) {
	tc.mtx.Lock()
	defer tc.mtx.Unlock()
	if tc.entries == nil {
		tc.entries = map[tableKey]interface{}{}
	}
	if _, ok := tc.entries[key]; ok {
		return
	}
	for len(tc.order) > 0 && len(tc.order) >= tc.Max {
		delete(tc.entries, tc.order[0])
		tc.order = tc.order[1:]
	}
	if tc.Max > 0 {
		tc.entries[key] = v
		tc.order = append(tc.order, key)
	}
}

func tableHash(kind string, data []byte) tableKey {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write(data)
	var key tableKey
	copy(key[:], h.Sum(nil))
	return key
}

// cachedTable parses data with read, or returns the table parsed
// earlier from identical data. Parse errors are not cached.
func cachedTable[T any](tc *tableCache, kind string, data []byte, read func(io.Reader) (T, error)) (T, error) {
	key := tableHash(kind, data)
	if v, ok := tc.get(key); ok {
		log.Debugf("%s table: cache hit (%d bytes)", kind, len(data))
		return v.(T), nil
	}
	t, err := read(bytes.NewReader(data))
	if err != nil {
		return t, err
	}
	tc.put(key, t)
	return t, nil
}
