// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/roastery/internal/models"
)

const (
	unitSep   = 0x1f
	recordSep = 0x1e
)

// fingerprintTable hashes the columns and every record of a raw table.
func fingerprintTable(table *models.TransactionTable) string {
	h := sha256.New()
	buf := make([]byte, 0, 256)
	for _, c := range table.Columns {
		buf = append(buf, c...)
		buf = append(buf, unitSep)
	}
	buf = append(buf, recordSep)
	_, _ = h.Write(buf)

	for i := range table.Records {
		r := &table.Records[i]
		buf = buf[:0]
		buf = appendField(buf, r.TransactionID)
		buf = appendField(buf, r.ProductID)
		buf = appendField(buf, r.ProductCategory)
		buf = appendField(buf, r.StoreLocation)
		buf = r.Timestamp.UTC().AppendFormat(buf, time.RFC3339Nano)
		buf = append(buf, unitSep)
		buf = strconv.AppendFloat(buf, r.Quantity, 'g', -1, 64)
		buf = append(buf, unitSep)
		buf = strconv.AppendFloat(buf, r.UnitPrice, 'g', -1, 64)
		buf = append(buf, unitSep)
		buf = strconv.AppendInt(buf, int64(r.ChurnFlag), 10)
		buf = append(buf, recordSep)
		_, _ = h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func appendField(buf []byte, s string) []byte {
	buf = append(buf, s...)
	return append(buf, unitSep)
}

// fingerprint chains an upstream fingerprint with the JSON encoding of a
// stage's parameters.
func fingerprint(upstream string, params ...any) (string, error) {
	h := sha256.New()
	writeString(h, upstream)
	for _, p := range params {
		data, err := json.Marshal(p)
		if err != nil {
			return "", fmt.Errorf("encode fingerprint parameters: %w", err)
		}
		writeString(h, string(data))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeString(h hash.Hash, s string) {
	_, _ = h.Write([]byte(s))
	_, _ = h.Write([]byte{recordSep})
}
