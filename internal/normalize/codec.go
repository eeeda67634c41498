// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package normalize

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/healthsync/internal/models"
)

// Codec is the transport encoding of UnifiedMetric.
//
// Decode(Encode(m)) is Equal to m for any metric produced by the Normalizer:
// times are UTC with millisecond precision. Metadata numbers decode as
// json.Number, so integers beyond float64 precision keep their value.
type Codec struct{}

// Encode serializes one metric.
func (Codec) Encode(m models.UnifiedMetric) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metric: %w", err)
	}
	return data, nil
}

// Decode deserializes one metric.
func (Codec) Decode(data []byte) (models.UnifiedMetric, error) {
	var m models.UnifiedMetric
	if err := decodeNumbers(data, &m); err != nil {
		return models.UnifiedMetric{}, fmt.Errorf("decode metric: %w", err)
	}
	m.RecordedAt = m.RecordedAt.UTC()
	return m, nil
}

// EncodeBatch serializes metrics as a JSON array. A nil batch encodes as [].
func (Codec) EncodeBatch(batch []models.UnifiedMetric) ([]byte, error) {
	if batch == nil {
		batch = []models.UnifiedMetric{}
	}
	data, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	return data, nil
}

// DecodeBatch deserializes a JSON array of metrics.
func (Codec) DecodeBatch(data []byte) ([]models.UnifiedMetric, error) {
	var batch []models.UnifiedMetric
	if err := decodeNumbers(data, &batch); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	for i := range batch {
		batch[i].RecordedAt = batch[i].RecordedAt.UTC()
	}
	return batch, nil
}

func decodeNumbers(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
