// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

// Package conflict merges a run's new records into the batch left over from
// a previous, not fully accepted run.
//
// Two records conflict when they share a metric type and their RecordedAt
// values are less than Tolerance apart. The newer reading wins and takes the
// prior record's position, so a window re-collected after a partial failure
// replaces its own prior readings instead of being sent twice.
package conflict

import (
	"sort"
	"time"

	"github.com/tomtom215/healthsync/internal/models"
)

// DefaultTolerance is the conflict window.
const DefaultTolerance = 60 * time.Second

// Stats counts how new records were placed.
type Stats struct {
	Replaced int // new records that took a prior record's position
	Appended int // new records with no counterpart in the prior batch
}

// Resolver applies last-writer-wins within Tolerance.
type Resolver struct {
	Tolerance time.Duration
}

// NewResolver returns a Resolver. A non-positive tolerance uses DefaultTolerance.
func NewResolver(tolerance time.Duration) *Resolver {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Resolver{Tolerance: tolerance}
}

// Conflicts reports whether a and b describe the same reading.
func (r *Resolver) Conflicts(a, b models.UnifiedMetric) bool {
	if a.MetricType != b.MetricType {
		return false
	}
	d := a.RecordedAt.Sub(b.RecordedAt)
	if d < 0 {
		d = -d
	}
	return d < r.Tolerance
}

// Resolve merges newRecords into priorBatch. See ResolveWithStats.
func (r *Resolver) Resolve(newRecords, priorBatch []models.UnifiedMetric) []models.UnifiedMetric {
	merged, _ := r.ResolveWithStats(newRecords, priorBatch)
	return merged
}

// ResolveWithStats returns priorBatch with conflicting prior records replaced
// in place by new records, followed by the remaining new records in input
// order. Neither input is modified.
//
// Pairing is one to one. Candidate pairs are taken closest first, so an
// exact instant always pairs with its own counterpart, and a prior record
// claimed by a closer new record is never overwritten by a farther one. Equal
// distances go to the later new record. A new record left without a prior
// record is appended, never dropped.
func (r *Resolver) ResolveWithStats(newRecords, priorBatch []models.UnifiedMetric) ([]models.UnifiedMetric, Stats) {
	var stats Stats
	merged := make([]models.UnifiedMetric, len(priorBatch), len(priorBatch)+len(newRecords))
	copy(merged, priorBatch)

	index := indexByType(priorBatch)
	var pairs []pair
	for i := range newRecords {
		pairs = r.appendCandidates(pairs, i, newRecords[i], priorBatch, index[newRecords[i].MetricType])
	}
	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a].dist != pairs[b].dist {
			return pairs[a].dist < pairs[b].dist
		}
		if pairs[a].newIdx != pairs[b].newIdx {
			return pairs[a].newIdx > pairs[b].newIdx
		}
		return pairs[a].priorIdx < pairs[b].priorIdx
	})

	claimed := make([]bool, len(priorBatch))
	placed := make([]bool, len(newRecords))
	for _, p := range pairs {
		if claimed[p.priorIdx] || placed[p.newIdx] {
			continue
		}
		merged[p.priorIdx] = newRecords[p.newIdx]
		claimed[p.priorIdx] = true
		placed[p.newIdx] = true
		stats.Replaced++
	}
	for i := range newRecords {
		if !placed[i] {
			merged = append(merged, newRecords[i])
			stats.Appended++
		}
	}
	return merged, stats
}

// pair is a conflicting (new, prior) combination.
type pair struct {
	newIdx   int
	priorIdx int
	dist     time.Duration
}

// indexByType groups prior positions by metric type, ordered by RecordedAt.
func indexByType(prior []models.UnifiedMetric) map[string][]int {
	index := make(map[string][]int)
	for j := range prior {
		index[prior[j].MetricType] = append(index[prior[j].MetricType], j)
	}
	for _, positions := range index {
		sort.SliceStable(positions, func(a, b int) bool {
			return prior[positions[a]].RecordedAt.Before(prior[positions[b]].RecordedAt)
		})
	}
	return index
}

// appendCandidates adds every prior position within tolerance of m.
// positions must share m's metric type and be ordered by RecordedAt.
func (r *Resolver) appendCandidates(pairs []pair, newIdx int, m models.UnifiedMetric, prior []models.UnifiedMetric, positions []int) []pair {
	lo := m.RecordedAt.Add(-r.Tolerance)
	start := sort.Search(len(positions), func(k int) bool {
		return prior[positions[k]].RecordedAt.After(lo)
	})
	for _, j := range positions[start:] {
		if !r.Conflicts(m, prior[j]) {
			if prior[j].RecordedAt.After(m.RecordedAt) {
				break
			}
			continue
		}
		d := m.RecordedAt.Sub(prior[j].RecordedAt)
		if d < 0 {
			d = -d
		}
		pairs = append(pairs, pair{newIdx: newIdx, priorIdx: j, dist: d})
	}
	return pairs
}
