// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package delta

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/healthsync/internal/models"
	"github.com/tomtom215/healthsync/internal/store"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func metricAt(offset time.Duration, value float64) models.UnifiedMetric {
	return models.UnifiedMetric{
		MetricType: "steps",
		Value:      value,
		Unit:       "count",
		SourceType: models.SourceDeviceAPI,
		RecordedAt: t0.Add(offset),
	}
}

func TestFilterSince(t *testing.T) {
	t.Parallel()

	records := []models.UnifiedMetric{
		metricAt(-time.Minute, 1),
		metricAt(0, 2),
		metricAt(time.Millisecond, 3),
		metricAt(-time.Hour, 4),
		metricAt(time.Hour, 5),
	}
	checkpoint := t0

	tests := []struct {
		name       string
		checkpoint *time.Time
		want       []float64
	}{
		{"nil checkpoint keeps all", nil, []float64{1, 2, 3, 4, 5}},
		{"strictly after", &checkpoint, []float64{3, 5}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := FilterSince(tt.checkpoint, records)
			if len(got) != len(tt.want) {
				t.Fatalf("FilterSince() len = %d, want %d", len(got), len(tt.want))
			}
			for i, v := range tt.want {
				if got[i].Value != v {
					t.Errorf("got[%d].Value = %v, want %v", i, got[i].Value, v)
				}
			}
		})
	}
}

func TestFilterSince_DoesNotAliasInput(t *testing.T) {
	t.Parallel()

	records := []models.UnifiedMetric{metricAt(time.Second, 1)}
	got := FilterSince(nil, records)
	got[0].Value = 99
	if records[0].Value != 1 {
		t.Error("FilterSince result shares backing array with input")
	}

	if got := FilterSince(nil, nil); got == nil || len(got) != 0 {
		t.Errorf("FilterSince(nil, nil) = %v, want empty slice", got)
	}
}

func TestCheckpoints_AdvanceIsMonotonic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewCheckpoints(store.NewMemoryStore())

	if cp, err := c.Load(ctx); err != nil || cp != nil {
		t.Fatalf("Load() on empty store = %v, %v", cp, err)
	}

	steps := []struct {
		at        time.Time
		wantMoved bool
		wantCP    time.Time
	}{
		{t0, true, t0},
		{t0.Add(time.Hour), true, t0.Add(time.Hour)},
		{t0.Add(30 * time.Minute), false, t0.Add(time.Hour)},
		{t0.Add(time.Hour), false, t0.Add(time.Hour)},
		{t0.Add(2 * time.Hour), true, t0.Add(2 * time.Hour)},
	}
	for i, s := range steps {
		moved, err := c.Advance(ctx, s.at)
		if err != nil {
			t.Fatalf("step %d: Advance() error = %v", i, err)
		}
		if moved != s.wantMoved {
			t.Errorf("step %d: moved = %v, want %v", i, moved, s.wantMoved)
		}
		cp, err := c.Load(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if cp == nil || !cp.Equal(s.wantCP) {
			t.Errorf("step %d: checkpoint = %v, want %v", i, cp, s.wantCP)
		}
	}
}

func TestCheckpoints_ConcurrentAdvance(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewCheckpoints(store.NewMemoryStore())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = c.Advance(ctx, t0.Add(time.Duration(i)*time.Minute))
		}(i)
	}
	wg.Wait()

	cp, err := c.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := t0.Add(49 * time.Minute); cp == nil || !cp.Equal(want) {
		t.Errorf("checkpoint = %v, want %v", cp, want)
	}
}

func TestCheckpoints_StoreError(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	s := store.NewMemoryStore()
	s.SetCheckpointErr = boom

	moved, err := NewCheckpoints(s).Advance(context.Background(), t0)
	if moved || !errors.Is(err, boom) {
		t.Errorf("Advance() = %v, %v; want false, %v", moved, err, boom)
	}
}
