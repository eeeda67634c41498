// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/muktihari/fit/decoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"

	"github.com/tomtom215/healthsync/internal/logging"
	"github.com/tomtom215/healthsync/internal/models"
)

// FIT sentinel values for fields a device did not record.
const (
	fitInvalidUint8  = 0xFF
	fitInvalidUint32 = 0xFFFFFFFF
)

// FITProvider reads .fit activity files from a directory.
//
// The heart_rate view yields one sample per record message carrying a valid
// heart rate. The workouts view yields one sample per session message.
type FITProvider struct {
	dir      string
	category models.Category
}

// NewFITProvider returns a provider for the heart_rate or workouts view of dir.
func NewFITProvider(dir string, category models.Category) (*FITProvider, error) {
	if category != models.CategoryHeartRate && category != models.CategoryWorkouts {
		return nil, fmt.Errorf("FIT files do not provide %s", category)
	}
	return &FITProvider{dir: dir, category: category}, nil
}

func (p *FITProvider) Category() models.Category {
	return p.category
}

// Fetch decodes every .fit file modified after since.
func (p *FITProvider) Fetch(ctx context.Context, since *time.Time) ([]models.RawSample, error) {
	files, err := p.listFiles(since)
	if err != nil {
		return nil, err
	}

	var samples []models.RawSample
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		fileSamples, err := p.decode(data, filepath.Base(path))
		if err != nil {
			// One corrupt file does not hide the rest of the directory.
			logging.Ctx(ctx).Warn().Err(err).Str("file", path).Msg("Skipping unreadable FIT file")
			continue
		}
		samples = append(samples, fileSamples...)
	}
	return samples, nil
}

func (p *FITProvider) listFiles(since *time.Time) ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrCategoryUnavailable, p.dir)
	case errors.Is(err, fs.ErrPermission):
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, p.dir)
	case err != nil:
		return nil, fmt.Errorf("list %s: %w", p.dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".fit") {
			continue
		}
		if since != nil {
			info, err := e.Info()
			if err != nil || !info.ModTime().After(*since) {
				continue
			}
		}
		files = append(files, filepath.Join(p.dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func (p *FITProvider) decode(data []byte, name string) ([]models.RawSample, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty FIT data")
	}

	dec := decoder.New(bytes.NewReader(data))
	var (
		samples []models.RawSample
		device  string
	)

	for dec.Next() {
		fit, err := dec.Decode()
		if err != nil {
			return nil, fmt.Errorf("decode FIT file: %w", err)
		}

		for i := range fit.Messages {
			msg := &fit.Messages[i]
			switch msg.Num {
			case typedef.MesgNumFileId:
				fileID := mesgdef.NewFileId(msg)
				if fileID.Manufacturer != typedef.ManufacturerInvalid {
					device = fileID.Manufacturer.String()
				}

			case typedef.MesgNumRecord:
				if p.category != models.CategoryHeartRate {
					continue
				}
				record := mesgdef.NewRecord(msg)
				if record.Timestamp.IsZero() || record.HeartRate == fitInvalidUint8 {
					continue
				}
				ts := record.Timestamp.UTC()
				samples = append(samples, models.RawSample{
					Category:   models.CategoryHeartRate,
					Value:      float64(record.HeartRate),
					Unit:       "count/min",
					Start:      ts,
					End:        ts,
					Source:     models.SourceDeviceAPI,
					SourceApp:  "fit",
					DeviceName: device,
					Metadata:   map[string]interface{}{"file": name},
				})

			case typedef.MesgNumSession:
				if p.category != models.CategoryWorkouts {
					continue
				}
				session := mesgdef.NewSession(msg)
				if session.StartTime.IsZero() || session.TotalElapsedTime == fitInvalidUint32 {
					continue
				}
				samples = append(samples, workoutSample(session, device, name))
			}
		}
	}
	return samples, nil
}

// workoutSample maps a session to a workout whose value is its duration in minutes.
func workoutSample(session *mesgdef.Session, device, name string) models.RawSample {
	start := session.StartTime.UTC()
	elapsed := float64(session.TotalElapsedTime) / 1000

	var distance float64
	if session.TotalDistance != fitInvalidUint32 {
		distance = float64(session.TotalDistance) / 100
	}

	kind := strings.ToLower(session.Sport.String())
	activity := session.SportProfileName
	if activity == "" {
		activity = kind
	}

	return models.RawSample{
		Category:        models.CategoryWorkouts,
		Kind:            kind,
		Value:           elapsed / 60,
		Unit:            "min",
		Start:           start,
		End:             start.Add(time.Duration(elapsed * float64(time.Second))),
		Source:          models.SourceDeviceAPI,
		SourceApp:       "fit",
		DeviceName:      device,
		Metadata:        map[string]interface{}{"file": name},
		DurationSeconds: elapsed,
		DistanceMeters:  distance,
		ActivityName:    activity,
	}
}
