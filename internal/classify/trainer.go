package classify

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/soundpilot/soundpilot/internal/dsp"
	"github.com/soundpilot/soundpilot/internal/ident"
	"github.com/soundpilot/soundpilot/internal/model"
	"github.com/soundpilot/soundpilot/internal/observe"
	"github.com/soundpilot/soundpilot/internal/profile"
	"github.com/soundpilot/soundpilot/pkg/audio"
)

// minTrainExamples is the hard floor below which training reports
// INSUFFICIENT_DATA instead of fitting a model.
const minTrainExamples = 2

// TrainStatus is the outcome of one training run.
type TrainStatus string

const (
	// TrainStatusTrained means a new bundle was fitted and persisted.
	TrainStatusTrained TrainStatus = "trained"

	// TrainStatusInsufficientData means too few valid examples exist; any
	// previously stored bundle is left untouched.
	TrainStatusInsufficientData TrainStatus = "insufficient_data"
)

// TrainResult describes one training run.
type TrainResult struct {
	Status TrainStatus `json:"status"`

	// NumExamples is the number of examples whose features entered the fit.
	NumExamples int `json:"num_examples"`

	// NumSkipped is the number of examples skipped because their audio file
	// was missing or unreadable.
	NumSkipped int `json:"num_skipped"`

	// NumLabels is the number of distinct labels in the fit.
	NumLabels int `json:"num_labels"`

	// ProfileVersion is the profile version the bundle was built from.
	ProfileVersion int64 `json:"profile_version"`

	Duration time.Duration `json:"duration"`
}

// Trainer rebuilds a user's classifier bundle from all currently stored
// examples. Training always reloads and retrains from scratch, no state
// survives from prior runs.
type Trainer struct {
	profiles  profile.Store
	models    model.Store
	extractor *dsp.Extractor
	forestCfg model.ForestConfig
	metrics   *observe.Metrics
}

// NewTrainer wires a Trainer over the given stores and extractor. metrics
// may be nil to disable instrumentation (tests).
func NewTrainer(profiles profile.Store, models model.Store, extractor *dsp.Extractor, forestCfg model.ForestConfig, metrics *observe.Metrics) *Trainer {
	return &Trainer{
		profiles:  profiles,
		models:    models,
		extractor: extractor,
		forestCfg: forestCfg,
		metrics:   metrics,
	}
}

// Train retrains user's bundle from the full current example set. Examples
// whose audio file no longer exists are skipped with a warning; when fewer
// than two usable examples remain the run reports
// [TrainStatusInsufficientData] and leaves any prior bundle untouched.
// The persisted bundle fully replaces its predecessor.
func (t *Trainer) Train(ctx context.Context, user string) (TrainResult, error) {
	user = ident.Normalize(user)
	start := time.Now()

	result, err := t.train(ctx, user)
	result.Duration = time.Since(start)

	if t.metrics != nil {
		status := string(result.Status)
		if err != nil {
			status = "error"
		}
		t.metrics.TrainingRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
		t.metrics.TrainingDuration.Record(ctx, result.Duration.Seconds())
	}
	return result, err
}

func (t *Trainer) train(ctx context.Context, user string) (TrainResult, error) {
	prof, err := t.profiles.LoadOrCreate(ctx, user)
	if err != nil {
		return TrainResult{}, err
	}

	if len(prof.Examples) < minTrainExamples {
		slog.Info("training skipped: not enough examples",
			"user", user, "examples", len(prof.Examples))
		return TrainResult{Status: TrainStatusInsufficientData, ProfileVersion: prof.Version}, nil
	}

	features, labels, skipped := t.extractAll(ctx, prof.Examples)
	if len(features) < minTrainExamples {
		slog.Warn("training skipped: not enough valid audio files",
			"user", user, "valid", len(features), "skipped", skipped)
		return TrainResult{
			Status:         TrainStatusInsufficientData,
			NumSkipped:     skipped,
			ProfileVersion: prof.Version,
		}, nil
	}

	classes, y := model.FitLabels(labels)
	if len(classes) < 2 {
		// A single-label set under-determines a multi-class boundary, but
		// the hard gate is the example count, so proceed best-effort.
		slog.Warn("training on a single label; decisions will rarely clear the margin",
			"user", user, "label", classes[0])
	}

	slog.Info("training forest",
		"user", user,
		"examples", len(features),
		"labels", len(classes),
		"skipped", skipped,
	)

	forest := model.TrainForest(features, y, len(classes), t.forestCfg)
	bundle := &model.Bundle{
		Forest:         forest,
		Labels:         classes,
		FeatureLength:  len(features[0]),
		ProfileVersion: prof.Version,
		TrainedAt:      time.Now().UTC(),
	}
	if err := t.models.Save(ctx, user, bundle); err != nil {
		return TrainResult{}, err
	}

	return TrainResult{
		Status:         TrainStatusTrained,
		NumExamples:    len(features),
		NumSkipped:     skipped,
		NumLabels:      len(classes),
		ProfileVersion: prof.Version,
	}, nil
}

// extractAll computes feature vectors for every example whose audio file is
// readable, preserving example order. Extraction fans out across a bounded
// worker group; a missing or unreadable file is a tolerated partial failure,
// not fatal to training.
func (t *Trainer) extractAll(ctx context.Context, examples []profile.Example) ([][]float64, []string, int) {
	features := make([][]float64, len(examples))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, ex := range examples {
		g.Go(func() error {
			w, err := audio.FileSource{Path: ex.Path, TargetRate: t.extractor.SampleRate()}.Record(gctx)
			if err != nil {
				slog.Warn("skipping example: audio unreadable", "path", ex.Path, "err", err)
				return nil
			}

			start := time.Now()
			f, err := t.extractor.Extract(w)
			if err != nil {
				slog.Warn("skipping example: feature extraction failed", "path", ex.Path, "err", err)
				return nil
			}
			features[i] = f
			if t.metrics != nil {
				t.metrics.ExtractionDuration.Record(gctx, time.Since(start).Seconds())
			}
			return nil
		})
	}
	// Workers only report nil; Wait is for completion.
	_ = g.Wait()

	var kept [][]float64
	var labels []string
	skipped := 0
	for i, f := range features {
		if f == nil {
			skipped++
			continue
		}
		kept = append(kept, f)
		labels = append(labels, examples[i].Label)
	}
	return kept, labels, skipped
}
