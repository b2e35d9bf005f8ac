package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/soundpilot/soundpilot/internal/dsp"
	"github.com/soundpilot/soundpilot/internal/ident"
	"github.com/soundpilot/soundpilot/internal/model"
	"github.com/soundpilot/soundpilot/internal/observe"
	"github.com/soundpilot/soundpilot/internal/profile"
	"github.com/soundpilot/soundpilot/pkg/audio"
)

// ErrNoModel is returned by [Service.Classify] when no trained bundle exists
// for the user. Distinct from an UNKNOWN decision: there was nothing to
// compare against.
var ErrNoModel = errors.New("classify: no trained model for user")

// ErrNoProfile is returned by mutating operations that require an existing
// profile (label deletion on an unknown user).
var ErrNoProfile = errors.New("classify: no profile for user")

// Config holds the service-level tuning knobs.
type Config struct {
	// RMSGate is the advisory minimum RMS energy for an enrolled capture.
	// Quieter captures are flagged in feedback but still kept and used;
	// enrolled data is never silently dropped.
	RMSGate float64

	// Decider holds the confidence policy thresholds.
	Decider DeciderConfig
}

// DefaultConfig returns the standard service configuration.
func DefaultConfig() Config {
	return Config{RMSGate: 0.001, Decider: DefaultDeciderConfig()}
}

// Service implements the two user-facing workflows (add examples and
// classify one capture) plus label deletion and full user reset. Safe for
// concurrent use: operations on the same normalised user are serialised.
type Service struct {
	profiles  profile.Store
	models    model.Store
	trainer   *Trainer
	extractor *dsp.Extractor
	cfg       Config
	metrics   *observe.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService wires a Service. metrics may be nil to disable instrumentation.
func NewService(profiles profile.Store, models model.Store, trainer *Trainer, extractor *dsp.Extractor, cfg Config, metrics *observe.Metrics) *Service {
	return &Service{
		profiles:  profiles,
		models:    models,
		trainer:   trainer,
		extractor: extractor,
		cfg:       cfg,
		metrics:   metrics,
		locks:     make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex serialising all mutating work for user.
func (s *Service) userLock(user string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[user]
	if !ok {
		l = &sync.Mutex{}
		s.locks[user] = l
	}
	return l
}

// EnrollSample is the per-capture feedback from one enrollment.
type EnrollSample struct {
	// Path is the stored location of the capture.
	Path string `json:"path"`

	// RMS is the measured energy of the capture.
	RMS float64 `json:"rms"`

	// Quiet flags a capture below the RMS gate. Advisory only; the sample
	// was kept regardless.
	Quiet bool `json:"quiet,omitempty"`
}

// EnrollResult reports a completed enrollment. TrainErr is set when the
// post-enrollment retraining failed; the enrollment itself is durable either
// way, so callers can distinguish "data saved, retrain failed" from
// "nothing saved".
type EnrollResult struct {
	User     string         `json:"user"`
	Label    string         `json:"label"`
	ActionID string         `json:"action_id,omitempty"`
	Samples  []EnrollSample `json:"samples"`
	Train    TrainResult    `json:"train"`
	TrainErr string         `json:"train_error,omitempty"`
}

// Enroll records a batch of captures as examples of label for user, binds
// actionID to the label (last enrollment wins; empty leaves any existing
// binding in place), persists the profile, and then retrains best-effort.
//
// All captures are acquired and decoded before anything is persisted, so a
// bad source aborts the whole batch without partial writes.
func (s *Service) Enroll(ctx context.Context, user, label, actionID string, sources []audio.Source) (EnrollResult, error) {
	user = ident.Normalize(user)
	label = ident.Normalize(label)

	if len(sources) == 0 {
		return EnrollResult{}, fmt.Errorf("classify: enroll %q/%q: no captures supplied", user, label)
	}

	waves := make([]audio.Waveform, len(sources))
	for i, src := range sources {
		w, err := src.Record(ctx)
		if err != nil {
			return EnrollResult{}, fmt.Errorf("classify: capture %d of %d: %w", i+1, len(sources), err)
		}
		waves[i] = w
	}

	lock := s.userLock(user)
	lock.Lock()
	defer lock.Unlock()

	prof, err := s.profiles.LoadOrCreate(ctx, user)
	if err != nil {
		return EnrollResult{}, err
	}

	if actionID != "" {
		prof.BindAction(label, actionID)
	}

	result := EnrollResult{User: user, Label: label, ActionID: actionID}

	// Captures written before a failure would be orphans: on disk but
	// absent from the persisted profile. Remove them so an aborted
	// enrollment leaves no trace.
	var written []string
	removeWritten := func() {
		for _, p := range written {
			if err := os.Remove(p); err != nil {
				slog.Warn("could not remove capture of aborted enrollment", "path", p, "err", err)
			}
		}
	}

	for _, w := range waves {
		path, err := s.profiles.NewAudioPath(user, label)
		if err != nil {
			removeWritten()
			return EnrollResult{}, err
		}
		if err := audio.WriteWAV(path, w); err != nil {
			removeWritten()
			return EnrollResult{}, err
		}
		written = append(written, path)

		rms := w.RMS()
		sample := EnrollSample{Path: path, RMS: rms, Quiet: rms < s.cfg.RMSGate}
		if sample.Quiet {
			slog.Warn("enrolled capture below RMS gate; kept anyway",
				"user", user, "label", label, "rms", rms)
		}
		prof.AddExample(path, label)
		result.Samples = append(result.Samples, sample)

		if s.metrics != nil {
			s.metrics.Enrollments.Add(ctx, 1, metric.WithAttributes(
				attribute.Bool("quiet", sample.Quiet),
			))
		}
	}

	if err := s.profiles.Save(ctx, user, prof); err != nil {
		removeWritten()
		return EnrollResult{}, err
	}

	// Training failure does not roll back the persisted enrollment.
	train, err := s.trainer.Train(ctx, user)
	result.Train = train
	if err != nil {
		slog.Error("post-enrollment training failed; enrollment is durable",
			"user", user, "err", err)
		result.TrainErr = err.Error()
	}
	return result, nil
}

// Train retrains user's model from the full stored example set, serialised
// against concurrent enrollments for the same user.
func (s *Service) Train(ctx context.Context, user string) (TrainResult, error) {
	user = ident.Normalize(user)

	lock := s.userLock(user)
	lock.Lock()
	defer lock.Unlock()

	return s.trainer.Train(ctx, user)
}

// Classification is the outcome of classifying one capture.
type Classification struct {
	// Label is the decided command, or [LabelUnknown].
	Label string `json:"label"`

	// ActionID is the action bound to the decided label; empty when the
	// decision is UNKNOWN or the label has no binding.
	ActionID string `json:"action_id,omitempty"`

	// Ranked lists every known command with its probability, descending.
	Ranked []LabelProba `json:"ranked"`
}

// Classify runs one capture through the stored bundle and the confidence
// policy. Read-only with respect to both stores. Returns [ErrNoModel] when
// the user has never been successfully trained.
func (s *Service) Classify(ctx context.Context, user string, w audio.Waveform) (Classification, error) {
	user = ident.Normalize(user)

	cls, err := s.classify(ctx, user, w)
	if s.metrics != nil {
		outcome := "matched"
		switch {
		case errors.Is(err, ErrNoModel):
			outcome = "no_model"
		case err != nil:
			outcome = "error"
		case cls.Label == LabelUnknown:
			outcome = "unknown"
		}
		s.metrics.Classifications.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
	return cls, err
}

func (s *Service) classify(ctx context.Context, user string, w audio.Waveform) (Classification, error) {
	bundle, err := s.models.Load(ctx, user)
	if errors.Is(err, model.ErrNotFound) {
		return Classification{}, fmt.Errorf("%w: %q", ErrNoModel, user)
	}
	if err != nil {
		return Classification{}, err
	}
	if bundle.FeatureLength != s.extractor.FeatureLength() {
		return Classification{}, fmt.Errorf("classify: bundle for %q has feature length %d, extractor produces %d; retrain required",
			user, bundle.FeatureLength, s.extractor.FeatureLength())
	}

	// Gate silence before consulting the model: a capture below the RMS
	// gate cannot carry a command, and the forest would otherwise place
	// its zero vector in an arbitrary leaf.
	if w.RMS() < s.cfg.RMSGate {
		return Classification{Label: LabelUnknown}, nil
	}

	start := time.Now()
	features, err := s.extractor.Extract(w)
	if err != nil {
		return Classification{}, err
	}
	if s.metrics != nil {
		s.metrics.ExtractionDuration.Record(ctx, time.Since(start).Seconds())
	}

	ranked := Rank(bundle.Labels, bundle.PredictProba(features))
	decision := Decide(ranked, s.cfg.Decider)

	cls := Classification{Label: decision, Ranked: ranked}
	if decision != LabelUnknown {
		prof, err := s.profiles.LoadOrCreate(ctx, user)
		if err != nil {
			return Classification{}, err
		}
		if id, ok := prof.Action(decision); ok {
			cls.ActionID = id
		}
	}
	return cls, nil
}

// DeleteResult reports a label deletion.
type DeleteResult struct {
	User            string      `json:"user"`
	Label           string      `json:"label"`
	RemovedExamples int         `json:"removed_examples"`
	Train           TrainResult `json:"train"`
}

// DeleteLabel removes every example of label, its stored audio, and its
// action binding, then forces a retrain so residual model state cannot keep
// predicting the deleted command. When too little data remains to train,
// the stale bundle is deleted outright.
func (s *Service) DeleteLabel(ctx context.Context, user, label string) (DeleteResult, error) {
	user = ident.Normalize(user)
	label = ident.Normalize(label)

	lock := s.userLock(user)
	lock.Lock()
	defer lock.Unlock()

	prof, err := s.profiles.Load(ctx, user)
	if errors.Is(err, profile.ErrNotFound) {
		return DeleteResult{}, fmt.Errorf("%w: %q", ErrNoProfile, user)
	}
	if err != nil {
		return DeleteResult{}, err
	}

	removed := prof.RemoveLabel(label)
	if err := s.profiles.Save(ctx, user, prof); err != nil {
		return DeleteResult{}, err
	}
	if err := s.profiles.DeleteAudio(user, label); err != nil {
		return DeleteResult{}, err
	}

	result := DeleteResult{User: user, Label: label, RemovedExamples: removed}

	train, err := s.trainer.Train(ctx, user)
	if err != nil {
		return result, err
	}
	result.Train = train
	if train.Status != TrainStatusTrained {
		// Too little data to refit: remove the stale bundle instead of
		// leaving one that still knows the deleted label.
		if err := s.models.Delete(ctx, user); err != nil {
			return result, err
		}
	}
	return result, nil
}

// Reset deletes the user's profile document, model bundle, and all stored
// audio.
func (s *Service) Reset(ctx context.Context, user string) error {
	user = ident.Normalize(user)

	lock := s.userLock(user)
	lock.Lock()
	defer lock.Unlock()

	if err := s.profiles.Delete(ctx, user); err != nil {
		return err
	}
	if err := s.models.Delete(ctx, user); err != nil {
		return err
	}
	return s.profiles.DeleteUserAudio(user)
}

// UserInfo summarises one user's enrolled commands.
type UserInfo struct {
	User    string      `json:"user"`
	Labels  []LabelInfo `json:"labels"`
	Version int64       `json:"version"`
}

// LabelInfo summarises one enrolled command.
type LabelInfo struct {
	Label    string `json:"label"`
	Examples int    `json:"examples"`
	ActionID string `json:"action_id,omitempty"`
}

// Info returns the labels, example counts, and action bindings for user.
func (s *Service) Info(ctx context.Context, user string) (UserInfo, error) {
	user = ident.Normalize(user)

	prof, err := s.profiles.Load(ctx, user)
	if errors.Is(err, profile.ErrNotFound) {
		return UserInfo{}, fmt.Errorf("%w: %q", ErrNoProfile, user)
	}
	if err != nil {
		return UserInfo{}, err
	}

	info := UserInfo{User: user, Version: prof.Version}
	counts := prof.CountByLabel()
	for _, label := range prof.Labels() {
		li := LabelInfo{Label: label, Examples: counts[label]}
		if id, ok := prof.Action(label); ok {
			li.ActionID = id
		}
		info.Labels = append(info.Labels, li)
	}
	return info, nil
}

// Users lists every user with a persisted profile.
func (s *Service) Users(ctx context.Context) ([]string, error) {
	return s.profiles.Users(ctx)
}
