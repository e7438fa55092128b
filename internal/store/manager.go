package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/perforate-org/arche/internal/kv"
)

// SnapshotName is the blob name of the consolidated snapshot.
const SnapshotName = "indices"

// Phase is a lifecycle state of the Manager.
type Phase int

const (
	PhaseCold Phase = iota
	PhaseInitialized
	PhaseRunning
	PhaseSuspending
	PhaseSuspended
	PhaseResuming
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseCold:
		return "cold"
	case PhaseInitialized:
		return "initialized"
	case PhaseRunning:
		return "running"
	case PhaseSuspending:
		return "suspending"
	case PhaseSuspended:
		return "suspended"
	case PhaseResuming:
		return "resuming"
	case PhaseTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ErrPhase is returned when a lifecycle hook is called out of order.
var ErrPhase = errors.New("invalid lifecycle phase")

// ResumeReport describes how the indices were brought back.
type ResumeReport struct {
	Restored bool `json:"restored"`
	Rebuilt  bool `json:"rebuilt"`
	// Reason explains a rebuild. Empty when the snapshot was restored as a whole.
	Reason string `json:"reason,omitempty"`
	// RebuiltKinds lists kinds absent from the snapshot that were rebuilt after a restore.
	RebuiltKinds []string      `json:"rebuilt_kinds,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Manager saves the secondary indices before shutdown and restores or
// rebuilds them after start.
type Manager struct {
	mu     sync.Mutex
	state  *State
	blobs  kv.BlobStore
	logger *slog.Logger
	phase  Phase
}

// NewManager creates a Manager. A nil blob store keeps the snapshot inside
// the state's own KV store.
func NewManager(state *State, blobs kv.BlobStore, logger *slog.Logger) *Manager {
	if blobs == nil {
		blobs = kv.NewBucketBlobs(state.DB(), BucketSnapshots)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{state: state, blobs: blobs, logger: logger, phase: PhaseInitialized}
}

// Phase returns the current lifecycle phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Suspend writes the snapshot. Failures are logged and never returned; the
// indices will be rebuilt on the next Resume.
func (m *Manager) Suspend(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseTerminated {
		return
	}
	m.phase = PhaseSuspending
	defer func() { m.phase = PhaseSuspended }()

	data, err := EncodeSnapshot(m.state.Capture())
	if err != nil {
		snapshotOps.WithLabelValues("save", "error").Inc()
		m.logger.Error("failed to encode snapshot", "error", err)
		return
	}
	if err := m.blobs.SaveBlob(ctx, SnapshotName, data); err != nil {
		snapshotOps.WithLabelValues("save", "error").Inc()
		m.logger.Error("failed to save snapshot", "error", err)
		return
	}
	snapshotOps.WithLabelValues("save", "ok").Inc()
	snapshotBytes.Set(float64(len(data)))
	m.logger.Info("snapshot saved", "bytes", len(data))
}

// Resume restores the indices from the snapshot, falling back to a full
// rebuild from the primary tables when the blob is missing or unreadable.
// A restored snapshot is deleted, so only a later Suspend can arm it again.
// An error is returned when the rebuild fails or the blob cannot be deleted.
func (m *Manager) Resume(ctx context.Context) (ResumeReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseTerminated {
		return ResumeReport{}, fmt.Errorf("%w: resume after terminate", ErrPhase)
	}
	m.phase = PhaseResuming
	start := time.Now()

	report, err := m.resume(ctx)
	report.Duration = time.Since(start)
	if err != nil {
		return report, err
	}
	m.phase = PhaseRunning
	m.logger.Info("indices ready",
		"restored", report.Restored,
		"rebuilt", report.Rebuilt,
		"reason", report.Reason,
		"duration", report.Duration)
	return report, nil
}

func (m *Manager) resume(ctx context.Context) (ResumeReport, error) {
	data, err := m.blobs.LoadBlob(ctx, SnapshotName)
	if err != nil {
		reason := "snapshot missing"
		if !errors.Is(err, kv.ErrNoBlob) {
			snapshotOps.WithLabelValues("load", "error").Inc()
			m.logger.Warn("failed to load snapshot, rebuilding", "error", err)
			reason = "snapshot unreadable"
		} else {
			snapshotOps.WithLabelValues("load", "missing").Inc()
		}
		return m.rebuild(ctx, reason)
	}

	snap, err := DecodeSnapshot(data)
	if err != nil {
		snapshotOps.WithLabelValues("load", "corrupt").Inc()
		m.logger.Warn("failed to decode snapshot, rebuilding", "error", err)
		return m.rebuild(ctx, "snapshot corrupt")
	}
	snapshotOps.WithLabelValues("load", "ok").Inc()

	// Writes after this point are not in the blob. Dropping it now means a
	// process that dies without a Suspend rebuilds on the next start.
	if err := m.blobs.DeleteBlob(ctx, SnapshotName); err != nil {
		snapshotOps.WithLabelValues("consume", "error").Inc()
		return ResumeReport{}, fmt.Errorf("failed to consume snapshot: %w", err)
	}

	report := ResumeReport{Restored: true}
	missing := m.state.Restore(snap)
	if len(missing) > 0 {
		m.logger.Warn("snapshot lacks entity kinds, rebuilding them", "kinds", missing)
		indexRebuilds.WithLabelValues("kind_missing").Inc()
		if err := m.state.RebuildKinds(ctx, missing); err != nil {
			return m.rebuild(ctx, "partial rebuild failed")
		}
		report.RebuiltKinds = missing
	}
	if err := m.state.ResyncCounters(ctx); err != nil {
		return report, err
	}
	return report, nil
}

func (m *Manager) rebuild(ctx context.Context, reason string) (ResumeReport, error) {
	indexRebuilds.WithLabelValues(reason).Inc()
	if err := m.state.Rebuild(ctx); err != nil {
		m.logger.Error("index rebuild failed", "reason", reason, "error", err)
		return ResumeReport{Rebuilt: true, Reason: reason}, fmt.Errorf("failed to rebuild indices: %w", err)
	}
	return ResumeReport{Rebuilt: true, Reason: reason}, nil
}

// Rebuild forces a rebuild from the primary tables regardless of any snapshot.
func (m *Manager) Rebuild(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.rebuild(ctx, "forced")
	if err == nil && m.phase != PhaseTerminated {
		m.phase = PhaseRunning
	}
	return err
}

// Terminate suspends once more and refuses further lifecycle calls.
func (m *Manager) Terminate(ctx context.Context) {
	m.Suspend(ctx)
	m.mu.Lock()
	m.phase = PhaseTerminated
	m.mu.Unlock()
}

// LoadSnapshot reads and decodes the stored snapshot without applying it.
func (m *Manager) LoadSnapshot(ctx context.Context) (*Snapshot, int, error) {
	data, err := m.blobs.LoadBlob(ctx, SnapshotName)
	if err != nil {
		return nil, 0, err
	}
	snap, err := DecodeSnapshot(data)
	if err != nil {
		return nil, len(data), err
	}
	return snap, len(data), nil
}
