package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mmsim/internal/metrics"
	"mmsim/pkg/types"
)

// FinalReport is the persisted artifact of a finished (stopped or reset)
// session run.
type FinalReport struct {
	SessionID      string            `json:"session_id"`
	Params         types.ParamBundle `json:"params"`
	InitialCapital float64           `json:"initial_capital"`
	Seed           int64             `json:"seed"`
	FinishedAt     time.Time         `json:"finished_at"`
	Report         Report            `json:"report"`
}

// ReportStore persists final reports. A nil store disables persistence.
type ReportStore interface {
	SaveReport(rep FinalReport) error
}

// Manager is the process-wide session registry. The registry map is the
// only state shared across sessions; it is guarded by a reader-writer
// lock (readers: op dispatch and snapshots; writer: Start registering a
// new session). Reset rebuilds a session in place under its own lock.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cfg    Config
	store  ReportStore
	mets   *metrics.Metrics
	logger *slog.Logger
}

// NewManager creates an empty registry.
func NewManager(cfg Config, store ReportStore, mets *metrics.Metrics, logger *slog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		store:    store,
		mets:     mets,
		logger:   logger.With("component", "manager"),
	}
}

// Start validates the bundle, constructs a session, and registers it
// under a fresh opaque id.
func (m *Manager) Start(params types.ParamBundle, initialCapital float64, seed int64) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}
	if initialCapital <= 0 {
		return "", fmt.Errorf("%w: initial_capital %v must be positive",
			types.ErrInvalidParams, initialCapital)
	}

	id := uuid.NewString()
	s := newSession(id, m.cfg, params, initialCapital, seed, m.logger, m.mets)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	if m.mets != nil {
		m.mets.SessionsActive.Inc()
	}
	m.logger.Info("session started",
		"session", id,
		"initial_capital", initialCapital,
		"seed", seed,
		"max_inventory", params.MaxInventory,
		"entry_threshold_bps", params.EntryThresholdBps,
	)
	return id, nil
}

// get resolves a session id under the read lock.
func (m *Manager) get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownSession, id)
	}
	return s, nil
}

// Stop flags a session stopped and persists its final report.
func (m *Manager) Stop(id string) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	m.persist(s.Stop())
	return nil
}

// Poll advances a running session one tick and returns its snapshot.
func (m *Manager) Poll(id string) (types.SessionSnapshot, error) {
	s, err := m.get(id)
	if err != nil {
		return types.SessionSnapshot{}, err
	}
	return s.Poll(), nil
}

// Trade submits a manual market order on the session's behalf.
func (m *Manager) Trade(id string, side types.Side, size int64) (types.SessionTrade, error) {
	s, err := m.get(id)
	if err != nil {
		return types.SessionTrade{}, err
	}
	return s.Trade(side, size)
}

// Reset persists the old run's report and rebuilds the session in place
// from its stored parameters and seed.
func (m *Manager) Reset(id string) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	m.persist(s.Reset())
	m.logger.Info("session reset", "session", id)
	return nil
}

// UpdateParams validates and stages a new bundle; it applies next tick.
func (m *Manager) UpdateParams(id string, params types.ParamBundle) error {
	if err := params.Validate(); err != nil {
		return err
	}
	s, err := m.get(id)
	if err != nil {
		return err
	}
	s.UpdateParams(params)
	return nil
}

// Report computes the analytics summary for a session on demand.
func (m *Manager) Report(id string) (Report, error) {
	s, err := m.get(id)
	if err != nil {
		return Report{}, err
	}
	return s.Report(), nil
}

// Snapshots returns a point-in-time view of every registered session,
// without advancing any of them. Used by the live stream broadcaster.
func (m *Manager) Snapshots() []types.SessionSnapshot {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	out := make([]types.SessionSnapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

func (m *Manager) persist(final FinalReport) {
	if m.store == nil {
		return
	}
	if err := m.store.SaveReport(final); err != nil {
		m.logger.Error("failed to save session report", "session", final.SessionID, "error", err)
	}
}
