package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ShotaNagafuchi/slack-stamp-mask/internal/model"
)

// Factory builds a fresh Stamper for a token.
type Factory func(token string) *Stamper

// Manager owns at most one running Stamper.
type Manager struct {
	newStamper Factory
	log        *slog.Logger

	// op serialises Start and Stop; mu guards the fields below.
	op      sync.Mutex
	mu      sync.Mutex
	current *Stamper
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates an idle Manager.
func NewManager(newStamper Factory, log *slog.Logger) *Manager {
	return &Manager{newStamper: newStamper, log: log}
}

// Start discards any running stamper, initializes a new one for token and
// runs it in the background. Initialization errors are returned and leave
// the manager inactive.
func (m *Manager) Start(ctx context.Context, token string) error {
	m.op.Lock()
	defer m.op.Unlock()

	m.stop()

	st := m.newStamper(token)
	m.mu.Lock()
	m.current = st
	m.mu.Unlock()

	if err := st.Init(ctx); err != nil {
		m.mu.Lock()
		m.current = nil
		m.mu.Unlock()
		return err
	}

	// The loop outlives the request that started it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	m.mu.Lock()
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		st.Run(runCtx)
	}()

	m.log.Info("auto mode started")
	return nil
}

// Stop cancels the poll loop and every pending reaction, then waits for
// the loop to exit. Stopping an idle manager is a no-op.
func (m *Manager) Stop() {
	m.op.Lock()
	defer m.op.Unlock()
	m.stop()
}

func (m *Manager) stop() {
	m.mu.Lock()
	cancel := m.cancel
	wasRunning := m.running
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()

	m.mu.Lock()
	m.current = nil
	m.running = false
	m.mu.Unlock()

	if wasRunning {
		m.log.Info("auto mode stopped")
	}
}

// Status reports the current stamper, or an idle status when none runs.
func (m *Manager) Status() model.Status {
	m.mu.Lock()
	st, running := m.current, m.running
	m.mu.Unlock()

	if st == nil {
		return model.Status{State: model.StateIdle}
	}
	status := st.Status()
	status.Active = running
	return status
}
