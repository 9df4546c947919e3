package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// DefaultInterval is the reference polling cadence.
const DefaultInterval = 5 * time.Second

// Exporter writes a periodic audit snapshot. Optional.
type Exporter interface {
	Export(ctx context.Context) error
}

// Manager drives the reconciliation service on a fixed interval. Ticks run
// inline in a single goroutine, so a slow tick delays the next one instead
// of overlapping it. The manager carries no schedule state: eligibility
// lives entirely in the store, so restarts are safe.
type Manager struct {
	service  *Service
	interval time.Duration

	exporter       Exporter
	exportInterval time.Duration

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	lastMu   sync.Mutex
	lastTick time.Time
	lastErr  error
}

// NewManager creates a scheduler for the given service.
func NewManager(service *Service, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Manager{
		service:  service,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// WithExporter attaches a periodic audit exporter to the manager.
func (m *Manager) WithExporter(exporter Exporter, every time.Duration) *Manager {
	m.exporter = exporter
	m.exportInterval = every
	return m
}

// Start begins ticking. Safe to call on a running manager.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so the manager can be
	// restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Infof("[Reconcile Manager] Starting scheduler (interval=%s)", m.interval)

	m.wg.Add(1)
	go m.tickWorker()

	if m.exporter != nil && m.exportInterval > 0 {
		m.wg.Add(1)
		go m.exportWorker()
	}
}

// Stop halts ticking and waits for in-flight work to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Reconcile Manager] Stopping scheduler...")
	close(m.stopCh)
	m.running = false
	m.wg.Wait()
	log.Info("[Reconcile Manager] Scheduler stopped")
}

// LastTick reports the completion time and outcome of the most recent tick.
func (m *Manager) LastTick() (time.Time, error) {
	m.lastMu.Lock()
	defer m.lastMu.Unlock()
	return m.lastTick, m.lastErr
}

func (m *Manager) tickWorker() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.runTick()
		}
	}
}

// runTick executes one reconciliation tick. Errors are recorded and logged
// but never escape: the scheduler must keep ticking indefinitely.
func (m *Manager) runTick() {
	err := m.service.RunTick(context.Background())

	m.lastMu.Lock()
	m.lastTick = time.Now()
	m.lastErr = err
	m.lastMu.Unlock()

	if err != nil {
		log.Errorf("[Reconcile] Tick failed, will retry next interval: %v", err)
	}
}

func (m *Manager) exportWorker() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.exportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			if err := m.exporter.Export(context.Background()); err != nil {
				log.Errorf("[AuditExport] Export failed: %v", err)
			}
		}
	}
}
