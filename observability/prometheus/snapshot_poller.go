package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/lattice-run/minirts/worker"
)

// PoolSnapshotProvider provides current pool stats snapshots. A
// *worker.ThreadPool already satisfies it.
type PoolSnapshotProvider interface {
	Stats() worker.Stats
}

// SnapshotPoller periodically exports worker.ThreadPool.Stats()
// snapshots into Prometheus gauges, for the state a pool doesn't emit
// inline through obs.Metrics (current queue depth and active-worker
// count, rather than per-task events).
type SnapshotPoller struct {
	interval time.Duration

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	poolQueuedLocal  *prom.GaugeVec
	poolQueuedSubmit *prom.GaugeVec
	poolActive       *prom.GaugeVec
	poolWorkers      *prom.GaugeVec
	poolState        *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its
// collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	poolQueuedLocal := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "minirts",
		Name:      "pool_queued_local",
		Help:      "Sum of per-worker work-stealing deque depths.",
	}, []string{"pool"})
	poolQueuedSubmit := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "minirts",
		Name:      "pool_queued_submit",
		Help:      "Sum of per-worker submission queue depths.",
	}, []string{"pool"})
	poolActive := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "minirts",
		Name:      "pool_active_workers",
		Help:      "Number of workers currently executing a task.",
	}, []string{"pool"})
	poolWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "minirts",
		Name:      "pool_workers",
		Help:      "Worker count per pool.",
	}, []string{"pool"})
	poolState := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "minirts",
		Name:      "pool_state",
		Help:      "Pool lifecycle state: 0=active, 1=draining, 2=exited.",
	}, []string{"pool"})

	var err error
	if poolQueuedLocal, err = registerCollector(reg, poolQueuedLocal); err != nil {
		return nil, err
	}
	if poolQueuedSubmit, err = registerCollector(reg, poolQueuedSubmit); err != nil {
		return nil, err
	}
	if poolActive, err = registerCollector(reg, poolActive); err != nil {
		return nil, err
	}
	if poolWorkers, err = registerCollector(reg, poolWorkers); err != nil {
		return nil, err
	}
	if poolState, err = registerCollector(reg, poolState); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:         interval,
		pools:            make(map[string]PoolSnapshotProvider),
		poolQueuedLocal:  poolQueuedLocal,
		poolQueuedSubmit: poolQueuedSubmit,
		poolActive:       poolActive,
		poolWorkers:      poolWorkers,
		poolState:        poolState,
	}, nil
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.poolsMu.RLock()
	defer p.poolsMu.RUnlock()

	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolQueuedLocal.WithLabelValues(name).Set(float64(stats.QueuedLocal))
		p.poolQueuedSubmit.WithLabelValues(name).Set(float64(stats.QueuedSubmit))
		p.poolActive.WithLabelValues(name).Set(float64(stats.Active))
		p.poolWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		p.poolState.WithLabelValues(name).Set(float64(stats.State))
	}
}
