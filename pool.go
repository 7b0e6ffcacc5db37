package restkit

import "sync"

// ConnectionPool memoizes one RequestQueue per host so independent hosts
// never contend for each other's slots.
type ConnectionPool struct {
	cfg     QueueConfig
	metrics *MetricsCollector
	logger  Logger

	mu     sync.RWMutex
	queues map[string]*RequestQueue
}

// NewConnectionPool creates a pool whose queues share one configuration.
func NewConnectionPool(cfg QueueConfig, metrics *MetricsCollector, logger Logger) *ConnectionPool {
	return &ConnectionPool{
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		queues:  make(map[string]*RequestQueue),
	}
}

// Queue returns the queue for a host, creating it on first use.
func (p *ConnectionPool) Queue(host string) *RequestQueue {
	p.mu.RLock()
	q, ok := p.queues[host]
	p.mu.RUnlock()
	if ok {
		return q
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if q, ok := p.queues[host]; ok {
		return q
	}
	q = NewRequestQueue(host, p.cfg, p.metrics, p.logger)
	p.queues[host] = q
	return q
}

// Status snapshots every known host queue.
func (p *ConnectionPool) Status() map[string]QueueStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	status := make(map[string]QueueStatus, len(p.queues))
	for host, q := range p.queues {
		status[host] = q.Status()
	}
	return status
}

// ClearAll drops every waiting request across all host queues and returns
// the total number cleared.
func (p *ConnectionPool) ClearAll() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	total := 0
	for _, q := range p.queues {
		total += q.Clear()
	}
	return total
}
