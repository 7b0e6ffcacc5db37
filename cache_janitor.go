package restkit

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// CacheJanitor periodically sweeps expired entries out of a Cache. The
// schedule is a cron spec; "@every <duration>" schedules shorter than a
// minute run on a plain ticker since cron's resolution is one minute.
type CacheJanitor struct {
	cache  Cache
	logger Logger

	cron   *cron.Cron
	ticker *time.Ticker
	stop   chan struct{}
}

// NewCacheJanitor validates spec and prepares a janitor for cache. Call
// Start to begin sweeping.
func NewCacheJanitor(cache Cache, spec string, logger Logger) (*CacheJanitor, error) {
	j := &CacheJanitor{
		cache:  cache,
		logger: logger,
		stop:   make(chan struct{}),
	}

	if d, ok := subMinuteEvery(spec); ok {
		j.ticker = time.NewTicker(d)
		return j, nil
	}

	j.cron = cron.New()
	if _, err := j.cron.AddFunc(spec, j.sweep); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}
	return j, nil
}

// Start begins the sweep schedule.
func (j *CacheJanitor) Start() {
	if j.ticker != nil {
		go func() {
			for {
				select {
				case <-j.ticker.C:
					j.sweep()
				case <-j.stop:
					return
				}
			}
		}()
		return
	}
	j.cron.Start()
}

// Stop halts sweeping. Safe to call once.
func (j *CacheJanitor) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
		close(j.stop)
		return
	}
	j.cron.Stop()
}

func (j *CacheJanitor) sweep() {
	removed := j.cache.Cleanup()
	if removed > 0 && j.logger != nil {
		j.logger.Debug("cache sweep removed expired entries", "removed", removed)
	}
}

// subMinuteEvery parses "@every <duration>" specs below cron's one minute
// resolution.
func subMinuteEvery(spec string) (time.Duration, bool) {
	rest, ok := strings.CutPrefix(spec, "@every ")
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(rest)
	if err != nil || d <= 0 || d >= time.Minute {
		return 0, false
	}
	return d, true
}
