package restkit

import (
	"testing"
	"time"
)

func TestCacheJanitorSweeps(t *testing.T) {
	cache := NewMemoryCache(10)
	cache.Set("short", testEntry("x"), 10*time.Millisecond)
	cache.Set("long", testEntry("y"), time.Minute)

	janitor, err := NewCacheJanitor(cache, "@every 20ms", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	janitor.Start()
	defer janitor.Stop()

	deadline := time.After(time.Second)
	for cache.Len() > 1 {
		select {
		case <-deadline:
			t.Fatal("janitor never swept the expired entry")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if !cache.Has("long") {
		t.Error("live entry must survive the sweep")
	}
}

func TestCacheJanitorCronSpec(t *testing.T) {
	cache := NewMemoryCache(10)

	if _, err := NewCacheJanitor(cache, "*/5 * * * *", nil); err != nil {
		t.Errorf("standard cron spec should be accepted: %v", err)
	}
	if _, err := NewCacheJanitor(cache, "@every 1h", nil); err != nil {
		t.Errorf("cron @every spec should be accepted: %v", err)
	}
	if _, err := NewCacheJanitor(cache, "not a schedule", nil); err == nil {
		t.Error("invalid spec should be rejected")
	}
}

func TestSubMinuteEvery(t *testing.T) {
	if d, ok := subMinuteEvery("@every 50ms"); !ok || d != 50*time.Millisecond {
		t.Errorf("sub-minute spec: %v %v", d, ok)
	}
	if _, ok := subMinuteEvery("@every 2m"); ok {
		t.Error("minute-plus specs belong to cron")
	}
	if _, ok := subMinuteEvery("*/5 * * * *"); ok {
		t.Error("plain cron specs are not @every")
	}
}
