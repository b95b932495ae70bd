package metrics

import (
	"sync/atomic"
	"testing"
	"time"
)

type mockStatsProvider struct {
	stats Stats
	calls atomic.Int32
}

func (m *mockStatsProvider) GetStats() Stats {
	m.calls.Add(1)
	return m.stats
}

func TestNewCollector(t *testing.T) {
	provider := &mockStatsProvider{}
	c := NewCollector(provider, time.Minute)

	if c == nil {
		t.Fatal("NewCollector returned nil")
	}
	if c.interval != time.Minute {
		t.Errorf("Expected interval=1m, got %v", c.interval)
	}
	if c.stopChan == nil {
		t.Error("Expected stopChan to be initialized")
	}
}

func TestCollectWithNilProvider(t *testing.T) {
	c := NewCollector(nil, time.Minute)
	// Should not panic
	c.collect()
}

func TestCollectSetsGauges(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{CacheEntries: 12, ActiveSessions: 3}}
	c := NewCollector(provider, time.Minute)

	c.collect()

	if got := gaugeValue(t, CacheEntries); got != 12 {
		t.Errorf("CacheEntries = %v, want 12", got)
	}
	if got := gaugeValue(t, StreamSessionsActive); got != 3 {
		t.Errorf("StreamSessionsActive = %v, want 3", got)
	}
}

func TestCollectorStartStop(t *testing.T) {
	provider := &mockStatsProvider{}
	c := NewCollector(provider, 10*time.Millisecond)

	c.Start()
	time.Sleep(55 * time.Millisecond)
	c.Stop()

	if n := provider.calls.Load(); n < 2 {
		t.Errorf("Expected at least 2 collections, got %d", n)
	}
}

func TestStatsFunc(t *testing.T) {
	f := StatsFunc(func() Stats { return Stats{CacheEntries: 1, ActiveSessions: 2} })
	if got := f.GetStats(); got.CacheEntries != 1 || got.ActiveSessions != 2 {
		t.Errorf("GetStats() = %+v", got)
	}
}
