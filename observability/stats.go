// Package observability aggregates runtime counters for the status endpoint.
// It observes the system; it never participates in domain logic.
package observability

import (
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Stats holds atomic counters updated from the hot path and snapshotted for
// the status endpoint.
type Stats struct {
	startedAt time.Time

	connections       int64
	commandsProcessed uint64
	commandsDropped   uint64
	eventsDelivered   uint64
	eventsDropped     uint64
}

type Snapshot struct {
	UptimeSeconds     int64   `json:"uptime_seconds"`
	Connections       int64   `json:"connections"`
	CommandsProcessed uint64  `json:"commands_processed"`
	CommandsDropped   uint64  `json:"commands_dropped"`
	EventsDelivered   uint64  `json:"events_delivered"`
	EventsDropped     uint64  `json:"events_dropped"`
	AllocMemMb        uint64  `json:"alloc_mem_mb"`
	NumGC             uint32  `json:"num_gc"`
	RSSBytes          uint64  `json:"rss_bytes"`
	CPUPercent        float64 `json:"cpu_percent"`
}

func NewStats() *Stats {
	return &Stats{startedAt: time.Now().UTC()}
}

func (s *Stats) ConnectionOpened() { atomic.AddInt64(&s.connections, 1) }

func (s *Stats) ConnectionClosed() { atomic.AddInt64(&s.connections, -1) }

func (s *Stats) IncrCommands() { atomic.AddUint64(&s.commandsProcessed, 1) }

func (s *Stats) IncrDroppedCommand() { atomic.AddUint64(&s.commandsDropped, 1) }

func (s *Stats) IncrDelivered() { atomic.AddUint64(&s.eventsDelivered, 1) }

func (s *Stats) IncrDroppedEvent() { atomic.AddUint64(&s.eventsDropped, 1) }

// Snapshot merges the counters with Go memory stats and process-level
// metrics. Process metrics are best-effort; a collection failure leaves the
// corresponding fields at zero.
func (s *Stats) Snapshot() Snapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	snap := Snapshot{
		UptimeSeconds:     int64(time.Since(s.startedAt).Seconds()),
		Connections:       atomic.LoadInt64(&s.connections),
		CommandsProcessed: atomic.LoadUint64(&s.commandsProcessed),
		CommandsDropped:   atomic.LoadUint64(&s.commandsDropped),
		EventsDelivered:   atomic.LoadUint64(&s.eventsDelivered),
		EventsDropped:     atomic.LoadUint64(&s.eventsDropped),
		AllocMemMb:        m.Alloc / 1024 / 1024,
		NumGC:             m.NumGC,
	}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if memInfo, err := p.MemoryInfo(); err == nil {
			snap.RSSBytes = memInfo.RSS
		}
		if cpu, err := p.CPUPercent(); err == nil {
			snap.CPUPercent = cpu
		}
	}
	return snap
}
