package monitor

import (
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/taosdata/bouncerkeeper/infrastructure/log"
)

var logger = log.GetLogger("monitor")

type SysStatus struct {
	CollectTime time.Time
	CpuPercent  float64
	CpuError    error
	MemPercent  float64
	MemError    error
	RSS         uint64
}

// Monitor samples cpu and memory usage of the running poller.
type Monitor struct {
	proc       *process.Process
	cpuPercent prometheus.Gauge
	memPercent prometheus.Gauge
	rss        prometheus.Gauge
	exitChan   chan struct{}
	closeOnce  sync.Once
	done       sync.WaitGroup
}

func NewMonitor() (*Monitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Monitor{
		proc: proc,
		cpuPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bouncerkeeper_process_cpu_percent",
			Help: "Cpu usage of bouncerkeeper since the previous sample.",
		}),
		memPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bouncerkeeper_process_mem_percent",
			Help: "Resident memory of bouncerkeeper as a percent of total memory.",
		}),
		rss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bouncerkeeper_process_resident_memory_bytes",
			Help: "Resident memory of bouncerkeeper.",
		}),
		exitChan: make(chan struct{}),
	}, nil
}

// Sample reads the current status and updates the gauges. Failed readings keep the old value.
func (m *Monitor) Sample() SysStatus {
	status := SysStatus{CollectTime: time.Now()}
	status.CpuPercent, status.CpuError = m.proc.Percent(0)
	if status.CpuError == nil {
		m.cpuPercent.Set(status.CpuPercent)
	} else {
		logger.WithError(status.CpuError).Warn("get cpu percent")
	}
	mem, err := m.proc.MemoryPercent()
	status.MemPercent, status.MemError = float64(mem), err
	if err == nil {
		m.memPercent.Set(status.MemPercent)
	} else {
		logger.WithError(err).Warn("get memory percent")
	}
	if info, err := m.proc.MemoryInfo(); err == nil {
		status.RSS = info.RSS
		m.rss.Set(float64(info.RSS))
	}
	return status
}

func (m *Monitor) Start(interval time.Duration) {
	m.Sample()
	m.done.Add(1)
	go func() {
		defer m.done.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sample()
			case <-m.exitChan:
				return
			}
		}
	}()
}

func (m *Monitor) Close() {
	m.closeOnce.Do(func() {
		close(m.exitChan)
	})
	m.done.Wait()
}

func (m *Monitor) Describe(descs chan<- *prometheus.Desc) {
	m.cpuPercent.Describe(descs)
	m.memPercent.Describe(descs)
	m.rss.Describe(descs)
}

func (m *Monitor) Collect(metrics chan<- prometheus.Metric) {
	m.cpuPercent.Collect(metrics)
	m.memPercent.Collect(metrics)
	m.rss.Collect(metrics)
}
