// Package shell wires together every acquisition, DSP, storage, playback,
// and web component into one running process, following the teacher's
// cmd/dmr-nexus/main.go lifecycle shape: goroutine-per-responsibility,
// a shared stop/context.Done() signal, and a sync.WaitGroup join bounded
// at shutdown. cmd/neomonitor is a thin flag-parsing shell around this
// package's Monitor.
package shell

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dbehnke/neomonitor/pkg/aeeg"
	"github.com/dbehnke/neomonitor/pkg/audit"
	"github.com/dbehnke/neomonitor/pkg/collab"
	"github.com/dbehnke/neomonitor/pkg/config"
	"github.com/dbehnke/neomonitor/pkg/dsp"
	"github.com/dbehnke/neomonitor/pkg/logger"
	"github.com/dbehnke/neomonitor/pkg/metrics"
	"github.com/dbehnke/neomonitor/pkg/playback"
	"github.com/dbehnke/neomonitor/pkg/signal"
	"github.com/dbehnke/neomonitor/pkg/storage"
	"github.com/dbehnke/neomonitor/pkg/timeline"
	"github.com/dbehnke/neomonitor/pkg/web"
)

// Monitor owns every long-lived component of a running neomonitor process:
// acquisition state, storage, the audit journal, and the web dashboard. It
// implements collab.Controller directly, so the web API can be wired
// straight at it.
type Monitor struct {
	cfg *config.Config
	log *logger.Logger

	metrics *metrics.Collector

	db      *storage.DB
	writer  *storage.Writer
	reader  *storage.Reader
	reaper  *storage.Reaper
	journal *audit.Journal

	webServer *web.Server

	clock *timeline.Clock

	// Live DSP/aEEG state, one instance per derived EEG channel
	// (CH1..CH4); cascades are never shared across channels.
	filterMu sync.RWMutex
	filters  dsp.FilterSet
	eegLive  [signal.EEGChannels]*dsp.LiveChannel
	aeegCh   [signal.EEGChannels]*aeeg.Channel
	gsHist   [signal.EEGChannels]*aeeg.Histogram

	gainMu sync.RWMutex
	gains  [signal.EEGChannels]float64

	activeSessionID atomic.Value // string

	reviewMu    sync.Mutex
	review      *playback.Coordinator
	reviewEEG   *playback.EEGEmitter
	reviewNIRS  *playback.NIRSEmitter
	reviewClock *timeline.PlaybackClock

	stop chan struct{}
	wg   sync.WaitGroup
}

// defaultGainUvPerPx is the initial per-channel display scale before any
// ChangeGain call.
const defaultGainUvPerPx = 0.1

var _ collab.Controller = (*Monitor)(nil)

// New builds a Monitor from a loaded configuration: opens storage, builds
// the writer/reader/reaper/journal, and constructs a cold DSP/aEEG chain
// for every channel at the live-path's default filter selection.
func New(cfg *config.Config, log *logger.Logger) (*Monitor, error) {
	dbPath := cfg.Storage.Root + "/neomonitor.db"
	db, err := storage.Open(storage.Config{Path: dbPath}, log.WithComponent("storage"))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	m := &Monitor{
		cfg:     cfg,
		log:     log,
		metrics: metrics.NewCollector(),
		db:      db,
		writer:  storage.NewWriter(db, log.WithComponent("storage.writer")),
		reader:  storage.NewReader(db),
		reaper:  storage.NewReaper(db, log.WithComponent("storage.reaper"), cfg.Storage.CapBytes),
		journal: audit.New(db),
		clock:   timeline.New(),
		filters: dsp.FilterSet{Notch: dsp.Notch60Hz, HPF: dsp.HPF05Hz, LPF: dsp.LPF70Hz},
		stop:    make(chan struct{}),
	}
	m.activeSessionID.Store("")

	for c := 0; c < signal.EEGChannels; c++ {
		m.eegLive[c] = dsp.NewLiveChannel(int64(protocolSampleIntervalUs), m.filters)
		m.aeegCh[c] = aeeg.NewChannel()
		m.gsHist[c] = aeeg.NewHistogram()
	}

	m.gainMu.Lock()
	for c := range m.gains {
		m.gains[c] = defaultGainUvPerPx
	}
	m.gainMu.Unlock()

	m.webServer = web.NewServer(cfg.Web, log.WithComponent("web")).
		WithController(m).
		WithJournal(m.journal)

	return m, nil
}

// protocolSampleIntervalUs mirrors protocol.SampleIntervalUs without an
// import cycle concern; it is redefined here as a plain constant since the
// value (6250us @ 160Hz) is frozen by the device firmware, not computed.
const protocolSampleIntervalUs = 1_000_000 / 160

// Close releases the storage connection. Callers should stop acquisition
// (Run's context cancellation) before calling Close.
func (m *Monitor) Close() error {
	return m.db.Close()
}

// Metrics exposes the collector so cmd/neomonitor can wire a Prometheus
// server against it.
func (m *Monitor) Metrics() *metrics.Collector { return m.metrics }

// WebServer exposes the dashboard server so cmd/neomonitor can start it
// within its own lifecycle goroutine.
func (m *Monitor) WebServer() *web.Server { return m.webServer }

func (m *Monitor) currentFilterSet() dsp.FilterSet {
	m.filterMu.RLock()
	defer m.filterMu.RUnlock()
	return m.filters
}
