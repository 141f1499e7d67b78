package shell

import (
	"context"
	"time"

	"github.com/dbehnke/neomonitor/pkg/config"
	"github.com/dbehnke/neomonitor/pkg/logger"
	"github.com/dbehnke/neomonitor/pkg/protocol"
	"github.com/dbehnke/neomonitor/pkg/serial"
	"github.com/dbehnke/neomonitor/pkg/signal"
	"github.com/dbehnke/neomonitor/pkg/storage"
	"github.com/dbehnke/neomonitor/pkg/timeline"
)

// eegReadBufSize is the per-Read chunk the reconnector fills; EEG frames
// are 40 bytes so this comfortably spans several frames per syscall.
const eegReadBufSize = 512
const nirsReadBufSize = 256

// Run starts every long-lived goroutine (EEG/NIRS acquisition, the
// reaper's periodic sweep) and blocks until ctx is cancelled, then joins
// every goroutine, following the teacher's bounded-shutdown pattern.
func (m *Monitor) Run(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.reaper.Run(10*time.Minute, m.stop, func() int64 { return int64(m.clock.NowUs()) })
	}()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runEEGAcquisition(ctx)
	}()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runNIRSAcquisition(ctx)
	}()

	<-ctx.Done()
	close(m.stop)
	m.wg.Wait()

	m.reviewMu.Lock()
	if m.review != nil {
		m.review.Stop()
	}
	m.reviewMu.Unlock()
}

// runEEGAcquisition owns the EEG serial link for the lifetime of the
// process: it reconnects transparently on transport failure and feeds
// every verified frame through handleEEGFrame.
func (m *Monitor) runEEGAcquisition(ctx context.Context) {
	log := m.log.WithComponent("acquisition.eeg")
	recon := serial.NewReconnector(m.cfg.Acquisition.EEGPort, serial.EEGBaud, func(err error) {
		m.metrics.SerialError()
		log.Warn("eeg serial error, reconnecting", logger.Error(err))
		m.recordAudit(storage.EventSerialError, nil, nil, err.Error())
	})
	defer recon.Close()

	parser := protocol.NewEEGParser()
	buf := make([]byte, eegReadBufSize)
	firstTs := true
	var tsUs timeline.Micros

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := recon.Read(buf, m.stop)
		if err != nil {
			return // stop closed mid-reconnect
		}
		for i := 0; i < n; i++ {
			frame, ferr, complete := parser.Feed(buf[i])
			if !complete {
				continue
			}
			if ferr != nil {
				m.metrics.EEGCrcError()
				m.recordAudit(storage.EventCRCError, nil, nil, `{"stream":"eeg"}`)
				continue
			}
			m.metrics.EEGFrameParsed()

			if firstTs {
				tsUs = m.clock.NowUs()
				firstTs = false
			} else {
				tsUs += protocol.SampleIntervalUs
			}
			m.handleEEGFrame(frame, tsUs)
		}
	}
}

// handleEEGFrame runs one verified EEG frame through the per-channel live
// filter chain and the aEEG/GS pipeline, persists it if a session is
// active, and pushes a render snapshot to the dashboard. It takes no
// dependency on the serial transport, so it is exercised directly by
// tests.
func (m *Monitor) handleEEGFrame(f *protocol.EEGFrame, tsUs timeline.Micros) {
	raw := protocol.ToSample(f, tsUs, signal.QNormal)

	var filtered signal.EEGSample
	filtered.TsUs = tsUs
	for c := 0; c < signal.EEGChannels; c++ {
		y, q := m.eegLive[c].ProcessSample(raw.Channels[c], int64(tsUs))
		filtered.Channels[c] = y
		filtered.Quality = filtered.Quality.Merge(q)

		if win, ok := m.aeegCh[c].Process(raw.Channels[c], tsUs, q); ok {
			m.recordAEEGTrend(c, win)
			if frame, ok := m.gsHist[c].Accept(win, f.GS, tsUs); ok {
				m.webServer.GetHub().BroadcastGSFrame(c, frame)
			}
		}
	}

	if sid, _ := m.activeSessionID.Load().(string); sid != "" {
		if err := m.writer.AppendEEG(sid, storage.RawEEGSample{
			TsUs:     int64(raw.TsUs),
			Channels: raw.Channels,
			Quality:  uint8(raw.Quality),
		}); err != nil {
			m.metrics.StorageError()
			m.log.Error("append eeg sample failed", logger.Error(err))
		}
	}

	m.webServer.GetRenderer().Render(eegSampleToSnapshot(filtered, m.primaryGain()))
}

func (m *Monitor) recordAEEGTrend(channel int, win signal.AEEGWindow) {
	sid, _ := m.activeSessionID.Load().(string)
	if sid == "" || !win.Valid {
		return
	}
	row := storage.AEEGTrend{
		SessionID: sid,
		TsUs:      int64(win.CenterUs),
		Channel:   channel,
		MinUv:     win.MinUv,
		MaxUv:     win.MaxUv,
		Bandwidth: int(win.Quality),
	}
	if err := m.db.GORM().Create(&row).Error; err != nil {
		m.metrics.StorageError()
		m.log.Error("write aeeg trend failed", logger.Error(err))
	}
}

// runNIRSAcquisition owns the NIRS link: a real serial port in
// config.NIRSModeReal, or a synthetic bench generator in
// config.NIRSModeMock so the rest of the pipeline can be exercised
// without the device attached.
func (m *Monitor) runNIRSAcquisition(ctx context.Context) {
	log := m.log.WithComponent("acquisition.nirs")

	if m.cfg.Acquisition.NIRSMode == config.NIRSModeMock {
		runMockNIRS(ctx, m.stop, m.handleNIRSSample)
		return
	}

	recon := serial.NewReconnector(m.cfg.Acquisition.NIRSPort, serial.NIRSBaud, func(err error) {
		m.metrics.SerialError()
		log.Warn("nirs serial error, reconnecting", logger.Error(err))
		m.recordAudit(storage.EventSerialError, nil, nil, err.Error())
	})
	defer recon.Close()

	lineReader := &protocol.NIRSLineReader{}
	parser := protocol.NewNIRSParser()
	buf := make([]byte, nirsReadBufSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := recon.Read(buf, m.stop)
		if err != nil {
			return
		}
		for _, line := range lineReader.Write(buf[:n]) {
			sample, perr := parser.Parse(line)
			if perr != nil {
				if _, ok := perr.(*protocol.CrcError); ok {
					m.metrics.NIRSCrcError()
				} else {
					m.metrics.NIRSParseError()
				}
				m.recordAudit(storage.EventCRCError, nil, nil, `{"stream":"nirs"}`)
				continue
			}
			m.metrics.NIRSFrameParsed()
			m.handleNIRSSample(sample, m.clock.NowUs())
		}
	}
}

// handleNIRSSample persists one decoded NIRS sample if a session is
// active. NIRS channels are device percentages passed straight through
// with no DSP stage (spec.md §4.8).
func (m *Monitor) handleNIRSSample(s *signal.NIRSSample, tsUs timeline.Micros) {
	s.TsUs = tsUs
	sid, _ := m.activeSessionID.Load().(string)
	if sid == "" {
		return
	}

	var raw storage.RawNIRSSample
	raw.TsUs = int64(tsUs)
	raw.FrameFlags = uint8(s.FrameFlags)
	for c := range s.Channels {
		raw.ChValid[c] = s.Channels[c].Valid
		raw.Channels[c] = s.Channels[c].Value
		raw.ChQuality[c] = uint8(s.ChQuality[c])
	}
	if err := m.writer.AppendNIRS(sid, raw); err != nil {
		m.metrics.StorageError()
		m.log.Error("append nirs sample failed", logger.Error(err))
	}
}
