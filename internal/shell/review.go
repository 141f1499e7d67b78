package shell

import (
	"fmt"

	"github.com/dbehnke/neomonitor/pkg/buffer"
	"github.com/dbehnke/neomonitor/pkg/logger"
	"github.com/dbehnke/neomonitor/pkg/playback"
	"github.com/dbehnke/neomonitor/pkg/signal"
	"github.com/dbehnke/neomonitor/pkg/storage"
	"github.com/dbehnke/neomonitor/pkg/timeline"
)

// loadSessionForReview reads every stored chunk of a (now-inactive)
// session back into in-memory rings and attaches a fresh playback
// coordinator driving the dashboard renderer at a virtual clock's pace
// (spec.md §4.8). Any previously loaded review session is replaced.
func (m *Monitor) loadSessionForReview(sessionID string) error {
	sess, err := m.reader.Session(sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	eegRing, eegCount, err := m.buildEEGRing(sessionID, sess.StartUs, sess.EndUs)
	if err != nil {
		return err
	}
	nirsRing, nirsCount, err := m.buildNIRSRing(sessionID, sess.StartUs, sess.EndUs)
	if err != nil {
		return err
	}
	m.log.Info("loaded session for review",
		logger.String("session_id", sessionID),
		logger.Int("eeg_samples", eegCount),
		logger.Int("nirs_samples", nirsCount))

	renderer := m.webServer.GetRenderer()
	clock := timeline.NewPlaybackClock()
	clock.SeekTo(sess.StartUs)

	var coord *playback.Coordinator
	eegEmitter := playback.NewEEGEmitter(eegRing, m.currentFilterSet(), func(s signal.EEGSample) {
		renderer.Render(eegSampleToSnapshot(s, m.primaryGain()))
		if coord != nil {
			coord.ObserveEEGTimestamp(s.TsUs)
		}
	})
	nirsEmitter := playback.NewNIRSEmitter(nirsRing, func(signal.NIRSSample) {})

	coord = playback.NewCoordinator(clock, eegEmitter, nirsEmitter, nil, m.log.WithComponent("playback"))

	m.reviewMu.Lock()
	if m.review != nil {
		m.review.Stop()
	}
	m.review = coord
	m.reviewEEG = eegEmitter
	m.reviewNIRS = nirsEmitter
	m.reviewClock = clock
	m.reviewMu.Unlock()

	return nil
}

func (m *Monitor) buildEEGRing(sessionID string, startUs, endUs int64) (*buffer.Ring[signal.EEGSample], int, error) {
	metas, err := m.reader.RangeQuery(sessionID, storage.DataTypeEEG, startUs, endUs)
	if err != nil {
		return nil, 0, fmt.Errorf("query eeg chunks: %w", err)
	}

	var all []storage.RawEEGSample
	for _, meta := range metas {
		blob, err := m.reader.Blob(meta)
		if err != nil {
			return nil, 0, fmt.Errorf("fetch eeg blob: %w", err)
		}
		samples, err := storage.DecodeEEGChunk(blob)
		if err != nil {
			m.metrics.ChecksumError()
			return nil, 0, fmt.Errorf("decode eeg chunk: %w", err)
		}
		all = append(all, samples...)
	}

	capacity := len(all)
	if capacity == 0 {
		capacity = 1
	}
	ring := buffer.NewRing(capacity, func(s signal.EEGSample) timeline.Micros { return s.TsUs })
	for _, raw := range all {
		ring.Append(signal.EEGSample{
			TsUs:     timeline.Micros(raw.TsUs),
			Channels: raw.Channels,
			Quality:  signal.Quality(raw.Quality),
		})
	}
	return ring, len(all), nil
}

func (m *Monitor) buildNIRSRing(sessionID string, startUs, endUs int64) (*buffer.Ring[signal.NIRSSample], int, error) {
	metas, err := m.reader.RangeQuery(sessionID, storage.DataTypeNIRS, startUs, endUs)
	if err != nil {
		return nil, 0, fmt.Errorf("query nirs chunks: %w", err)
	}

	var all []storage.RawNIRSSample
	for _, meta := range metas {
		blob, err := m.reader.Blob(meta)
		if err != nil {
			return nil, 0, fmt.Errorf("fetch nirs blob: %w", err)
		}
		samples, err := storage.DecodeNIRSChunk(blob)
		if err != nil {
			m.metrics.ChecksumError()
			return nil, 0, fmt.Errorf("decode nirs chunk: %w", err)
		}
		all = append(all, samples...)
	}

	capacity := len(all)
	if capacity == 0 {
		capacity = 1
	}
	ring := buffer.NewRing(capacity, func(s signal.NIRSSample) timeline.Micros { return s.TsUs })
	for _, raw := range all {
		var s signal.NIRSSample
		s.TsUs = timeline.Micros(raw.TsUs)
		s.FrameFlags = signal.Quality(raw.FrameFlags)
		for c := range s.Channels {
			if raw.ChValid[c] {
				s.Channels[c] = signal.Some(raw.Channels[c])
			} else {
				s.Channels[c] = signal.None()
			}
			s.ChQuality[c] = signal.Quality(raw.ChQuality[c])
		}
		ring.Append(s)
	}
	return ring, len(all), nil
}
