package protocol

import (
	"fmt"

	"github.com/dbehnke/neomonitor/pkg/signal"
	"github.com/dbehnke/neomonitor/pkg/timeline"
)

// EEG wire format constants (spec.md §6).
const (
	EEGHeaderHi      = 0xAA
	EEGHeaderLo      = 0x55
	EEGPayloadLen    = 36 // 18 big-endian int16 values
	EEGFrameLen      = 2 + EEGPayloadLen + 2
	EEGScaleUvPerLSB = 0.076
	EEGSampleRateHz  = 160
)

// EEG payload indices (after the 2-byte header, before the checksum). The
// channel indices count 16-bit words of EEGFrame.Raw; the config and GS
// indices count bytes of the raw payload.
const (
	eegIdxCh1    = 0
	eegIdxCh2    = 1
	eegIdxCh3    = 2
	eegIdxConfig = 9
	eegIdxGS     = 16
)

// eegState is the byte-level parser state machine: Idle, HdrHi, HdrLo,
// Payload(i), CrcHi, CrcLo.
type eegState int

const (
	eegIdle eegState = iota
	eegHdrHi
	eegHdrLo
	eegPayload
	eegCrcHi
	eegCrcLo
)

// CrcError is returned when a frame's checksum fails to verify; the parser
// has already discarded the frame and resynced to Idle.
type CrcError struct {
	Stream string
}

func (e *CrcError) Error() string { return fmt.Sprintf("%s: checksum mismatch, frame discarded", e.Stream) }

// EEGFrame is one decoded, checksum-verified 40-byte EEG frame, prior to
// CH4 derivation and quality tagging (done by the caller that has access to
// the clock and per-channel continuity state).
type EEGFrame struct {
	Raw    [18]int16 // 18 big-endian 16-bit words from the payload
	Config byte
	GS     byte // data[16], GS counter per spec.md §4.5
}

// EEGParser is a byte-at-a-time state machine for the fixed 40-byte EEG
// frame: header 0xAA 0x55 | 36 payload bytes | 2-byte additive checksum.
// On checksum mismatch it logs (via the returned error) and resyncs to
// Idle; the next header byte restarts sync.
type EEGParser struct {
	state   eegState
	payload [EEGPayloadLen]byte
	idx     int
	crcHi   byte
	sum     uint16 // cumulative unsigned sum of bytes 0..37 as they arrive
}

// NewEEGParser creates a parser ready to consume a byte stream.
func NewEEGParser() *EEGParser { return &EEGParser{state: eegIdle} }

// Feed consumes one byte. It returns (frame, nil, true) when a frame
// completes and verifies; (nil, *CrcError, true) when a frame completes but
// fails verification; and (nil, nil, false) when more bytes are needed.
func (p *EEGParser) Feed(b byte) (*EEGFrame, error, bool) {
	switch p.state {
	case eegIdle:
		if b == EEGHeaderHi {
			p.state = eegHdrHi
			p.sum = 0
		}
		return nil, nil, false

	case eegHdrHi:
		if b == EEGHeaderLo {
			p.state = eegPayload
			p.idx = 0
			p.sum = uint16(EEGHeaderHi) + uint16(EEGHeaderLo)
		} else if b == EEGHeaderHi {
			// stay in eegHdrHi, allow re-sync on repeated header byte
			p.state = eegHdrHi
		} else {
			p.state = eegIdle
		}
		return nil, nil, false

	case eegPayload:
		p.payload[p.idx] = b
		p.sum += uint16(b)
		p.idx++
		if p.idx == EEGPayloadLen {
			p.state = eegCrcHi
		}
		return nil, nil, false

	case eegCrcHi:
		p.crcHi = b
		p.state = eegCrcLo
		return nil, nil, false

	case eegCrcLo:
		p.state = eegIdle
		want := uint16(p.crcHi)<<8 | uint16(b)
		if want != p.sum {
			return nil, &CrcError{Stream: "eeg"}, true
		}
		return p.decode(), nil, true
	}
	return nil, nil, false
}

func (p *EEGParser) decode() *EEGFrame {
	f := &EEGFrame{}
	for i := 0; i < 18; i++ {
		f.Raw[i] = int16(uint16(p.payload[2*i])<<8 | uint16(p.payload[2*i+1]))
	}
	f.Config = p.payload[eegIdxConfig]
	f.GS = p.payload[eegIdxGS]
	return f
}

// ToSample converts a verified frame to a physical-unit EEG sample at the
// given host-monotonic timestamp, deriving CH4 = CH1 - CH2 and applying the
// fixed 0.076 uV/LSB scale once at the double-precision boundary.
func ToSample(f *EEGFrame, ts timeline.Micros, quality signal.Quality) signal.EEGSample {
	ch1 := float64(f.Raw[eegIdxCh1]) * EEGScaleUvPerLSB
	ch2 := float64(f.Raw[eegIdxCh2]) * EEGScaleUvPerLSB
	ch3 := float64(f.Raw[eegIdxCh3]) * EEGScaleUvPerLSB
	ch4 := ch1 - ch2
	return signal.EEGSample{
		TsUs:     ts,
		Channels: [4]float64{ch1, ch2, ch3, ch4},
		Quality:  quality,
	}
}

// SampleIntervalUs is the nominal inter-sample spacing at 160 Hz.
const SampleIntervalUs timeline.Micros = 1_000_000 / EEGSampleRateHz
