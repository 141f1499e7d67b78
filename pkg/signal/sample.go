// Package signal defines the physiological sample types that flow through
// the acquisition, DSP, storage, and playback stages: EEG and NIRS samples,
// the composable Quality flag set, and the aEEG/GS output shapes.
package signal

import "github.com/dbehnke/neomonitor/pkg/timeline"

// Quality is a bitset of independent flags. Flags compose bitwise; losing a
// bit between an input and its output is a defect (spec.md DATA MODEL).
type Quality uint8

// Flag bit positions are enumerated explicitly (no iota) so the bit
// position of each is self-evident at the call site and in audit/debug
// output.
const (
	QNormal      Quality = 0
	QMissing     Quality = 1 << 0 // gap or device-blocked
	QTransient   Quality = 1 << 1 // filter warm-up, not clinically usable
	QSaturated   Quality = 1 << 2 // clip at ADC range
	QLeadOff     Quality = 1 << 3 // probe disconnected
	QBlockedSpec Quality = 1 << 4 // subsystem intentionally offline
)

// Has reports whether all bits in mask are set.
func (q Quality) Has(mask Quality) bool { return q&mask == mask }

// Any reports whether any bit in mask is set.
func (q Quality) Any(mask Quality) bool { return q&mask != 0 }

// Merge ORs additional flags into q, the only sanctioned way quality
// propagates through a transform (spec.md invariant 5).
func (q Quality) Merge(flags Quality) Quality { return q | flags }

func (q Quality) String() string {
	if q == QNormal {
		return "Normal"
	}
	s := ""
	add := func(bit Quality, name string) {
		if q&bit != 0 {
			if s != "" {
				s += "|"
			}
			s += name
		}
	}
	add(QMissing, "Missing")
	add(QTransient, "Transient")
	add(QSaturated, "Saturated")
	add(QLeadOff, "LeadOff")
	add(QBlockedSpec, "BlockedBySpec")
	return s
}

// EEGChannels is the fixed channel count: CH1-CH3 from the device, CH4
// derived as CH1-CH2.
const EEGChannels = 4

// NIRSChannels is the fixed channel count; only four are populated by the
// device, channels 5-6 always carry None+LeadOff.
const NIRSChannels = 6

// EEGSample is one 160 Hz four-channel EEG observation.
type EEGSample struct {
	TsUs     timeline.Micros
	Channels [EEGChannels]float64 // micro-volts
	Quality  Quality
}

// OptFloat is an Option<f64>: a NIRS channel reading that may be absent.
type OptFloat struct {
	Value float64
	Valid bool
}

// None returns an absent reading.
func None() OptFloat { return OptFloat{} }

// Some wraps a present reading.
func Some(v float64) OptFloat { return OptFloat{Value: v, Valid: true} }

// NIRSSample is one 1 Hz six-channel cerebral-oximetry observation.
type NIRSSample struct {
	TsUs       timeline.Micros
	Channels   [NIRSChannels]OptFloat // percentages
	ChQuality  [NIRSChannels]Quality
	FrameFlags Quality // low-battery, signal-quality alarm, etc., OR-combined
}

// AEEGWindow is the (min,max) amplitude envelope emitted once per second,
// per channel.
type AEEGWindow struct {
	MinUv     float64
	MaxUv     float64
	CenterUs  timeline.Micros // centre of the 1s output window
	Valid     bool
	Quality   Quality
}

// GSBinCount is the frozen number of histogram bins.
const GSBinCount = 230

// GSBinSaturation is the per-bin saturating count cap.
const GSBinSaturation = 249

// GSFrame is one 15s grey-scale histogram accumulation cycle for one
// channel.
type GSFrame struct {
	Bins    [GSBinCount]uint8
	StartUs timeline.Micros
	EndUs   timeline.Micros
	Quality Quality
}
