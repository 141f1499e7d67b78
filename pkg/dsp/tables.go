package dsp

// Cutoff identifies one fixed filter design, keyed by kind and corner
// frequency. Values are addressed by this enum rather than by raw Hz so
// coefficient lookup stays table-driven.
type Cutoff int

const (
	NotchOff Cutoff = iota
	Notch50Hz
	Notch60Hz

	HPFOff
	HPF03Hz
	HPF05Hz
	HPF15Hz

	LPFOff
	LPF15Hz
	LPF35Hz
	LPF50Hz
	LPF70Hz

	AEEGBand // combined HPF2Hz(2nd order) + LPF15Hz(4th order) chain, 6 poles total
)

// SampleRateHz is the fixed EEG acquisition rate the tables below are
// designed for (bilinear-transform-derived at fs=160Hz, then frozen as
// literal coefficients per spec.md §9).
const SampleRateHz = 160.0

// sosTables maps each live-path cutoff to its fixed coefficient table.
// Values were derived once via the standard RBJ Biquad Cookbook bilinear
// transform (notch Q=30; Butterworth Q=1/sqrt(2) per 2nd-order section) at
// fs=160Hz and frozen here; they are never recomputed at runtime.
var sosTables = map[Cutoff][]SOSCoeffs{
	NotchOff: nil,
	Notch50Hz: {
		{B0: 0.984835510482909, B1: 0.7537604669332498, B2: 0.984835510482909, A1: 0.7537604669332498, A2: 0.9696710209658178},
	},
	Notch60Hz: {
		{B0: 0.9883521581132956, B1: 1.3977410264045402, B2: 0.9883521581132956, A1: 1.3977410264045402, A2: 0.976704316226591},
	},

	HPFOff: nil,
	HPF03Hz: {
		{B0: 0.9917041955634832, B1: -1.9834083911269664, B2: 0.9917041955634832, A1: -1.983339569571845, A2: 0.9834772126820879},
	},
	HPF05Hz: {
		{B0: 0.9862119246044218, B1: -1.9724238492088435, B2: 0.9862119246044218, A1: -1.9722337291499494, A2: 0.9726139692677377},
	},
	HPF15Hz: {
		{B0: 0.959203149574012, B1: -1.918406299148024, B2: 0.959203149574012, A1: -1.9167412230290832, A2: 0.9200713752669646},
	},

	LPFOff: nil,
	LPF15Hz: {
		{B0: 0.060498507602307676, B1: 0.12099701520461535, B2: 0.060498507602307676, A1: -1.1939133671555198, A2: 0.4359073975647505},
	},
	LPF35Hz: {
		{B0: 0.23764399422180393, B1: 0.47528798844360787, B2: 0.23764399422180393, A1: -0.23039625252889379, A2: 0.18097222941610955},
	},
	LPF50Hz: {
		{B0: 0.4181633454846309, B1: 0.8363266909692618, B2: 0.4181633454846309, A1: 0.46293802498408454, A2: 0.2097153569544393},
	},
	LPF70Hz: {
		{B0: 0.7570763750633295, B1: 1.514152750126659, B2: 0.7570763750633295, A1: 1.4542435857318836, A2: 0.5740619145214342},
	},

	// aEEG band-pass: HPF 2Hz (2nd order, 1 section) cascaded into
	// LPF 15Hz (4th order, 2 sections at the standard Butterworth pole
	// Q's Q1=0.5412, Q2=1.3066) — 3 sections, 6 poles total.
	AEEGBand: {
		{B0: 0.945976855919353, B1: -1.891953711838706, B2: 0.945976855919353, A1: -1.889033079227908, A2: 0.8948743444495038},
		{B0: 0.05568380978894893, B1: 0.11136761957789786, B2: 0.05568380978894893, A1: -1.0988972699656414, A2: 0.3216325091214371},
		{B0: 0.06949090468462531, B1: 0.13898180936925061, B2: 0.06949090468462531, A1: -1.371374655125205, A2: 0.6493382738637062},
	},
}

// warmupSamples is ⌈3/fc × fs⌉ for HPF/LPF cutoffs and ⌈3/(fc/Q) × fs⌉
// (time constant set by the notch's bandwidth, not its center frequency)
// for the notches — the number of samples a freshly reset cascade must
// process before its output quality stops carrying Transient.
var warmupSamples = map[Cutoff]int{
	NotchOff:  0,
	Notch50Hz: 288,
	Notch60Hz: 240,

	HPFOff:  0,
	HPF03Hz: 1600,
	HPF05Hz: 960,
	HPF15Hz: 320,

	LPFOff:  0,
	LPF15Hz: 32,
	LPF35Hz: 14,
	LPF50Hz: 10,
	LPF70Hz: 7,

	// The aEEG engine's own warm-up is a fixed 15s per spec.md §4.5,
	// independent of the per-cutoff formula; see pkg/aeeg.
	AEEGBand: 0,
}

// CoeffsFor returns the fixed coefficient table for a cutoff. A nil/empty
// result means "bypass" (NotchOff/HPFOff/LPFOff).
func CoeffsFor(c Cutoff) []SOSCoeffs { return sosTables[c] }

// WarmupFor returns the warm-up sample budget for a cutoff.
func WarmupFor(c Cutoff) int { return warmupSamples[c] }
