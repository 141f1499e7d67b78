package dsp

// FiltFilt applies the given filter set to xs with zero phase distortion,
// for playback rendering rather than live display. Each contiguous run of
// non-missing samples is filtered independently: run the cascade forward
// with fresh state, reverse the buffer, run with fresh state again, reverse
// back (spec.md §4.4 "playback path"). Missing samples pass through
// unmodified and never seed or extend a run. The input slice is not
// mutated; the result has the same length, and out[i] is only ever
// zero-phase filtered when missing[i] is false.
func FiltFilt(set FilterSet, xs []float64, missing []bool) []float64 {
	out := make([]float64, len(xs))
	copy(out, xs)

	start := -1
	flush := func(endExclusive int) {
		if start < 0 {
			return
		}
		seg := out[start:endExclusive]
		if len(seg) > 0 {
			filtfiltSegment(set, seg)
		}
		start = -1
	}
	for i := range out {
		if missing != nil && missing[i] {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
		}
	}
	flush(len(out))
	return out
}

func filtfiltSegment(set FilterSet, seg []float64) {
	runOnce(set, seg, false)
	runOnce(set, seg, true)
}

func runOnce(set FilterSet, seg []float64, reverse bool) {
	notch := NewCascade(CoeffsFor(set.Notch))
	hpf := NewCascade(CoeffsFor(set.HPF))
	lpf := NewCascade(CoeffsFor(set.LPF))

	n := len(seg)
	idx := func(i int) int {
		if reverse {
			return n - 1 - i
		}
		return i
	}
	for i := 0; i < n; i++ {
		j := idx(i)
		y := notch.Process(seg[j])
		y = hpf.Process(y)
		y = lpf.Process(y)
		seg[j] = y
	}
}
