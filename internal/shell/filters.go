package shell

import (
	"fmt"
	"strings"

	"github.com/dbehnke/neomonitor/pkg/dsp"
)

// parseCutoff maps the wire vocabulary a ChangeFilter request uses ("notch",
// "50hz"/"60hz"/"off", etc.) onto the frozen dsp.Cutoff table. kind and
// cutoff are matched case-insensitively.
func parseCutoff(kind, cutoff string) (dsp.Cutoff, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	cutoff = strings.ToLower(strings.TrimSpace(cutoff))

	switch kind {
	case "notch":
		switch cutoff {
		case "off":
			return dsp.NotchOff, nil
		case "50hz":
			return dsp.Notch50Hz, nil
		case "60hz":
			return dsp.Notch60Hz, nil
		}
	case "hpf":
		switch cutoff {
		case "off":
			return dsp.HPFOff, nil
		case "0.3hz":
			return dsp.HPF03Hz, nil
		case "0.5hz":
			return dsp.HPF05Hz, nil
		case "1.5hz":
			return dsp.HPF15Hz, nil
		}
	case "lpf":
		switch cutoff {
		case "off":
			return dsp.LPFOff, nil
		case "15hz":
			return dsp.LPF15Hz, nil
		case "35hz":
			return dsp.LPF35Hz, nil
		case "50hz":
			return dsp.LPF50Hz, nil
		case "70hz":
			return dsp.LPF70Hz, nil
		}
	default:
		return 0, fmt.Errorf("unknown filter kind %q, want notch|hpf|lpf", kind)
	}
	return 0, fmt.Errorf("unknown cutoff %q for kind %q", cutoff, kind)
}

// applyFilter returns set with the given kind's cutoff replaced.
func applyFilter(set dsp.FilterSet, kind string, cutoff dsp.Cutoff) dsp.FilterSet {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "notch":
		set.Notch = cutoff
	case "hpf":
		set.HPF = cutoff
	case "lpf":
		set.LPF = cutoff
	}
	return set
}

// cutoffOfKind reads the current cutoff for one kind out of a FilterSet.
func cutoffOfKind(set dsp.FilterSet, kind string) dsp.Cutoff {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "notch":
		return set.Notch
	case "hpf":
		return set.HPF
	case "lpf":
		return set.LPF
	default:
		return 0
	}
}
