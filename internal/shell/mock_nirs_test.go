package shell

import (
	"testing"

	"github.com/dbehnke/neomonitor/pkg/signal"
)

func TestMockNIRSSample_LastTwoChannelsAlwaysAbsent(t *testing.T) {
	for tick := 0; tick < 50; tick++ {
		s := mockNIRSSample(tick)
		if s.Channels[4].Valid || s.Channels[5].Valid {
			t.Fatalf("tick %d: expected channels 5-6 absent, got %+v", tick, s.Channels)
		}
		if s.ChQuality[4] != signal.QLeadOff || s.ChQuality[5] != signal.QLeadOff {
			t.Fatalf("tick %d: expected QLeadOff on channels 5-6, got %v/%v", tick, s.ChQuality[4], s.ChQuality[5])
		}
	}
}

func TestMockNIRSSample_FirstFourChannelsPlausibleRange(t *testing.T) {
	for tick := 0; tick < 200; tick++ {
		s := mockNIRSSample(tick)
		for c := 0; c < 4; c++ {
			if !s.Channels[c].Valid {
				t.Fatalf("tick %d channel %d: expected a valid reading", tick, c)
			}
			v := s.Channels[c].Value
			if v < 40 || v > 95 {
				t.Fatalf("tick %d channel %d: value %g outside plausible rSO2 range", tick, c, v)
			}
			if s.ChQuality[c] != signal.QNormal {
				t.Fatalf("tick %d channel %d: expected QNormal, got %v", tick, c, s.ChQuality[c])
			}
		}
	}
}
