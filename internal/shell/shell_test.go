package shell

import (
	"io"
	"testing"

	"github.com/dbehnke/neomonitor/pkg/config"
	"github.com/dbehnke/neomonitor/pkg/logger"
)

// newTestMonitor builds a Monitor against a temp-dir SQLite database with
// the web dashboard disabled, matching pkg/audit and pkg/web's own
// temp-dir test fixture pattern.
func newTestMonitor(t *testing.T) *Monitor {
	t.Helper()
	cfg := &config.Config{
		Acquisition: config.AcquisitionConfig{
			EEGPort:  "/dev/null",
			NIRSMode: config.NIRSModeMock,
			NIRSPort: "/dev/null",
		},
		Storage: config.StorageConfig{
			Root:     t.TempDir(),
			CapBytes: 0,
		},
		Web: config.WebConfig{Enabled: false},
	}
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})

	m, err := New(cfg, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}
