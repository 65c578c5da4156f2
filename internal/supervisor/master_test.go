package supervisor

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/oxyreplay/pipewarm/internal/replay"
)

func newTestMaster(t *testing.T) *Master {
	t.Helper()
	m, err := NewMaster(Config{
		ArchivePath: "unused",
		BinaryPath:  "unused",
		ShmPath:     filepath.Join(t.TempDir(), "progress.block"),
		MaxSlaves:   1,
		Stride:      4,
	})
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestReportNilWithNoCrashes(t *testing.T) {
	m := newTestMaster(t)
	if err := m.Report(); err != nil {
		t.Fatalf("Report on a master with no recorded crashes = %v, want nil", err)
	}
}

func TestReportAggregatesCrashesAcrossShards(t *testing.T) {
	m := newTestMaster(t)

	m.recordCrash(replay.ShardRange{Start: 0, End: 4}, DirtyCrash)
	m.recordCrash(replay.ShardRange{Start: 4, End: 8}, Timeout)

	err := m.Report()
	if err == nil {
		t.Fatal("Report should aggregate the two recorded crashes")
	}
	if got := err.Error(); !strings.Contains(got, "[0,4)") || !strings.Contains(got, "[4,8)") {
		t.Errorf("aggregated report %q is missing one of the recorded shards", got)
	}
}
