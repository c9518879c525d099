package profiler

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JNZader/prreviewer/internal/logger"
)

func TestStartCPUAndMemProfiles(t *testing.T) {
	dir := t.TempDir()
	cpuFile := filepath.Join(dir, "cpu.prof")
	memFile := filepath.Join(dir, "mem.prof")

	p, err := Start(Config{CPUProfile: cpuFile, MemProfile: memFile}, logger.Nop())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	sum := 0
	for i := 0; i < 100000; i++ {
		sum += i
	}
	_ = sum

	if err := p.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	for _, f := range []string{cpuFile, memFile} {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			t.Errorf("%s was not created", filepath.Base(f))
		}
	}
}

func TestStartInvalidCPUPath(t *testing.T) {
	_, err := Start(Config{CPUProfile: "/nonexistent/path/cpu.prof"}, logger.Nop())
	if err == nil {
		t.Error("expected error for invalid CPU profile path")
	}
}

func TestPprofServer(t *testing.T) {
	p, err := Start(Config{HTTPAddr: "127.0.0.1:0"}, logger.Nop())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop()

	resp, err := http.Get("http://" + p.Addr() + "/debug/pprof/")
	if err != nil {
		t.Fatalf("GET /debug/pprof/ error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "goroutine") {
		t.Errorf("unexpected pprof index: %d %s", resp.StatusCode, body)
	}
}

func TestConfigEnabled(t *testing.T) {
	if (Config{}).Enabled() {
		t.Error("zero Config should be disabled")
	}
	if !(Config{MemProfile: "m"}).Enabled() {
		t.Error("MemProfile enables profiling")
	}
}

func TestStats(t *testing.T) {
	stats := Stats()
	if stats.Alloc == 0 || stats.Sys == 0 || stats.HeapAlloc == 0 {
		t.Errorf("Stats() = %+v, want non-zero", stats)
	}
	if !strings.Contains(stats.String(), "GCs") {
		t.Errorf("String() = %q", stats.String())
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    uint64
		expected string
	}{
		{500, "500 B"},
		{1024, "1.0 KiB"},
		{1024 * 1024, "1.0 MiB"},
		{1024 * 1024 * 1024, "1.0 GiB"},
	}

	for _, tc := range tests {
		if got := formatBytes(tc.bytes); got != tc.expected {
			t.Errorf("formatBytes(%d) = %s, expected %s", tc.bytes, got, tc.expected)
		}
	}
}
