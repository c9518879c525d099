// Package profiler writes CPU and heap profiles for a single command run
// and optionally serves net/http/pprof on a separate listener.
package profiler

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"
	rpprof "runtime/pprof"
	"time"

	"github.com/JNZader/prreviewer/internal/logger"
)

// Config selects what to profile. The zero value profiles nothing.
type Config struct {
	CPUProfile string // file for the CPU profile
	MemProfile string // file for the heap profile, written on Stop
	HTTPAddr   string // address for the pprof endpoints, e.g. "localhost:6060"
}

// Enabled reports whether any profiling is requested.
func (c Config) Enabled() bool {
	return c.CPUProfile != "" || c.MemProfile != "" || c.HTTPAddr != ""
}

// Profiler handles profile collection.
type Profiler struct {
	cpuFile   *os.File
	memFile   string
	server    *http.Server
	listener  net.Listener
	startTime time.Time
	log       *logger.Logger
}

// Start begins CPU profiling and starts the pprof server as configured.
func Start(cfg Config, log *logger.Logger) (*Profiler, error) {
	p := &Profiler{
		memFile:   cfg.MemProfile,
		startTime: time.Now(),
		log:       log.WithPrefix("PPROF"),
	}

	if cfg.CPUProfile != "" {
		f, err := os.Create(cfg.CPUProfile)
		if err != nil {
			return nil, fmt.Errorf("failed to create CPU profile: %w", err)
		}
		if err := rpprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to start CPU profile: %w", err)
		}
		p.cpuFile = f
	}

	if cfg.HTTPAddr != "" {
		ln, err := net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			p.stopCPU()
			return nil, fmt.Errorf("pprof listener: %w", err)
		}
		p.listener = ln
		p.server = &http.Server{
			Handler:           Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := p.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				p.log.Error("pprof server: %v", err)
			}
		}()
		p.log.Info("pprof listening on %s", ln.Addr())
	}

	return p, nil
}

// Handler serves the pprof endpoints under /debug/pprof/.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// Addr returns the pprof listener address, or "" without one.
func (p *Profiler) Addr() string {
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

// Stop stops profiling and saves results
func (p *Profiler) Stop() error {
	var errs []error

	if err := p.stopCPU(); err != nil {
		errs = append(errs, err)
	}

	if p.memFile != "" {
		runtime.GC()
		if err := writeHeapProfile(p.memFile); err != nil {
			errs = append(errs, err)
		}
	}

	if p.server != nil {
		if err := p.server.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pprof server: %w", err))
		}
	}

	p.log.Debug("profiled %s, %s", p.Duration().Round(time.Millisecond), Stats())
	return errors.Join(errs...)
}

func (p *Profiler) stopCPU() error {
	if p.cpuFile == nil {
		return nil
	}
	rpprof.StopCPUProfile()
	err := p.cpuFile.Close()
	p.cpuFile = nil
	if err != nil {
		return fmt.Errorf("close CPU profile: %w", err)
	}
	return nil
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create memory profile: %w", err)
	}
	defer f.Close()
	if err := rpprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("write memory profile: %w", err)
	}
	return nil
}

// Duration returns the time since profiler started
func (p *Profiler) Duration() time.Duration {
	return time.Since(p.startTime)
}

// Stats returns current memory statistics
func Stats() MemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MemStats{
		Alloc:     m.Alloc,
		Sys:       m.Sys,
		NumGC:     m.NumGC,
		HeapAlloc: m.HeapAlloc,
	}
}

// MemStats is the subset of runtime.MemStats that Stop reports.
type MemStats struct {
	Alloc     uint64
	Sys       uint64
	NumGC     uint32
	HeapAlloc uint64
}

func (m MemStats) String() string {
	return fmt.Sprintf("alloc %s, heap %s, sys %s, %d GCs",
		formatBytes(m.Alloc), formatBytes(m.HeapAlloc), formatBytes(m.Sys), m.NumGC)
}

// formatBytes converts bytes to human-readable format
func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
