package telemetry

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

// ProfilerConfig holds Pyroscope continuous profiling configuration.
type ProfilerConfig struct {
	Enabled         bool
	ServerAddress   string // e.g. "http://pyroscope:4040"
	ApplicationName string
	// ProfileTypes defaults to DefaultProfileTypes when empty
	ProfileTypes []pyroscope.ProfileType
	// Tags are attached to every profile next to the hostname
	Tags map[string]string
}

// DefaultProfileTypes are collected when no types are configured
var DefaultProfileTypes = []pyroscope.ProfileType{
	pyroscope.ProfileCPU,
	pyroscope.ProfileAllocObjects,
	pyroscope.ProfileAllocSpace,
	pyroscope.ProfileInuseObjects,
	pyroscope.ProfileInuseSpace,
	pyroscope.ProfileGoroutines,
}

var knownProfileTypes = map[string]pyroscope.ProfileType{
	"cpu":            pyroscope.ProfileCPU,
	"alloc_objects":  pyroscope.ProfileAllocObjects,
	"alloc_space":    pyroscope.ProfileAllocSpace,
	"inuse_objects":  pyroscope.ProfileInuseObjects,
	"inuse_space":    pyroscope.ProfileInuseSpace,
	"goroutines":     pyroscope.ProfileGoroutines,
	"mutex_count":    pyroscope.ProfileMutexCount,
	"mutex_duration": pyroscope.ProfileMutexDuration,
	"block_count":    pyroscope.ProfileBlockCount,
	"block_duration": pyroscope.ProfileBlockDuration,
}

// ParseProfileTypes maps configured names such as "cpu" or "inuse_space"
// to profile types. Names are case-insensitive; duplicates are dropped.
func ParseProfileTypes(names []string) ([]pyroscope.ProfileType, error) {
	var (
		types []pyroscope.ProfileType
		seen  = make(map[pyroscope.ProfileType]bool, len(names))
	)
	for _, name := range names {
		pt, ok := knownProfileTypes[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown profile type %q", name)
		}
		if !seen[pt] {
			seen[pt] = true
			types = append(types, pt)
		}
	}
	return types, nil
}

// Profiler is a Pyroscope session. The zero-value session of a disabled
// profiler does nothing.
type Profiler struct {
	session  *pyroscope.Profiler
	logger   *zap.Logger
	stopOnce sync.Once
	stopErr  error
}

// NewProfiler starts a Pyroscope profiler, or returns a no-op one when disabled.
func NewProfiler(cfg ProfilerConfig, logger *zap.Logger) (*Profiler, error) {
	p := &Profiler{logger: logger}
	if !cfg.Enabled {
		logger.Info("Continuous profiling disabled")
		return p, nil
	}
	if cfg.ServerAddress == "" {
		return nil, errors.New("profiler server address is required when profiling is enabled")
	}
	if cfg.ApplicationName == "" {
		return nil, errors.New("profiler application name is required when profiling is enabled")
	}

	types := cfg.ProfileTypes
	if len(types) == 0 {
		types = DefaultProfileTypes
	}
	enableRuntimeSampling(types)

	session, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ApplicationName,
		ServerAddress:   cfg.ServerAddress,
		Logger:          logger.Named("pyroscope").Sugar(),
		Tags:            profileTags(cfg.Tags),
		ProfileTypes:    types,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}
	p.session = session

	logger.Info("Pyroscope profiler started",
		zap.String("server_address", cfg.ServerAddress),
		zap.Int("profile_types", len(types)),
	)
	return p, nil
}

// contentionSampleRate is the runtime sampling rate for mutex and block
// profiles; those profiles are empty while it is zero.
const contentionSampleRate = 5

func enableRuntimeSampling(types []pyroscope.ProfileType) {
	if slices.Contains(types, pyroscope.ProfileMutexCount) || slices.Contains(types, pyroscope.ProfileMutexDuration) {
		runtime.SetMutexProfileFraction(contentionSampleRate)
	}
	if slices.Contains(types, pyroscope.ProfileBlockCount) || slices.Contains(types, pyroscope.ProfileBlockDuration) {
		runtime.SetBlockProfileRate(contentionSampleRate)
	}
}

func profileTags(extra map[string]string) map[string]string {
	tags := make(map[string]string, len(extra)+1)
	if hostname, err := os.Hostname(); err == nil {
		tags["hostname"] = hostname
	}
	maps.Copy(tags, extra)
	return tags
}

// Stop flushes pending profiles. Later calls return the first result.
func (p *Profiler) Stop() error {
	p.stopOnce.Do(func() {
		if p.session == nil {
			return
		}
		if err := p.session.Stop(); err != nil {
			p.stopErr = fmt.Errorf("failed to stop profiler: %w", err)
			return
		}
		p.logger.Info("Pyroscope profiler stopped")
	})
	return p.stopErr
}

func (p *Profiler) IsEnabled() bool {
	return p.session != nil
}
