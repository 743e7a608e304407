// Package health serves the standard gRPC health protocol for the AppGuard
// API process. Serving status follows the inventory database and Redis.
package health

import (
	"context"
	"sort"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"appguard-lab/pkg/logger"
)

// ServiceName is the health service name of the scanning API
const ServiceName = "appguard.v1.ScanService"

// Probe checks one dependency
type Probe func(ctx context.Context) error

// Monitor periodically probes dependencies and publishes the result
type Monitor struct {
	server   *health.Server
	probes   map[string]Probe
	interval time.Duration
	logger   *logger.Logger
}

// NewMonitor creates a monitor. Every probe must pass for SERVING.
func NewMonitor(probes map[string]Probe, interval time.Duration, log *logger.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if probes == nil {
		probes = map[string]Probe{}
	}
	m := &Monitor{
		server:   health.NewServer(),
		probes:   probes,
		interval: interval,
		logger:   log.WithComponent("grpc-health"),
	}
	m.set(grpc_health_v1.HealthCheckResponse_SERVING)
	return m
}

// Register registers the health service with a gRPC server
func (m *Monitor) Register(grpcServer *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(grpcServer, m.server)
}

// Run probes until ctx is done, then reports NOT_SERVING for shutdown
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.CheckNow(ctx)
	for {
		select {
		case <-ctx.Done():
			m.server.Shutdown()
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// CheckNow runs every probe once and returns the resulting status
func (m *Monitor) CheckNow(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(m.probes))
	for name := range m.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	status := grpc_health_v1.HealthCheckResponse_SERVING
	for _, name := range names {
		if err := m.probes[name](ctx); err != nil {
			m.logger.Warn().Err(err).Str("probe", name).Msg("dependency unhealthy")
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
	}

	m.set(status)
	return status
}

func (m *Monitor) set(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	m.server.SetServingStatus("", status)
	m.server.SetServingStatus(ServiceName, status)
}
