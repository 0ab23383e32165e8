// Package health exposes liveness and readiness probes for the resolution
// service. Checks run concurrently under a shared timeout; the readiness
// report aggregates the directory database and, when configured, the
// resolution cache backend.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// Status classifies a check result.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check is the outcome of probing a single dependency.
type Check struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// Report aggregates the checks of one probe run.
type Report struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// Checker probes one dependency.
type Checker interface {
	Name() string
	Check(ctx context.Context) Check
}

// Manager runs registered checkers and serves probe endpoints.
type Manager struct {
	mu       sync.RWMutex
	checkers []Checker
	version  string
	timeout  time.Duration
}

type ManagerOption func(*Manager)

// WithTimeout bounds a whole probe run.
func WithTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.timeout = d }
}

func NewManager(version string, opts ...ManagerOption) *Manager {
	m := &Manager{
		version: version,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a checker to subsequent probe runs.
func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
}

// RegisterPing adds a checker backed by a ping function. Dependencies like
// the directory database and Redis all reduce to this shape.
func (m *Manager) RegisterPing(name string, ping func(ctx context.Context) error) {
	m.Register(pingChecker{name: name, ping: ping})
}

type pingChecker struct {
	name string
	ping func(ctx context.Context) error
}

func (p pingChecker) Name() string { return p.name }

func (p pingChecker) Check(ctx context.Context) Check {
	c := Check{Name: p.name}
	if err := p.ping(ctx); err != nil {
		c.Status = StatusUnhealthy
		c.Message = err.Error()
	} else {
		c.Status = StatusHealthy
		c.Message = "connected"
	}
	return c
}

// Run executes all checkers concurrently and aggregates their results.
func (m *Manager) Run(ctx context.Context) Report {
	m.mu.RLock()
	checkers := make([]Checker, len(m.checkers))
	copy(checkers, m.checkers)
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	report := Report{
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now(),
		Checks:    make([]Check, 0, len(checkers)),
	}

	var wg sync.WaitGroup
	results := make(chan Check, len(checkers))
	for _, checker := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			start := time.Now()
			check := c.Check(ctx)
			check.LatencyMs = time.Since(start).Milliseconds()
			check.Timestamp = time.Now()
			results <- check
		}(checker)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for check := range results {
		report.Checks = append(report.Checks, check)
		switch check.Status {
		case StatusUnhealthy:
			report.Status = StatusUnhealthy
		case StatusDegraded:
			if report.Status != StatusUnhealthy {
				report.Status = StatusDegraded
			}
		}
	}

	return report
}

// Ready reports whether the service should accept traffic.
func (m *Manager) Ready(ctx context.Context) bool {
	return m.Run(ctx).Status != StatusUnhealthy
}

// RegisterRoutes mounts /healthz, /ready and /health on e.
func (m *Manager) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", m.handleLive)
	e.GET("/ready", m.handleReady)
	e.GET("/health", m.handleFull)
}

func (m *Manager) handleLive(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (m *Manager) handleReady(c echo.Context) error {
	if m.Ready(c.Request().Context()) {
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	}
	return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
}

func (m *Manager) handleFull(c echo.Context) error {
	report := m.Run(c.Request().Context())
	code := http.StatusOK
	if report.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, report)
}
