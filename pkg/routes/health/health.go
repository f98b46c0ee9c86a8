package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

// CheckFunc checks one dependency.
type CheckFunc func(ctx context.Context) error

const defaultCheckTimeout = 2 * time.Second

// Checker serves liveness, readiness and dependency health.
type Checker struct {
	version      string
	startTime    time.Time
	checkTimeout time.Duration

	mu          sync.RWMutex
	checks      map[string]CheckFunc
	ready       bool
	notReadyMsg string
}

func NewChecker(version string) *Checker {
	return &Checker{
		version:      version,
		startTime:    time.Now(),
		checkTimeout: defaultCheckTimeout,
		checks:       map[string]CheckFunc{},
		notReadyMsg:  "starting",
	}
}

// WithCheckTimeout bounds each dependency check.
func (c *Checker) WithCheckTimeout(d time.Duration) *Checker {
	c.checkTimeout = d
	return c
}

func (c *Checker) AddCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// SetReady flips readiness. Readiness turns true once every read operation is
// built and the server is listening.
func (c *Checker) SetReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = ready
	if !ready {
		c.notReadyMsg = "stopping"
	}
}

func (c *Checker) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/health", c.Health)
	e.GET("/api/v1/health/live", c.Live)
	e.GET("/api/v1/health/ready", c.Ready)
}

type Report struct {
	Status     string                 `json:"status"`
	Version    string                 `json:"version"`
	Uptime     string                 `json:"uptime"`
	Ready      bool                   `json:"ready"`
	Checks     map[string]CheckResult `json:"checks"`
	ReportedAt time.Time              `json:"reported_at"`
}

type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Run checks every dependency concurrently.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	ready := c.ready
	c.mu.RUnlock()
	sort.Strings(names)

	results := make([]CheckResult, len(names))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
			defer cancel()

			start := time.Now()
			if err := checks[name](checkCtx); err != nil {
				results[i] = CheckResult{Status: "unhealthy", Message: err.Error()}
				return nil
			}
			results[i] = CheckResult{Status: "healthy", Latency: time.Since(start).String()}
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Status:     "healthy",
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Ready:      ready,
		Checks:     make(map[string]CheckResult, len(names)),
		ReportedAt: time.Now(),
	}
	for i, name := range names {
		report.Checks[name] = results[i]
		if results[i].Status != "healthy" {
			report.Status = "unhealthy"
		}
	}
	return report
}

func (c *Checker) Health(ctx echo.Context) error {
	report := c.Run(ctx.Request().Context())
	if report.Status != "healthy" {
		return ctx.JSON(http.StatusServiceUnavailable, report)
	}
	return ctx.JSON(http.StatusOK, report)
}

func (c *Checker) Live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

func (c *Checker) Ready(ctx echo.Context) error {
	c.mu.RLock()
	ready, msg := c.ready, c.notReadyMsg
	c.mu.RUnlock()

	if ready {
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
	}
	return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready", "reason": msg})
}
