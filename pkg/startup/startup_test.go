package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStartup(maxAttempts int) *Startup {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewStartup(logger, maxAttempts).WithBackoff(time.Millisecond)
}

func TestStart_DependencyOrder(t *testing.T) {
	var started, stopped []string
	dep := func(name string, requires ...string) Dependency {
		return Dependency{
			Name:     name,
			Requires: requires,
			StartFunc: func(context.Context) error {
				started = append(started, name)
				return nil
			},
			StopFunc: func(context.Context) error {
				stopped = append(stopped, name)
				return nil
			},
		}
	}

	s := newTestStartup(1)
	s.AddDependency(dep("engine", "metadata"))
	s.AddDependency(dep("metadata", "database"))
	s.AddDependency(dep("database"))
	s.AddDependency(dep("api", "engine"))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"database", "metadata", "engine", "api"}, started)
	assert.Equal(t, StartupStatusStarted, s.Status("api"))

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"api", "engine", "metadata", "database"}, stopped)
	assert.Equal(t, StartupStatusStopped, s.Status("database"))
}

func TestStart_Retries(t *testing.T) {
	attempts := 0
	s := newTestStartup(3)
	s.AddDependency(Dependency{
		Name: "database",
		StartFunc: func(context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("connection refused")
			}
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 3, attempts)
}

func TestStart_GivesUp(t *testing.T) {
	s := newTestStartup(2)
	s.AddDependency(Dependency{
		Name: "graph",
		StartFunc: func(context.Context) error {
			return errors.New("no route to host")
		},
	})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "startup failed after 2 attempts")
	assert.Equal(t, StartupStatusFailed, s.Status("graph"))
}

func TestStart_MissingDependency(t *testing.T) {
	s := newTestStartup(1)
	s.AddDependency(Dependency{Name: "engine", Requires: []string{"metadata"}})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'metadata' is not registered")
}
