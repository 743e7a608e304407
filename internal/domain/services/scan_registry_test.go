package services

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appguard-lab/pkg/logger"
)

func TestScanRegistryTracksScans(t *testing.T) {
	apps := inventory(3)
	orch, _ := newTestOrchestrator(t, &fakeAppSource{apps: apps}, allFromStore(apps), 0, nil)
	reg := NewScanRegistry(orch, time.Hour, logger.NewNop())
	defer reg.Shutdown()

	task, started := reg.Start("dev-1")
	require.True(t, started)
	got, ok := reg.Get(task.ID)
	require.True(t, ok)
	assert.Same(t, task, got)

	summary, err := task.Wait()
	require.NoError(t, err)
	assert.Equal(t, 3, summary.SafeApps)
	assert.Equal(t, 0, reg.Running())

	assert.True(t, reg.Cancel(task.ID), "cancelling a finished scan is allowed")
	assert.False(t, reg.Cancel(uuid.New()))
}

func TestScanRegistryEvictsFinishedScans(t *testing.T) {
	apps := inventory(1)
	orch, _ := newTestOrchestrator(t, &fakeAppSource{apps: apps}, allFromStore(apps), 0, nil)
	reg := NewScanRegistry(orch, time.Millisecond, logger.NewNop())
	defer reg.Shutdown()

	task, started := reg.Start("dev-1")
	require.True(t, started)
	_, err := task.Wait()
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, ok := reg.Get(task.ID)
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestScanRegistryShutdownCancelsRunningScans(t *testing.T) {
	apps := inventory(3)
	prov := allFromStore(apps)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	prov.hook = func(string) {
		once.Do(func() { close(started) })
		<-release
	}

	orch, _ := newTestOrchestrator(t, &fakeAppSource{apps: apps}, prov, 0, nil)
	reg := NewScanRegistry(orch, time.Hour, logger.NewNop())

	task, isNew := reg.Start("dev-1")
	require.True(t, isNew)
	<-started
	assert.Equal(t, 1, reg.Running())

	reg.Shutdown()
	close(release)

	summary, err := task.Wait()
	require.NoError(t, err)
	assert.True(t, summary.Cancelled)
	assert.Equal(t, 1, summary.TotalAppsScanned)
}

func TestScanRegistryReusesRunningScanPerDevice(t *testing.T) {
	apps := inventory(2)
	prov := allFromStore(apps)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	prov.hook = func(string) {
		once.Do(func() { close(started) })
		<-release
	}

	orch, _ := newTestOrchestrator(t, &fakeAppSource{apps: apps}, prov, 0, nil)
	reg := NewScanRegistry(orch, time.Hour, logger.NewNop())
	defer reg.Shutdown()

	first, isNew := reg.Start("dev-1")
	require.True(t, isNew)
	<-started

	again, isNew := reg.Start("dev-1")
	assert.False(t, isNew)
	assert.Same(t, first, again)

	other, isNew := reg.Start("dev-2")
	assert.True(t, isNew)
	assert.NotEqual(t, first.ID, other.ID)
	assert.Equal(t, 2, reg.Running())

	close(release)
	_, err := first.Wait()
	require.NoError(t, err)
	_, err = other.Wait()
	require.NoError(t, err)

	next, isNew := reg.Start("dev-1")
	assert.True(t, isNew, "a finished scan does not block a new one")
	assert.NotEqual(t, first.ID, next.ID)
	_, err = next.Wait()
	require.NoError(t, err)
}
