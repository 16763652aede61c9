package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := writeConfigDir(t, nil)

	reloaded := make(chan *Bundle, 1)
	w, err := NewWatcher(dir, func(b *Bundle) {
		select {
		case reloaded <- b:
		default:
		}
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Give the watcher a moment to be ready, then change the config.
	time.Sleep(50 * time.Millisecond)
	updated := "defaultWorkflow: assistant\nserver:\n  addr: \":7777\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(updated), 0o644))

	select {
	case bundle := <-reloaded:
		assert.Equal(t, ":7777", bundle.Config.Server.Addr)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not reload")
	}
}

func TestWatcherKeepsPreviousConfigOnInvalidChange(t *testing.T) {
	dir := writeConfigDir(t, nil)

	reloaded := make(chan *Bundle, 1)
	w, err := NewWatcher(dir, func(b *Bundle) {
		select {
		case reloaded <- b:
		default:
		}
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("defaultWorkflow: [broken"), 0o644))

	// The invalid bundle must never be delivered.
	select {
	case <-reloaded:
		t.Fatal("invalid config was delivered")
	case <-time.After(700 * time.Millisecond):
	}
}

func TestNewWatcherMissingDirectory(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "nope"), func(*Bundle) {}, nil)
	assert.Error(t, err)
}
