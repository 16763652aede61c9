// Copyright 2026 The Promptwire Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/promptwire/promptwire/pkg/errors"
)

// debounceWindow coalesces bursts of filesystem events; editors typically
// emit several per save.
const debounceWindow = 250 * time.Millisecond

// Watcher reloads a configuration directory on change and hands each
// successfully loaded bundle to a callback. A change that fails to load is
// logged and discarded; the previous bundle stays active.
type Watcher struct {
	dir      string
	onReload func(*Bundle)
	logger   *slog.Logger
	fw       *fsnotify.Watcher
}

// NewWatcher watches dir and its workflows subdirectory.
func NewWatcher(dir string, onReload func(*Bundle), logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating filesystem watcher")
	}

	for _, p := range []string{dir, filepath.Join(dir, "workflows")} {
		if err := fw.Add(p); err != nil {
			fw.Close()
			return nil, errors.Wrapf(err, "watching %s", p)
		}
	}

	return &Watcher{
		dir:      dir,
		onReload: onReload,
		logger:   logger,
		fw:       fw,
	}, nil
}

// Run processes events until ctx is done. Blocking; run in its own
// goroutine.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fw.Close()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerC = timer.C
			} else {
				timer.Reset(debounceWindow)
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	bundle, err := Load(w.dir)
	if err != nil {
		w.logger.Error("config reload failed, keeping previous configuration", "error", err)
		return
	}

	w.logger.Info("configuration reloaded",
		"endpoints", len(bundle.Endpoints),
		"workflows", len(bundle.Workflows),
	)
	w.onReload(bundle)
}
