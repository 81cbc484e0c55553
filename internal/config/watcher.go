// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"github.com/fsnotify/fsnotify"

	"github.com/arkime/sessiond/internal/logging"
	"github.com/arkime/sessiond/internal/rules"
	"github.com/arkime/sessiond/internal/session"
)

// RuleFileWatcher watches every path in RulesFiles and reloads idx
// whenever one of them changes. A failed reload is logged and leaves
// idx's current generation untouched.
type RuleFileWatcher struct {
	paths    []string
	registry session.FieldsRegistry
	idx      *rules.RuleIndex
	watcher  *fsnotify.Watcher
}

// NewRuleFileWatcher starts watching paths for writes; call Close to
// stop.
func NewRuleFileWatcher(paths []string, registry session.FieldsRegistry, idx *rules.RuleIndex) (*RuleFileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		if err := w.Add(p); err != nil {
			w.Close()
			return nil, err
		}
	}
	rfw := &RuleFileWatcher{paths: paths, registry: registry, idx: idx, watcher: w}
	go rfw.run()
	return rfw, nil
}

func (w *RuleFileWatcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("rule file watcher error: %v", err)
		}
	}
}

// reload re-parses every watched document and only swaps the rule
// index in if all of them load cleanly; a parse error anywhere keeps
// the previous generation live.
func (w *RuleFileWatcher) reload() {
	loaded, err := LoadAllRuleFiles(w.paths, w.registry)
	if err != nil {
		logging.Warn("rule reload failed, keeping current generation: %v", err)
		return
	}
	w.idx.Reload(loaded, w.registry)
	logging.Info("rule reload succeeded: %d files, %d rules", len(w.paths), len(loaded))
}

// Close stops the watcher.
func (w *RuleFileWatcher) Close() error {
	return w.watcher.Close()
}
