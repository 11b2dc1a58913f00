// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-yaml"
	log "github.com/sirupsen/logrus"

	"github.com/solvernet/mathrouter/internal/util"
)

// Manager loads hook definitions from disk, watches the directory for
// edits, and runs matching actions when pipeline events arrive.
type Manager struct {
	mu       sync.RWMutex
	hooksDir string
	hooks    map[HookEvent][]*Hook
	programs map[string]*vm.Program
	actions  map[HookAction]ActionHandler

	bus *EventBus

	watcher     *fsnotify.Watcher
	stopWatcher chan struct{}
}

// NewManager creates a manager reading hook definitions from dir and
// registers the built-in actions. Call LoadHooks to pick up definitions and
// SubscribeToAllEvents to attach the manager to the bus.
func NewManager(dir string, bus *EventBus) (*Manager, error) {
	if dir == "" {
		return nil, fmt.Errorf("hooks directory not configured")
	}
	m := &Manager{
		hooksDir:    dir,
		hooks:       make(map[HookEvent][]*Hook),
		programs:    make(map[string]*vm.Program),
		actions:     make(map[HookAction]ActionHandler),
		bus:         bus,
		stopWatcher: make(chan struct{}),
	}
	RegisterBuiltInActions(m)
	return m, nil
}

// RegisterAction installs the handler for an action name, replacing any
// previous handler.
func (m *Manager) RegisterAction(action HookAction, handler ActionHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[action] = handler
}

// LoadHooks reads every enabled hook definition under the hooks directory.
// A file that fails to read or parse is logged and skipped so one bad
// definition cannot take the rest down. Compiled conditions are discarded
// and rebuilt lazily after a reload.
func (m *Manager) LoadHooks() error {
	if err := os.MkdirAll(m.hooksDir, 0o755); err != nil {
		return fmt.Errorf("failed to create hooks directory: %w", err)
	}

	loaded := make(map[HookEvent][]*Hook)
	count := 0

	err := filepath.Walk(m.hooksDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			log.Warnf("Failed to read hook file %s: %v", path, err)
			return nil
		}

		var hook Hook
		if err := yaml.Unmarshal(raw, &hook); err != nil {
			log.Warnf("Failed to parse hook file %s: %v", path, err)
			return nil
		}
		if !hook.Enabled {
			return nil
		}
		if hook.ID == "" || hook.Event == "" || hook.Action == "" {
			log.Warnf("Skipping incomplete hook definition in %s", path)
			return nil
		}
		if !util.IsValidHookID(hook.ID) {
			log.Warnf("Skipping hook with invalid id %q in %s", hook.ID, path)
			return nil
		}

		hook.FilePath = path
		loaded[hook.Event] = append(loaded[hook.Event], &hook)
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan hooks directory: %w", err)
	}

	m.mu.Lock()
	m.hooks = loaded
	m.programs = make(map[string]*vm.Program)
	m.mu.Unlock()

	log.Infof("Loaded %d hooks across %d event types", count, len(loaded))
	return nil
}

// SubscribeToAllEvents attaches the manager to every known pipeline event.
func (m *Manager) SubscribeToAllEvents() {
	for _, event := range AllEvents() {
		m.bus.Subscribe(event, m.handleEvent)
	}
}

func (m *Manager) handleEvent(evt *EventContext) {
	m.mu.RLock()
	hooks := m.hooks[evt.Event]
	m.mu.RUnlock()

	for _, hook := range hooks {
		matched, err := m.evaluateCondition(hook, evt)
		if err != nil {
			log.Warnf("Hook %s condition error: %v", hook.ID, err)
			continue
		}
		if !matched {
			continue
		}
		log.Infof("Executing hook: %s (Action: %s)", hook.Name, hook.Action)
		go m.executeAction(hook, evt)
	}
}

// evaluateCondition runs the hook's expr condition against the event. An
// empty condition always matches. Conditions see Event, Timestamp, Data,
// Query, Route, Confidence and Error.
func (m *Manager) evaluateCondition(hook *Hook, evt *EventContext) (bool, error) {
	cond := strings.TrimSpace(hook.Condition)
	if cond == "" {
		return true, nil
	}

	program, err := m.conditionProgram(cond)
	if err != nil {
		return false, err
	}

	env := map[string]any{
		"Event":      string(evt.Event),
		"Timestamp":  evt.Timestamp,
		"Data":       evt.Data,
		"Query":      evt.Query,
		"Route":      evt.Route,
		"Confidence": evt.Confidence,
		"Error":      evt.errorText(),
	}

	output, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate condition %q: %w", cond, err)
	}
	matched, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not produce a boolean", cond)
	}
	return matched, nil
}

func (m *Manager) conditionProgram(cond string) (*vm.Program, error) {
	m.mu.RLock()
	program, ok := m.programs[cond]
	m.mu.RUnlock()
	if ok {
		return program, nil
	}

	// Compiled without a typed environment: conditions address Data keys
	// that only exist at runtime.
	program, err := expr.Compile(cond)
	if err != nil {
		return nil, fmt.Errorf("failed to compile condition %q: %w", cond, err)
	}

	m.mu.Lock()
	m.programs[cond] = program
	m.mu.Unlock()
	return program, nil
}

func (m *Manager) executeAction(hook *Hook, evt *EventContext) {
	m.mu.RLock()
	handler, ok := m.actions[hook.Action]
	m.mu.RUnlock()

	if !ok {
		log.Warnf("No handler registered for action %s (hook %s)", hook.Action, hook.ID)
		return
	}
	if err := handler(hook, evt); err != nil {
		log.Errorf("Hook %s action %s failed: %v", hook.ID, hook.Action, err)
	}
}

// StartWatcher reloads hook definitions whenever the hooks directory
// changes on disk.
func (m *Manager) StartWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create hooks watcher: %w", err)
	}
	if err := watcher.Add(m.hooksDir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch hooks directory: %w", err)
	}
	m.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				log.Debugf("Hook definitions changed (%s), reloading", event.Name)
				// Editors fire several events per save; let the write
				// settle before reloading.
				time.Sleep(100 * time.Millisecond)
				if err := m.LoadHooks(); err != nil {
					log.Warnf("Failed to reload hooks: %v", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnf("Hooks watcher error: %v", err)
			case <-m.stopWatcher:
				return
			}
		}
	}()

	return nil
}

// StopWatcher stops the directory watcher. Safe to call repeatedly or when
// no watcher was started.
func (m *Manager) StopWatcher() {
	select {
	case <-m.stopWatcher:
	default:
		close(m.stopWatcher)
	}
	if m.watcher != nil {
		m.watcher.Close()
	}
}

// HooksDir returns the watched directory.
func (m *Manager) HooksDir() string {
	return m.hooksDir
}

// Hooks returns every loaded hook in no particular order.
func (m *Manager) Hooks() []*Hook {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Hook
	for _, hs := range m.hooks {
		out = append(out, hs...)
	}
	return out
}

// Hook returns the loaded hook with the given id.
func (m *Manager) Hook(id string) (*Hook, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, hs := range m.hooks {
		for _, h := range hs {
			if h.ID == id {
				return h, true
			}
		}
	}
	return nil, false
}
