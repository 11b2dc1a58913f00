// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hooks

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_HookExecution(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("hooks fire exactly when their condition holds", prop.ForAll(
		func(rating int, eventName string) bool {
			dir, err := os.MkdirTemp("", "hooks-prop-*")
			if err != nil {
				return false
			}
			defer os.RemoveAll(dir)

			evt := HookEvent(eventName)
			hook := Hook{
				ID:        "prop-hook",
				Name:      "Prop Hook",
				Event:     evt,
				Condition: "Data.rating <= 2",
				Action:    "prop_action",
				Enabled:   true,
			}
			data, err := yaml.Marshal(hook)
			if err != nil {
				return false
			}
			if err := os.WriteFile(filepath.Join(dir, "hook.yaml"), data, 0o644); err != nil {
				return false
			}

			bus := NewEventBus()
			defer bus.Shutdown()

			manager, err := NewManager(dir, bus)
			if err != nil {
				return false
			}

			var triggered atomic.Bool
			manager.RegisterAction("prop_action", func(h *Hook, e *EventContext) error {
				triggered.Store(true)
				return nil
			})

			if err := manager.LoadHooks(); err != nil {
				return false
			}
			manager.SubscribeToAllEvents()

			bus.Publish(&EventContext{
				Event: evt,
				Data:  map[string]any{"rating": rating},
			})

			// Actions run in their own goroutine.
			time.Sleep(50 * time.Millisecond)

			shouldTrigger := rating <= 2
			return triggered.Load() == shouldTrigger
		},
		gen.IntRange(1, 5),
		gen.OneConstOf("decision_made", "feedback_received", "fallback_used", "low_confidence"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
