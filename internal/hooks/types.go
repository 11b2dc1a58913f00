// Package hooks lets operators attach declarative rules to pipeline events.
// A hook pairs an event with an expr condition and an action; definitions
// live in YAML files under a watched directory and reload on edit. Hooks
// observe the pipeline and never influence which route a query takes.
package hooks

import "time"

// HookEvent identifies a point in the answer pipeline that hooks can observe.
type HookEvent string

const (
	// EventDecisionMade fires after every completed routing decision.
	EventDecisionMade HookEvent = "decision_made"
	// EventFeedbackReceived fires when a user assessment is collected.
	EventFeedbackReceived HookEvent = "feedback_received"
	// EventFallbackUsed fires when a query lands on the direct solver.
	EventFallbackUsed HookEvent = "fallback_used"
	// EventLowConfidence fires when an answer ships below the confidence
	// alert threshold.
	EventLowConfidence HookEvent = "low_confidence"
)

// AllEvents lists every event the bus understands.
func AllEvents() []HookEvent {
	return []HookEvent{
		EventDecisionMade,
		EventFeedbackReceived,
		EventFallbackUsed,
		EventLowConfidence,
	}
}

// HookAction identifies a built-in action handler.
type HookAction string

const (
	// ActionLogWarning writes a warning line through the structured logger.
	ActionLogWarning HookAction = "log_warning"
	// ActionRunLua executes a sandboxed Lua script with the event exposed
	// as a read-only table.
	ActionRunLua HookAction = "run_lua"
)

// Hook is one declarative rule loaded from a YAML file.
type Hook struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Event       HookEvent      `yaml:"event"`
	Condition   string         `yaml:"condition,omitempty"`
	Action      HookAction     `yaml:"action"`
	Params      map[string]any `yaml:"params,omitempty"`
	Enabled     bool           `yaml:"enabled"`

	// FilePath records which file the hook was loaded from.
	FilePath string `yaml:"-"`
}

// EventContext carries one pipeline event to subscribers and action handlers.
type EventContext struct {
	Event      HookEvent      `json:"event"`
	Timestamp  time.Time      `json:"timestamp"`
	Data       map[string]any `json:"data,omitempty"`
	Query      string         `json:"query,omitempty"`
	Route      string         `json:"route,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`

	Error        error  `json:"-"`
	ErrorMessage string `json:"error,omitempty"`
}

// errorText returns the best available error description for conditions and
// scripts, or the empty string.
func (c *EventContext) errorText() string {
	if c.Error != nil {
		return c.Error.Error()
	}
	return c.ErrorMessage
}

// ActionHandler executes a hook whose condition matched the event.
type ActionHandler func(hook *Hook, ctx *EventContext) error
