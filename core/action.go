package core

import (
	"fmt"
	"strings"
)

// ActionKind identifies one of the six entity actions
type ActionKind string

const (
	ActionCreate ActionKind = "Create"
	ActionRead   ActionKind = "Read"
	ActionUpdate ActionKind = "Update"
	ActionDelete ActionKind = "Delete"
	ActionList   ActionKind = "List"
	ActionCount  ActionKind = "Count"
)

// AllActions lists the supported actions in their canonical order
var AllActions = []ActionKind{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionList, ActionCount}

// String returns the string representation
func (a ActionKind) String() string {
	return string(a)
}

// IsValid checks if the action is one of the supported actions
func (a ActionKind) IsValid() bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionList, ActionCount:
		return true
	default:
		return false
	}
}

// Mutating reports whether the action runs inside a transaction
func (a ActionKind) Mutating() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}

// ParseActionKind resolves an action name case-insensitively
func ParseActionKind(name string) (ActionKind, error) {
	trimmed := strings.TrimSpace(name)
	for _, a := range AllActions {
		if strings.EqualFold(trimmed, string(a)) {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, name)
}

// Outcome is the result of one action invocation. Exactly one of the payload
// fields is meaningful, selected by Action.
type Outcome struct {
	Action   ActionKind
	Entity   *Entity
	Entities []*Entity
	Count    int64
	Deleted  bool
}

// Value returns the payload selected by Action
func (o Outcome) Value() any {
	switch o.Action {
	case ActionCreate, ActionRead, ActionUpdate:
		return o.Entity
	case ActionDelete:
		return o.Deleted
	case ActionList:
		return o.Entities
	case ActionCount:
		return o.Count
	default:
		return nil
	}
}
