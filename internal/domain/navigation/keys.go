package navigation

import "strings"

// KeyMap binds physical key names (as reported by KeyboardEvent.key) to actions.
type KeyMap map[string]Action

var baseBindings = KeyMap{
	"F5":       ActionNew,
	"F6":       ActionEdit,
	"F7":       ActionDelete,
	"F8":       ActionSubmit,
	"F9":       ActionCancel,
	"F12":      ActionQuit,
	"Home":     ActionFirst,
	"End":      ActionLast,
	"PageUp":   ActionPrevious,
	"PageDown": ActionNext,
}

// Bindings returns the key map of a form; forms with a visit history also
// bind F10.
func Bindings(withHistory bool) KeyMap {
	m := make(KeyMap, len(baseBindings)+1)
	for k, a := range baseBindings {
		m[k] = a
	}
	if withHistory {
		m["F10"] = ActionHistory
	}
	return m
}

// Resolve maps a key press to an action. Keys pressed while focus is inside
// a text-entry control are never intercepted.
func (m KeyMap) Resolve(key, focusTag string) (Action, bool) {
	switch strings.ToUpper(strings.TrimSpace(focusTag)) {
	case "INPUT", "SELECT", "TEXTAREA":
		return "", false
	}
	a, ok := m[key]
	return a, ok
}
