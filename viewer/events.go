package viewer

import "github.com/golang/geo/r2"

type EventKind int

const (
	KeyPress EventKind = iota
	// Drag is a pointer drag from From to To in bitmap pixels.
	Drag
)

type Key int

const (
	KeyRune Key = iota
	KeyUp
	KeyDown
	KeyPageUp
	KeyPageDown
	KeyInterrupt
)

// InputEvent is a toolkit independent input event.
type InputEvent struct {
	Kind EventKind
	Key  Key
	Rune rune
	From r2.Point
	To   r2.Point
}

func KeyEvent(k Key) InputEvent {
	return InputEvent{Kind: KeyPress, Key: k}
}

func RuneEvent(r rune) InputEvent {
	return InputEvent{Kind: KeyPress, Key: KeyRune, Rune: r}
}

func DragEvent(from, to r2.Point) InputEvent {
	return InputEvent{Kind: Drag, From: from, To: to}
}

type Action int

const (
	ActionNone Action = iota
	ActionNextPage
	ActionPreviousPage
	ActionMark
	ActionSave
	ActionZoomIn
	ActionZoomOut
	ActionQuit
)

func (a Action) String() string {
	switch a {
	case ActionNextPage:
		return "next-page"
	case ActionPreviousPage:
		return "previous-page"
	case ActionMark:
		return "mark"
	case ActionSave:
		return "save"
	case ActionZoomIn:
		return "zoom-in"
	case ActionZoomOut:
		return "zoom-out"
	case ActionQuit:
		return "quit"
	}

	return "none"
}

// KeyMap binds keys and runes to actions.
type KeyMap struct {
	Keys  map[Key]Action
	Runes map[rune]Action
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Keys: map[Key]Action{
			KeyDown:      ActionNextPage,
			KeyPageDown:  ActionNextPage,
			KeyUp:        ActionPreviousPage,
			KeyPageUp:    ActionPreviousPage,
			KeyInterrupt: ActionQuit,
		},
		Runes: map[rune]Action{
			's': ActionSave,
			'+': ActionZoomIn,
			'=': ActionZoomIn,
			'-': ActionZoomOut,
			'q': ActionQuit,
		},
	}
}

// Action resolves ev; drags always mark a region.
func (m KeyMap) Action(ev InputEvent) Action {
	switch ev.Kind {
	case Drag:
		return ActionMark
	case KeyPress:
		if ev.Key == KeyRune {
			return m.Runes[ev.Rune]
		}
		return m.Keys[ev.Key]
	}

	return ActionNone
}
