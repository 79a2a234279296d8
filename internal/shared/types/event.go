package types

// EventKind tags every value that flows through the main event loop
type EventKind int

const (
	EventWindowAdded EventKind = iota
	EventWindowRemoved
	EventWindowConfig
	EventWindowRestack
	EventProcessExited
	EventProcessCrashed
	EventKillRequest
	EventPressureChanged

	// follow-up events produced while dispatching one of the above
	EventViewReady
	EventThumbnailAdd
	EventThumbnailRemove
	EventSwitcherAdd
	EventSwitcherRemove
	EventViewTeardown
)

var eventKindNames = map[EventKind]string{
	EventWindowAdded:     "window_added",
	EventWindowRemoved:   "window_removed",
	EventWindowConfig:    "window_config",
	EventWindowRestack:   "window_restack",
	EventProcessExited:   "process_exited",
	EventProcessCrashed:  "process_crashed",
	EventKillRequest:     "kill_request",
	EventPressureChanged: "pressure_changed",
	EventViewReady:       "view_ready",
	EventThumbnailAdd:    "thumbnail_add",
	EventThumbnailRemove: "thumbnail_remove",
	EventSwitcherAdd:     "switcher_add",
	EventSwitcherRemove:  "switcher_remove",
	EventViewTeardown:    "view_teardown",
}

// String returns the string representation of the kind
func (k EventKind) String() string {
	if s, ok := eventKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Event is a small value posted to the loop. Only the fields relevant to the
// kind are set.
type Event struct {
	Kind     EventKind
	PID      int
	Handle   WindowHandle
	Bounds   Rect
	Fields   ConfigFields
	Relative WindowHandle
	Order    StackOrder
	Gen      uint64 // instance generation of process events
	Status   int    // raw wait status or exit code
	Signal   string
	Level    PressureLevel
}
