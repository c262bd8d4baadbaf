package sdk

import "fmt"

// EntrySymbol is the name every plugin must export.
const EntrySymbol = "RunPlugin"

// EntryFunc is the signature of the exported entry point. The scene pointer and the
// Host are only valid until the function returns.
type EntryFunc = func(scene *[]Block, host Host)

// Host is the capability table handed to a plugin for one invocation.
//
// Field order is fixed. Plugins that append blocks must draw ids from NextID
// (see AllocID) and should call PushUndo once before mutating so their whole
// effect is one undo step.
type Host struct {
	Log         func(msg string)
	PushUndo    func()
	WakePhysics func()
	NextID      *int
	ActiveColor *Color
	GridSize    *float32
}

// Logf formats a message on the plugin side and passes it to Log.
func (h Host) Logf(format string, args ...any) {
	if h.Log == nil {
		return
	}
	h.Log(fmt.Sprintf(format, args...))
}

// AllocID reads the shared id counter and increments it.
func (h Host) AllocID() int {
	id := *h.NextID
	*h.NextID++
	return id
}
