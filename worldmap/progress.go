package worldmap

import "github.com/eak1mov/go-anviltiles/anvil"

// EventKind enumerates progress stages of a render run.
type EventKind int

const (
	// EventBegin opens the run; Regions and Chunks carry totals.
	EventBegin EventKind = iota
	// EventRegionBegin opens one region; Chunks carries its stale count.
	EventRegionBegin
	// EventChunk reports one redrawn chunk.
	EventChunk
	// EventRegionEnd closes one region; Reused and Err qualify it.
	EventRegionEnd
	// EventEnd closes the run.
	EventEnd
)

// Event is one progress report. Fields beyond Kind are filled per kind.
type Event struct {
	Kind    EventKind
	Region  anvil.Pos
	Regions int
	Chunks  int
	Reused  bool
	Err     error
}

// ProgressFunc receives progress events, always from a single goroutine.
type ProgressFunc func(Event)
