package recorder

import "fmt"

// Status is the lifecycle state of a Session.
type Status int32

const (
	Idle Status = iota
	Recording
	Paused
	Stopped
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("Status(%d)", int32(s))
}
