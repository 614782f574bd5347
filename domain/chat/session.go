package chat

// SessionState of the synchronizer for the active room.
type SessionState int

const (
	Idle SessionState = iota
	Loading
	Live
)

func (s SessionState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Live:
		return "live"
	default:
		return "idle"
	}
}

// Snapshot is the read model handed to the presentation layer.
// It is published as a whole after each apply, never modified afterwards.
type Snapshot struct {
	Room       *Room
	State      SessionState
	Messages   []Message
	Connected  bool
	Generation uint64
}

func (s Snapshot) RoomID() RoomID {
	if s.Room == nil {
		return ""
	}
	return s.Room.ID
}
