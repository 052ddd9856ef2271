package message

// State is the lifecycle state of a message. The numeric levels are
// persisted and compared with >=, e.g. a message counts as sent once its
// state reaches OutDelivered. OutDelivered may still fall back to OutFailed.
type State int

const (
	Undefined State = 0

	// InFresh is an incoming message that was neither noticed nor seen.
	InFresh State = 10
	// InNoticed is an incoming message whose chat was opened.
	InNoticed State = 13
	// InSeen is an incoming message really seen by the user.
	InSeen State = 16

	// OutPreparing is an outgoing message whose attachment is still being prepared.
	OutPreparing State = 18
	OutDraft     State = 19
	// OutPending is an outgoing message handed to the send queue.
	OutPending State = 20
	// OutFailed is an unrecoverable send error.
	OutFailed State = 24
	// OutDelivered means the server accepted the message.
	OutDelivered State = 26
	// OutMdnRcvd means enough read receipts were received.
	OutMdnRcvd State = 28
)

var stateNames = map[State]string{
	Undefined:    "Undefined",
	InFresh:      "Fresh",
	InNoticed:    "Noticed",
	InSeen:       "Seen",
	OutPreparing: "Preparing",
	OutDraft:     "Draft",
	OutPending:   "Pending",
	OutFailed:    "Failed",
	OutDelivered: "Delivered",
	OutMdnRcvd:   "Read",
}

// StateFromDB maps a stored integer to a State. Unknown values map to Undefined.
func StateFromDB(v int64) State {
	s := State(v)
	if _, ok := stateNames[s]; !ok {
		return Undefined
	}
	return s
}

// CanFail reports whether a transition to OutFailed is allowed from s.
func (s State) CanFail() bool {
	switch s {
	case OutPreparing, OutPending, OutDelivered:
		return true
	default:
		return false
	}
}

// IsOutgoing reports whether s belongs to the outgoing range.
func (s State) IsOutgoing() bool {
	return s >= OutPreparing
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "Undefined"
}
