package message

import "fmt"

// Reserved message ids.
const (
	MsgIDMarker1     = 1
	MsgIDDayMarker   = 9
	MsgIDLastSpecial = 9
)

// Reserved chat ids.
const (
	ChatIDDeaddrop       = 1
	ChatIDTrash          = 3
	ChatIDMsgsInCreation = 4
	ChatIDStarred        = 5
	ChatIDArchivedLink   = 6
	ChatIDAllDoneHint    = 7
	ChatIDLastSpecial    = 9
)

// Reserved contact ids.
const (
	ContactIDSelf        = 1
	ContactIDInfo        = 2
	ContactIDDevice      = 5
	ContactIDLastSpecial = 9
)

// MsgID is the local identity of a message row. Values up to
// MsgIDLastSpecial are sentinels and never denote a loadable row; 0 means
// the message has not been saved yet.
type MsgID uint32

// NewMsgID wraps a raw id.
func NewMsgID(id uint32) MsgID {
	return MsgID(id)
}

// UnsetMsgID is the id of a message that has not been persisted.
const UnsetMsgID MsgID = 0

// IsSpecial reports whether the id is a sentinel. Unset ids are special.
func (id MsgID) IsSpecial() bool {
	return id <= MsgIDLastSpecial
}

// IsUnset reports whether the message has not been saved yet.
func (id MsgID) IsUnset() bool {
	return id == 0
}

// IsMarker1 reports whether the id is the marker1 sentinel.
func (id MsgID) IsMarker1() bool {
	return id == MsgIDMarker1
}

// IsDayMarker reports whether the id is the day-separator sentinel.
func (id MsgID) IsDayMarker() bool {
	return id == MsgIDDayMarker
}

// ToU32 exposes the raw integer.
//
// Deprecated: callers should move to typed ids; this exists for the job
// queue and wire formats that still carry bare integers.
func (id MsgID) ToU32() uint32 {
	return uint32(id)
}

func (id MsgID) String() string {
	switch {
	case id == MsgIDMarker1:
		return "Msg#Marker1"
	case id == MsgIDDayMarker:
		return "Msg#DayMarker"
	case id <= MsgIDLastSpecial:
		return "Msg#UnknownSpecial"
	default:
		return fmt.Sprintf("Msg#%d", uint32(id))
	}
}

// ChatID is the local identity of a chat.
type ChatID uint32

// IsSpecial reports whether the chat id is reserved.
func (id ChatID) IsSpecial() bool {
	return id <= ChatIDLastSpecial
}

// IsTrash reports whether the id is the trash chat.
func (id ChatID) IsTrash() bool {
	return id == ChatIDTrash
}

// IsDeaddrop reports whether the id is the contact-request chat.
func (id ChatID) IsDeaddrop() bool {
	return id == ChatIDDeaddrop
}

func (id ChatID) String() string {
	return fmt.Sprintf("Chat#%d", uint32(id))
}

// ContactID is the local identity of a contact.
type ContactID uint32

// IsSpecial reports whether the contact id is reserved.
func (id ContactID) IsSpecial() bool {
	return id <= ContactIDLastSpecial
}
