package message

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxTextChars bounds the text returned to callers.
const MaxTextChars = 30000

// Message is the aggregate of one message row.
type Message struct {
	ID            MsgID
	FromID        ContactID
	ToID          ContactID
	ChatID        ChatID
	Viewtype      Viewtype
	State         State
	Hidden        bool
	TimestampSort int64
	TimestampSent int64
	TimestampRcvd int64
	Text          string
	RFC724Mid     string
	InReplyTo     string
	ServerFolder  string
	ServerUID     uint32
	Messenger     MessengerMessage
	Starred       bool
	ChatBlocked   Blocked
	LocationID    uint32
	Params        Params
}

// New returns an unsaved message of the given kind.
func New(viewtype Viewtype) *Message {
	return &Message{Viewtype: viewtype}
}

// NewRFC724Mid generates a correlation string for an outgoing message,
// using the domain of fromAddr.
func NewRFC724Mid(fromAddr string) string {
	domain := "localhost"
	if _, d, ok := strings.Cut(fromAddr, "@"); ok && d != "" {
		domain = d
	}
	return fmt.Sprintf("Mr.%s@%s", uuid.NewString(), domain)
}

// Timestamp is the sent time if known, else the sort time.
func (m *Message) Timestamp() int64 {
	if m.TimestampSent != 0 {
		return m.TimestampSent
	}
	return m.TimestampSort
}

// EffectiveChatID hides blocked chats behind the deaddrop.
func (m *Message) EffectiveChatID() ChatID {
	if m.ChatBlocked != BlockedNot {
		return ChatIDDeaddrop
	}
	return m.ChatID
}

// DisplayText returns the text bounded to MaxTextChars.
func (m *Message) DisplayText() string {
	return Truncate(m.Text, MaxTextChars)
}

// IsSent reports whether the server accepted the message.
func (m *Message) IsSent() bool {
	return m.State >= OutDelivered
}

func (m *Message) IsForwarded() bool {
	n, _ := m.Params.GetInt(ParamForwarded)
	return n != 0
}

// IsInfo reports whether the message is a system notice rather than user
// content. Setup messages are user content.
func (m *Message) IsInfo() bool {
	cmd := m.Params.Cmd()
	return m.FromID == ContactIDInfo ||
		m.ToID == ContactIDInfo ||
		(cmd != CmdUnknown && cmd != CmdAutocryptSetupMessage)
}

func (m *Message) IsSetupMessage() bool {
	return m.Viewtype == ViewtypeFile && m.Params.Cmd() == CmdAutocryptSetupMessage
}

// IsInCreation reports whether the attachment is still being written.
func (m *Message) IsInCreation() bool {
	return m.Viewtype.HasFile() && m.State == OutPreparing
}

func (m *Message) HasLocation() bool {
	return m.LocationID != 0
}

// ShowPadlock reports whether end-to-end encryption was guaranteed.
func (m *Message) ShowPadlock() bool {
	n, _ := m.Params.GetInt(ParamGuaranteeE2ee)
	return n != 0
}

// Filename is the base name of the attached file, empty if none.
func (m *Message) Filename() string {
	f, ok := m.Params.Get(ParamFile)
	if !ok || f == "" {
		return ""
	}
	return filepath.Base(f)
}

// FileMime returns the stored mime type, else a guess from the file
// suffix, else a generic type when a file is attached.
func (m *Message) FileMime() (string, bool) {
	if mime, ok := m.Params.Get(ParamMimeType); ok {
		return mime, true
	}
	f, ok := m.Params.Get(ParamFile)
	if !ok {
		return "", false
	}
	if _, mime, ok := GuessFromSuffix(f); ok {
		return mime, true
	}
	return "application/octet-stream", true
}

func (m *Message) Width() int {
	n, _ := m.Params.GetInt(ParamWidth)
	return n
}

func (m *Message) Height() int {
	n, _ := m.Params.GetInt(ParamHeight)
	return n
}

func (m *Message) Duration() int {
	n, _ := m.Params.GetInt(ParamDuration)
	return n
}

func (m *Message) SetText(text string) {
	m.Text = text
}

// SetFile attaches a file; mime is optional.
func (m *Message) SetFile(path, mime string) {
	m.Params.Set(ParamFile, path)
	if mime != "" {
		m.Params.Set(ParamMimeType, mime)
	}
}

func (m *Message) SetDimension(width, height int) {
	m.Params.SetInt(ParamWidth, width)
	m.Params.SetInt(ParamHeight, height)
}

func (m *Message) SetDuration(d int) {
	m.Params.SetInt(ParamDuration, d)
}

// SetLocation binds a position to the message. (0, 0) is ignored.
func (m *Message) SetLocation(lat, lng float64) {
	if lat == 0 && lng == 0 {
		return
	}
	m.Params.SetFloat(ParamSetLatitude, lat)
	m.Params.SetFloat(ParamSetLongitude, lng)
}

// Error returns the recorded send error, if any.
func (m *Message) Error() string {
	s, _ := m.Params.Get(ParamError)
	return s
}

// HasDeviatingTimestamp reports whether sort and sent time fall on
// different local days.
func (m *Message) HasDeviatingTimestamp() bool {
	_, offset := time.Now().Zone()
	sortDay := (m.TimestampSort + int64(offset)) / 86400
	sentDay := (m.Timestamp() + int64(offset)) / 86400
	return sortDay != sentDay
}

// ChatInfo is the part of a chat needed to render messages.
type ChatInfo struct {
	ID       ChatID
	Type     Chattype
	Name     string
	Blocked  Blocked
	SelfTalk bool
}

// ContactInfo is the part of a contact needed to render messages.
type ContactInfo struct {
	ID       ContactID
	Name     string
	AuthName string
	Addr     string
	LastSeen int64
}

// DisplayName prefers the local name, then the name the peer sent, then
// the address.
func (c *ContactInfo) DisplayName() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.AuthName != "":
		return c.AuthName
	default:
		return c.Addr
	}
}

// FirstName is the first word of the display name.
func (c *ContactInfo) FirstName() string {
	n := c.DisplayName()
	if f := strings.Fields(n); len(f) > 0 {
		return f[0]
	}
	return n
}

// NameAndAddr renders "Name (addr)", or the bare address when unnamed.
func (c *ContactInfo) NameAndAddr() string {
	name := c.Name
	if name == "" {
		name = c.AuthName
	}
	if name == "" {
		return c.Addr
	}
	return name + " (" + c.Addr + ")"
}
