package status

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/mailcore/internal/message"
	"github.com/matheus3301/mailcore/internal/store"
)

const maxRawInfoChars = 100000

// Info renders read-only reports about stored messages.
type Info struct {
	db *store.DB
}

func NewInfo(db *store.DB) *Info {
	return &Info{db: db}
}

// MsgInfo renders a human-readable report about a message: timestamps,
// read receipts, state, encryption, attachment details and the remote
// location.
func (i *Info) MsgInfo(ctx context.Context, id message.MsgID) (string, error) {
	msg, err := i.db.LoadMessage(ctx, id)
	if err != nil {
		return "", err
	}
	raw, err := i.db.RawText(ctx, id)
	if err != nil {
		return "", err
	}
	raw = message.Truncate(strings.TrimSpace(raw), maxRawInfoChars)

	var b strings.Builder
	from, err := i.contactName(ctx, msg.FromID)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "Sent: %s by %s\n", formatTime(msg.Timestamp()), from)

	if msg.FromID != message.ContactIDSelf {
		rcvd := msg.TimestampRcvd
		if rcvd == 0 {
			rcvd = msg.TimestampSort
		}
		fmt.Fprintf(&b, "Received: %s\n", formatTime(rcvd))
	}

	if msg.FromID == message.ContactIDInfo || msg.ToID == message.ContactIDInfo {
		return b.String(), nil
	}

	receipts, err := i.db.ListEvidence(ctx, id)
	if err != nil {
		return "", err
	}
	for _, r := range receipts {
		name, err := i.contactName(ctx, r.ContactID)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "Read: %s by %s\n", formatTime(r.TimestampSent), name)
	}

	fmt.Fprintf(&b, "State: %s", msg.State)
	if msg.HasLocation() {
		b.WriteString(", Location sent")
	}
	if e2eeErrors, _ := msg.Params.GetInt(message.ParamErroneousE2ee); e2eeErrors != 0 {
		if e2eeErrors&0x2 != 0 {
			b.WriteString(", Encrypted, no valid signature")
		}
	} else if msg.ShowPadlock() {
		b.WriteString(", Encrypted")
	}
	b.WriteString("\n")

	if e := msg.Error(); e != "" {
		fmt.Fprintf(&b, "Error: %s\n", e)
	}
	if f, ok := msg.Params.Get(message.ParamFile); ok && f != "" {
		fmt.Fprintf(&b, "File: %s\n", f)
	}
	if msg.Viewtype != message.ViewtypeText {
		mime, _ := msg.FileMime()
		fmt.Fprintf(&b, "Type: %s\nMimetype: %s\n", msg.Viewtype, mime)
	}
	if w, h := msg.Width(), msg.Height(); w != 0 || h != 0 {
		fmt.Fprintf(&b, "Dimension: %d x %d\n", w, h)
	}
	if d := msg.Duration(); d != 0 {
		fmt.Fprintf(&b, "Duration: %d ms\n", d)
	}
	if raw != "" {
		fmt.Fprintf(&b, "\n%s\n", raw)
	}
	if msg.RFC724Mid != "" {
		fmt.Fprintf(&b, "\nMessage-ID: %s", msg.RFC724Mid)
	}
	if msg.ServerFolder != "" {
		fmt.Fprintf(&b, "\nLast seen as: %s/%d", msg.ServerFolder, msg.ServerUID)
	}
	return b.String(), nil
}

func (i *Info) contactName(ctx context.Context, id message.ContactID) (string, error) {
	c, err := i.db.GetContact(ctx, id)
	if err != nil {
		return "", err
	}
	if c == nil {
		return fmt.Sprintf("contact#%d", uint32(id)), nil
	}
	return c.NameAndAddr(), nil
}

func formatTime(ts int64) string {
	return time.Unix(ts, 0).Local().Format("2006.01.02 15:04:05")
}
