package message

import (
	"context"
	"regexp"

	"github.com/matheus3301/mailcore/internal/stock"
)

// SummaryCharacters is the approximate length of chatlist summaries.
const SummaryCharacters = 160

const summarySep = " – "

var whitespaceRe = regexp.MustCompile(`\s+`)

// Meaning tells the UI how to render Lot.Text1.
type Meaning int

const (
	MeaningNone Meaning = iota
	MeaningText1Draft
	MeaningText1Username
	MeaningText1Self
)

// Lot is the two-line summary of a message shown in chat lists.
type Lot struct {
	Text1        string
	Text1Meaning Meaning
	Text2        string
	Timestamp    int64
	State        State
}

// FillLot derives the summary of msg in chat. contact is the sender and is
// only consulted for group chats; it may be nil.
func FillLot(ctx context.Context, msg *Message, chat ChatInfo, contact *ContactInfo, tr stock.Translator) Lot {
	var lot Lot
	switch {
	case msg.State == OutDraft:
		lot.Text1 = tr.Str(ctx, stock.Draft)
		lot.Text1Meaning = MeaningText1Draft
	case msg.FromID == ContactIDSelf:
		if !msg.IsInfo() && !chat.SelfTalk {
			lot.Text1 = tr.Str(ctx, stock.SelfMsg)
			lot.Text1Meaning = MeaningText1Self
		}
	case chat.Type.IsGroup():
		if !msg.IsInfo() && contact != nil {
			if chat.ID.IsDeaddrop() {
				lot.Text1 = contact.DisplayName()
			} else {
				lot.Text1 = contact.FirstName()
			}
			lot.Text1Meaning = MeaningText1Username
		}
	}

	lot.Text2 = SummaryText(ctx, msg.Viewtype, msg.Text, msg.Params, SummaryCharacters, tr)
	lot.Timestamp = msg.Timestamp()
	lot.State = msg.State
	return lot
}

// SummaryText renders a one-line preview from the raw message parts.
func SummaryText(ctx context.Context, viewtype Viewtype, text string, params Params, approxChars int, tr stock.Translator) string {
	var prefix string
	switch viewtype {
	case ViewtypeImage:
		prefix = tr.Str(ctx, stock.Image)
	case ViewtypeGif:
		prefix = tr.Str(ctx, stock.Gif)
	case ViewtypeSticker:
		prefix = tr.Str(ctx, stock.Sticker)
	case ViewtypeVideo:
		prefix = tr.Str(ctx, stock.Video)
	case ViewtypeVoice:
		prefix = tr.Str(ctx, stock.VoiceMessage)
	case ViewtypeAudio, ViewtypeFile:
		if params.Cmd() == CmdAutocryptSetupMessage {
			return tr.Str(ctx, stock.AcSetupMsgSubject)
		}
		name := "ErrFileName"
		if m := (&Message{Params: params}).Filename(); m != "" {
			name = m
		}
		label := tr.Str(ctx, stock.File)
		if viewtype == ViewtypeAudio {
			label = tr.Str(ctx, stock.Audio)
		}
		prefix = label + summarySep + name
	default:
		if params.Cmd() == CmdLocationOnly {
			return tr.Str(ctx, stock.Location)
		}
	}

	summary := prefix
	switch {
	case text == "":
	case prefix == "":
		summary = Truncate(text, approxChars)
	default:
		summary = Truncate(prefix+summarySep+text, approxChars)
	}
	return whitespaceRe.ReplaceAllString(summary, " ")
}
