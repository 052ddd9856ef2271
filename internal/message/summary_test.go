package message

import (
	"context"
	"strings"
	"testing"

	"github.com/matheus3301/mailcore/internal/stock"
)

func fileParams(name string) Params {
	var p Params
	p.Set(ParamFile, name)
	return p
}

func TestSummaryText(t *testing.T) {
	ctx := context.Background()
	tr := stock.NewTable()

	asm := fileParams("foo.bar")
	asm.SetCmd(CmdAutocryptSetupMessage)
	locOnly := Params{}
	locOnly.SetCmd(CmdLocationOnly)

	tests := []struct {
		name   string
		vt     Viewtype
		text   string
		params Params
		want   string
	}{
		{"text", ViewtypeText, "bla bla", Params{}, "bla bla"},
		{"image", ViewtypeImage, "", fileParams("foo.bar"), "Image"},
		{"video", ViewtypeVideo, "", fileParams("foo.bar"), "Video"},
		{"gif", ViewtypeGif, "", fileParams("foo.bar"), "GIF"},
		{"sticker", ViewtypeSticker, "", fileParams("foo.bar"), "Sticker"},
		{"voice no text", ViewtypeVoice, "", fileParams("foo.bar"), "Voice message"},
		{"voice text", ViewtypeVoice, "bla bla", fileParams("foo.bar"), "Voice message – bla bla"},
		{"audio no text", ViewtypeAudio, "", fileParams("foo.bar"), "Audio – foo.bar"},
		{"audio text", ViewtypeAudio, "bla bla", fileParams("foo.bar"), "Audio – foo.bar – bla bla"},
		{"file text", ViewtypeFile, "bla bla", fileParams("foo.bar"), "File – foo.bar – bla bla"},
		{"file no name", ViewtypeFile, "", Params{}, "File – ErrFileName"},
		{"setup message", ViewtypeFile, "bla bla", asm, "Autocrypt Setup Message"},
		{"location only", ViewtypeText, "bla bla", locOnly, "Location"},
		{"whitespace", ViewtypeText, "a\n\tb   c", Params{}, "a b c"},
		{"empty", ViewtypeText, "", Params{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SummaryText(ctx, tt.vt, tt.text, tt.params, SummaryCharacters, tr)
			if got != tt.want {
				t.Errorf("SummaryText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSummaryTextTruncates(t *testing.T) {
	text := strings.Repeat("word ", 100)
	got := SummaryText(context.Background(), ViewtypeText, text, Params{}, 20, stock.NewTable())
	if !strings.HasSuffix(got, Ellipsis) {
		t.Errorf("summary %q should end with ellipsis", got)
	}
	if n := len([]rune(got)); n > 20+len(Ellipsis) {
		t.Errorf("summary has %d chars", n)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		approx int
		want   string
	}{
		{"hello world", 0, "hello world"},
		{"hello world", 6, "hello world"},
		{"hello wonderful world", 12, "hello [...]"},
		{"abcdefghijklmnop", 4, "abcd[...]"},
		{"äöüäöüäöüäöüäöü", 3, "äöü[...]"},
		{"line\nbreak and more text", 8, "line\n[...]"},
		{"this is a longer sentence", 10, "this is a [...]"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.approx); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.approx, got, tt.want)
		}
	}
}

type fixedStock map[stock.ID]string

func (f fixedStock) Str(_ context.Context, id stock.ID) string {
	return f[id]
}

func TestFillLot(t *testing.T) {
	ctx := context.Background()
	tr := fixedStock{stock.Draft: "DRAFT", stock.SelfMsg: "ME"}
	bob := &ContactInfo{ID: 20, AuthName: "Bob Builder", Addr: "bob@example.org"}
	group := ChatInfo{ID: 30, Type: ChattypeGroup}

	tests := []struct {
		name    string
		msg     *Message
		chat    ChatInfo
		contact *ContactInfo
		text1   string
		meaning Meaning
	}{
		{"draft", &Message{State: OutDraft, FromID: ContactIDSelf}, group, nil, "DRAFT", MeaningText1Draft},
		{"self", &Message{State: OutDelivered, FromID: ContactIDSelf}, group, nil, "ME", MeaningText1Self},
		{"self talk", &Message{State: OutDelivered, FromID: ContactIDSelf}, ChatInfo{ID: 31, Type: ChattypeSingle, SelfTalk: true}, nil, "", MeaningNone},
		{"group member", &Message{State: InFresh, FromID: 20}, group, bob, "Bob", MeaningText1Username},
		{"group unknown contact", &Message{State: InFresh, FromID: 20}, group, nil, "", MeaningNone},
		{"deaddrop group", &Message{State: InFresh, FromID: 20}, ChatInfo{ID: ChatIDDeaddrop, Type: ChattypeGroup}, bob, "Bob Builder", MeaningText1Username},
		{"single chat", &Message{State: InFresh, FromID: 20}, ChatInfo{ID: 32, Type: ChattypeSingle}, bob, "", MeaningNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.msg.Viewtype = ViewtypeText
			tt.msg.Text = "hi"
			tt.msg.TimestampSort = 77
			lot := FillLot(ctx, tt.msg, tt.chat, tt.contact, tr)
			if lot.Text1 != tt.text1 || lot.Text1Meaning != tt.meaning {
				t.Errorf("text1 = (%q, %d), want (%q, %d)", lot.Text1, lot.Text1Meaning, tt.text1, tt.meaning)
			}
			if lot.Text2 != "hi" {
				t.Errorf("text2 = %q", lot.Text2)
			}
			if lot.Timestamp != 77 || lot.State != tt.msg.State {
				t.Errorf("lot = %+v", lot)
			}
		})
	}

	info := &Message{State: InFresh, FromID: 20, Viewtype: ViewtypeText}
	info.Params.SetCmd(CmdGroupNameChanged)
	if lot := FillLot(ctx, info, group, bob, tr); lot.Text1Meaning != MeaningNone {
		t.Errorf("info message should have no text1, got %+v", lot)
	}
}
