package message

import (
	"path/filepath"
	"strings"
)

// Viewtype is the content kind of a message.
type Viewtype int

const (
	ViewtypeUnknown Viewtype = 0
	ViewtypeText    Viewtype = 10
	ViewtypeImage   Viewtype = 20
	ViewtypeGif     Viewtype = 21
	ViewtypeSticker Viewtype = 23
	ViewtypeAudio   Viewtype = 40
	ViewtypeVoice   Viewtype = 41
	ViewtypeVideo   Viewtype = 50
	ViewtypeFile    Viewtype = 60
)

var viewtypeNames = map[Viewtype]string{
	ViewtypeUnknown: "Unknown",
	ViewtypeText:    "Text",
	ViewtypeImage:   "Image",
	ViewtypeGif:     "Gif",
	ViewtypeSticker: "Sticker",
	ViewtypeAudio:   "Audio",
	ViewtypeVoice:   "Voice",
	ViewtypeVideo:   "Video",
	ViewtypeFile:    "File",
}

// ViewtypeFromDB maps a stored integer to a Viewtype. Unknown values map to
// ViewtypeUnknown.
func ViewtypeFromDB(v int64) Viewtype {
	t := Viewtype(v)
	if _, ok := viewtypeNames[t]; !ok {
		return ViewtypeUnknown
	}
	return t
}

// HasFile reports whether messages of this kind carry an attachment.
func (v Viewtype) HasFile() bool {
	switch v {
	case ViewtypeImage, ViewtypeGif, ViewtypeSticker, ViewtypeAudio,
		ViewtypeVoice, ViewtypeVideo, ViewtypeFile:
		return true
	}
	return false
}

func (v Viewtype) String() string {
	if n, ok := viewtypeNames[v]; ok {
		return n
	}
	return "Unknown"
}

type suffixInfo struct {
	viewtype Viewtype
	mime     string
}

var suffixes = map[string]suffixInfo{
	"mp3":   {ViewtypeAudio, "audio/mpeg"},
	"aac":   {ViewtypeAudio, "audio/aac"},
	"mp4":   {ViewtypeVideo, "video/mp4"},
	"webm":  {ViewtypeVideo, "video/webm"},
	"jpg":   {ViewtypeImage, "image/jpeg"},
	"jpeg":  {ViewtypeImage, "image/jpeg"},
	"jpe":   {ViewtypeImage, "image/jpeg"},
	"png":   {ViewtypeImage, "image/png"},
	"webp":  {ViewtypeImage, "image/webp"},
	"gif":   {ViewtypeGif, "image/gif"},
	"vcf":   {ViewtypeFile, "text/vcard"},
	"vcard": {ViewtypeFile, "text/vcard"},
}

// GuessFromSuffix derives the content kind and mime type from a file extension.
func GuessFromSuffix(path string) (Viewtype, string, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	info, ok := suffixes[ext]
	if !ok {
		return ViewtypeUnknown, "", false
	}
	return info.viewtype, info.mime, true
}

// Chattype is the kind of a chat.
type Chattype int

const (
	ChattypeUndefined     Chattype = 0
	ChattypeSingle        Chattype = 100
	ChattypeGroup         Chattype = 120
	ChattypeVerifiedGroup Chattype = 130
)

// ChattypeFromDB maps a stored integer to a Chattype.
func ChattypeFromDB(v int64) Chattype {
	switch t := Chattype(v); t {
	case ChattypeSingle, ChattypeGroup, ChattypeVerifiedGroup:
		return t
	}
	return ChattypeUndefined
}

// IsGroup reports whether the chat has more than one peer.
func (t Chattype) IsGroup() bool {
	return t == ChattypeGroup || t == ChattypeVerifiedGroup
}

// Blocked is the blocking state of a chat.
type Blocked int

const (
	BlockedNot      Blocked = 0
	BlockedManually Blocked = 1
	BlockedDeaddrop Blocked = 2
)

// BlockedFromDB maps a stored integer to a Blocked value.
func BlockedFromDB(v int64) Blocked {
	switch b := Blocked(v); b {
	case BlockedManually, BlockedDeaddrop:
		return b
	}
	return BlockedNot
}

// MessengerMessage tells whether a message came from a messenger client or
// from plain mail.
type MessengerMessage int

const (
	MessengerNo    MessengerMessage = 0
	MessengerYes   MessengerMessage = 1
	MessengerReply MessengerMessage = 2
)

// MessengerFromDB maps a stored integer to a MessengerMessage.
func MessengerFromDB(v int64) MessengerMessage {
	switch m := MessengerMessage(v); m {
	case MessengerYes, MessengerReply:
		return m
	}
	return MessengerNo
}
