// Package stock resolves localized UI strings by a fixed identifier set.
package stock

import (
	"context"
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"
)

// ID identifies a stock string.
type ID int

const (
	SelfMsg           ID = 2
	Draft             ID = 3
	VoiceMessage      ID = 7
	Image             ID = 9
	Video             ID = 10
	Audio             ID = 11
	File              ID = 12
	Gif               ID = 23
	AcSetupMsgSubject ID = 42
	Location          ID = 66
	Sticker           ID = 67
)

var names = map[ID]string{
	SelfMsg:           "self_msg",
	Draft:             "draft",
	VoiceMessage:      "voice_message",
	Image:             "image",
	Video:             "video",
	Audio:             "audio",
	File:              "file",
	Gif:               "gif",
	AcSetupMsgSubject: "ac_setup_msg_subject",
	Location:          "location",
	Sticker:           "sticker",
}

var defaults = map[ID]string{
	SelfMsg:           "Me",
	Draft:             "Draft",
	VoiceMessage:      "Voice message",
	Image:             "Image",
	Video:             "Video",
	Audio:             "Audio",
	File:              "File",
	Gif:               "GIF",
	AcSetupMsgSubject: "Autocrypt Setup Message",
	Location:          "Location",
	Sticker:           "Sticker",
}

func (id ID) String() string {
	if n, ok := names[id]; ok {
		return n
	}
	return fmt.Sprintf("stock#%d", int(id))
}

// Translator resolves stock strings.
type Translator interface {
	Str(ctx context.Context, id ID) string
}

// Table is a Translator backed by the English defaults plus overrides.
type Table struct {
	mu        sync.RWMutex
	overrides map[ID]string
}

// NewTable returns a table that serves the built-in English strings.
func NewTable() *Table {
	return &Table{overrides: make(map[ID]string)}
}

// Str returns the override for id if set, else the default.
func (t *Table) Str(_ context.Context, id ID) string {
	t.mu.RLock()
	s, ok := t.overrides[id]
	t.mu.RUnlock()
	if ok {
		return s
	}
	if s, ok := defaults[id]; ok {
		return s
	}
	return "ErrStr:" + id.String()
}

// Set overrides a single string.
func (t *Table) Set(id ID, s string) {
	t.mu.Lock()
	t.overrides[id] = s
	t.mu.Unlock()
}

// LoadFile reads overrides from a TOML file of `name = "text"` pairs.
// Unknown names are reported as an error; the table is left unchanged then.
func (t *Table) LoadFile(path string) error {
	var raw map[string]string
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return fmt.Errorf("decode stock strings: %w", err)
	}
	byName := make(map[string]ID, len(names))
	for id, n := range names {
		byName[n] = id
	}
	parsed := make(map[ID]string, len(raw))
	for name, s := range raw {
		id, ok := byName[name]
		if !ok {
			return fmt.Errorf("unknown stock string %q", name)
		}
		parsed[id] = s
	}

	t.mu.Lock()
	for id, s := range parsed {
		t.overrides[id] = s
	}
	t.mu.Unlock()
	return nil
}
