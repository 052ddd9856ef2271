package message

import (
	"sort"
	"strconv"
	"strings"
)

// Param is a single-character parameter key.
type Param byte

const (
	ParamFile          Param = 'f'
	ParamWidth         Param = 'w'
	ParamHeight        Param = 'h'
	ParamDuration      Param = 'd'
	ParamMimeType      Param = 'm'
	ParamError         Param = 'L'
	ParamGuaranteeE2ee Param = 'c'
	ParamErroneousE2ee Param = 'e'
	ParamCmd           Param = 'S'
	ParamForwarded     Param = 'a'
	ParamSetLatitude   Param = 'l'
	ParamSetLongitude  Param = 'n'
)

var knownParams = map[Param]bool{
	ParamFile:          true,
	ParamWidth:         true,
	ParamHeight:        true,
	ParamDuration:      true,
	ParamMimeType:      true,
	ParamError:         true,
	ParamGuaranteeE2ee: true,
	ParamErroneousE2ee: true,
	ParamCmd:           true,
	ParamForwarded:     true,
	ParamSetLatitude:   true,
	ParamSetLongitude:  true,
}

// SystemMessage is the command carried by info and protocol messages.
type SystemMessage int

const (
	CmdUnknown                  SystemMessage = 0
	CmdGroupNameChanged         SystemMessage = 2
	CmdGroupImageChanged        SystemMessage = 3
	CmdMemberAddedToGroup       SystemMessage = 4
	CmdMemberRemovedFromGroup   SystemMessage = 5
	CmdAutocryptSetupMessage    SystemMessage = 6
	CmdSecurejoinMessage        SystemMessage = 7
	CmdLocationStreamingEnabled SystemMessage = 8
	CmdLocationOnly             SystemMessage = 9
)

func systemMessageFromInt(v int) SystemMessage {
	switch s := SystemMessage(v); s {
	case CmdGroupNameChanged, CmdGroupImageChanged, CmdMemberAddedToGroup,
		CmdMemberRemovedFromGroup, CmdAutocryptSetupMessage, CmdSecurejoinMessage,
		CmdLocationStreamingEnabled, CmdLocationOnly:
		return s
	}
	return CmdUnknown
}

// Params is the per-message attribute map. It is stored as one text column
// of "k=v" lines. Keys outside the known set survive a parse/serialise
// round trip untouched.
type Params struct {
	known map[Param]string
	raw   map[byte]string
}

// ParseParams decodes the stored form. Lines without "=" or with a key
// longer than one byte are dropped.
func ParseParams(s string) Params {
	p := Params{}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if len(k) != 1 {
			continue
		}
		key := k[0]
		if knownParams[Param(key)] {
			p.setKnown(Param(key), v)
			continue
		}
		if p.raw == nil {
			p.raw = make(map[byte]string)
		}
		p.raw[key] = v
	}
	return p
}

func (p *Params) setKnown(k Param, v string) {
	if p.known == nil {
		p.known = make(map[Param]string)
	}
	p.known[k] = v
}

// String encodes the params, sorted by key.
func (p Params) String() string {
	all := make(map[byte]string, len(p.known)+len(p.raw))
	for k, v := range p.raw {
		all[k] = v
	}
	for k, v := range p.known {
		all[byte(k)] = v
	}
	keys := make([]int, 0, len(all))
	for k := range all {
		keys = append(keys, int(k))
	}
	sort.Ints(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteByte(byte(k))
		b.WriteByte('=')
		b.WriteString(all[byte(k)])
	}
	return b.String()
}

// Len counts known and preserved keys.
func (p Params) Len() int {
	return len(p.known) + len(p.raw)
}

// Get returns the value for a known key.
func (p Params) Get(k Param) (string, bool) {
	v, ok := p.known[k]
	return v, ok
}

// Exists reports whether k is set.
func (p Params) Exists(k Param) bool {
	_, ok := p.known[k]
	return ok
}

// Set stores v under k.
func (p *Params) Set(k Param, v string) {
	if !knownParams[k] {
		if p.raw == nil {
			p.raw = make(map[byte]string)
		}
		p.raw[byte(k)] = v
		return
	}
	p.setKnown(k, v)
}

// Remove deletes k.
func (p *Params) Remove(k Param) {
	delete(p.known, k)
	delete(p.raw, byte(k))
}

// GetInt returns the integer value for k, false when missing or malformed.
func (p Params) GetInt(k Param) (int, bool) {
	v, ok := p.known[k]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// SetInt stores an integer value.
func (p *Params) SetInt(k Param, v int) {
	p.Set(k, strconv.Itoa(v))
}

// GetFloat returns the float value for k, false when missing or malformed.
func (p Params) GetFloat(k Param) (float64, bool) {
	v, ok := p.known[k]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// SetFloat stores a float value.
func (p *Params) SetFloat(k Param, v float64) {
	p.Set(k, strconv.FormatFloat(v, 'f', -1, 64))
}

// Cmd returns the system command, CmdUnknown when unset.
func (p Params) Cmd() SystemMessage {
	n, ok := p.GetInt(ParamCmd)
	if !ok {
		return CmdUnknown
	}
	return systemMessageFromInt(n)
}

// SetCmd stores the system command.
func (p *Params) SetCmd(cmd SystemMessage) {
	p.SetInt(ParamCmd, int(cmd))
}

// Clone returns an independent copy.
func (p Params) Clone() Params {
	c := Params{}
	for k, v := range p.known {
		c.setKnown(k, v)
	}
	if len(p.raw) > 0 {
		c.raw = make(map[byte]string, len(p.raw))
		for k, v := range p.raw {
			c.raw[k] = v
		}
	}
	return c
}
