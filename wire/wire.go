// Package wire defines the payload contract shared by the bridge and the
// penrack unit: the machine operating-mode set, the single-level JSON object
// exchanged over the link, and the console report line formats.
//
// Payloads are UTF-8 JSON objects with the recognized keys "mode", "gcode"
// and "color". Unknown keys are ignored so newer peers can add fields
// without breaking older ones. There is no envelope or length prefix;
// framing comes from fixed-size poll reads on the link and newline
// termination on the local channel.
package wire

import (
	"encoding/json"
	"strings"

	"plotlink-go/errcode"
)

// Size bounds.
const (
	MaxTransfer = 32  // single I2C transfer to/from the unit
	MaxLine     = 256 // local console line buffer
	MaxGcode    = 255 // forwarded G-code is truncated to this
)

// Mode is the machine operating mode. The bridge and the unit each hold
// their own copy, reconciled only through message exchange.
type Mode uint8

const (
	ModeNone Mode = iota
	ModeSpindle
	ModeLaser
	ModeDrawing
)

var modeNames = [...]string{"none", "spindle", "laser", "drawing"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return modeNames[ModeNone]
}

// ParseMode resolves a wire mode value. A value matches when a canonical
// name is a prefix of it, so versioned suffixes ("laser-fiber") still
// resolve to their base mode.
func ParseMode(s string) (Mode, bool) {
	for i, name := range modeNames {
		if strings.HasPrefix(s, name) {
			return Mode(i), true
		}
	}
	return ModeNone, false
}

// Message is the decoded form of one wire payload. Absent keys decode to
// the empty string.
type Message struct {
	Mode  string `json:"mode,omitempty"`
	Gcode string `json:"gcode,omitempty"`
	Color string `json:"color,omitempty"`
}

// Decode parses one payload. Malformed JSON classifies as errcode.Parse.
func Decode(p []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(p, &m); err != nil {
		return Message{}, &errcode.E{C: errcode.Parse, Op: "wire.Decode", Err: err}
	}
	return m, nil
}

// EncodeMode builds the {"mode":...} payload the unit exposes to polls.
func EncodeMode(m Mode) []byte {
	b, _ := json.Marshal(Message{Mode: m.String()})
	return b
}

// EncodeColor builds the {"color":...} payload that targets the carousel.
func EncodeColor(name string) []byte {
	b, _ := json.Marshal(Message{Color: name})
	return b
}

// Console report line formats. The console sink appends CRLF.
func ReportJSON(payload []byte) string { return "[JSON:" + string(payload) + "]" }
func ReportMode(m Mode) string         { return "[MODE:" + m.String() + "]" }
