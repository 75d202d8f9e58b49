// Package midi decodes raw wire frames into structured messages.
//
// The decoder handles the channel-voice subset with status top nibbles
// 0x80, 0x90, 0xB0 and 0xC0. Everything else on the wire is rejected
// silently; rejection is routine, not a fault.
package midi

import (
	"fmt"
	"time"
)

// Kind identifies one of the supported message variants.
type Kind string

const (
	KindNoteOn        Kind = "note_on"
	KindNoteOff       Kind = "note_off"
	KindControlChange Kind = "control_change"
	KindProgramChange Kind = "program_change"
)

// Message is the closed set of structured messages produced by Decode.
// Each variant carries only the fields its wire family defines; access
// variant fields through a type switch. Values are immutable once
// constructed and have no identity beyond their content.
type Message interface {
	Kind() Kind

	sealed()
}

// NoteOn reports a key press with a non-zero velocity.
type NoteOn struct {
	Channel  uint8 // 1-16
	Note     uint8 // 0-127
	Velocity uint8 // 0-127
	Time     time.Time
}

func (NoteOn) Kind() Kind { return KindNoteOn }
func (NoteOn) sealed()    {}

func (m NoteOn) String() string {
	return fmt.Sprintf("note_on ch=%d note=%d vel=%d", m.Channel, m.Note, m.Velocity)
}

// NoteOff reports a key release. Frames decoded from the zero-velocity
// NoteOn convention land here when the decoder's reclassification flag
// is set.
type NoteOff struct {
	Channel  uint8
	Note     uint8
	Velocity uint8
	Time     time.Time
}

func (NoteOff) Kind() Kind { return KindNoteOff }
func (NoteOff) sealed()    {}

func (m NoteOff) String() string {
	return fmt.Sprintf("note_off ch=%d note=%d vel=%d", m.Channel, m.Note, m.Velocity)
}

// ControlChange reports a controller (knob, fader, pedal) movement.
type ControlChange struct {
	Channel    uint8
	Controller uint8 // 0-127
	Value      uint8 // 0-127
	Time       time.Time
}

func (ControlChange) Kind() Kind { return KindControlChange }
func (ControlChange) sealed()    {}

func (m ControlChange) String() string {
	return fmt.Sprintf("control_change ch=%d cc=%d val=%d", m.Channel, m.Controller, m.Value)
}

// ProgramChange reports a patch selection. It carries a value only.
type ProgramChange struct {
	Channel uint8
	Value   uint8 // 0-127
	Time    time.Time
}

func (ProgramChange) Kind() Kind { return KindProgramChange }
func (ProgramChange) sealed()    {}

func (m ProgramChange) String() string {
	return fmt.Sprintf("program_change ch=%d val=%d", m.Channel, m.Value)
}

// ChannelOf returns the channel common to every variant.
func ChannelOf(m Message) uint8 {
	switch v := m.(type) {
	case NoteOn:
		return v.Channel
	case NoteOff:
		return v.Channel
	case ControlChange:
		return v.Channel
	case ProgramChange:
		return v.Channel
	default:
		return 0
	}
}

// TimeOf returns the capture timestamp common to every variant.
func TimeOf(m Message) time.Time {
	switch v := m.(type) {
	case NoteOn:
		return v.Time
	case NoteOff:
		return v.Time
	case ControlChange:
		return v.Time
	case ProgramChange:
		return v.Time
	default:
		return time.Time{}
	}
}
