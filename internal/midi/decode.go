package midi

import "time"

// Status top nibbles of the handled wire families.
const (
	statusNoteOff       byte = 0x80
	statusNoteOn        byte = 0x90
	statusControlChange byte = 0xB0
	statusProgramChange byte = 0xC0
)

const (
	maxDataByte byte = 0x7F

	minChannel uint8 = 1
	maxChannel uint8 = 16
)

// Decoder classifies raw frames. The zero value uses strict NoteOn
// semantics and the system clock; NewDecoder enables the zero-velocity
// reclassification most hardware expects.
type Decoder struct {
	// NoteOffOnZeroVelocity reclassifies NoteOn frames carrying velocity
	// zero as NoteOff (the wire convention for "note released"). Disable
	// for strict wire fidelity.
	NoteOffOnZeroVelocity bool

	// Now stamps accepted messages. Nil means time.Now.
	Now func() time.Time
}

func NewDecoder() Decoder {
	return Decoder{NoteOffOnZeroVelocity: true}
}

// Decode classifies one frame. ok is false for every frame the decoder
// does not accept: short frames, wrong data-byte counts, out-of-range
// values, and unsupported status families. Decode never panics on
// malformed input and rejection is never an error.
func (d Decoder) Decode(frame []byte) (msg Message, ok bool) {
	if len(frame) < 2 {
		return nil, false
	}

	status := frame[0]
	data := frame[1:]

	// The wire nibble is zero-based; the data model uses 1-16. The bound
	// is checked rather than assumed so a direct caller cannot smuggle an
	// out-of-range channel through.
	channel := status&0x0F + 1
	if channel < minChannel || channel > maxChannel {
		return nil, false
	}

	switch status & 0xF0 {
	case statusNoteOn:
		note, velocity, ok := twoDataBytes(data)
		if !ok {
			return nil, false
		}
		if velocity == 0 && d.NoteOffOnZeroVelocity {
			return NoteOff{Channel: channel, Note: note, Velocity: 0, Time: d.now()}, true
		}

		return NoteOn{Channel: channel, Note: note, Velocity: velocity, Time: d.now()}, true

	case statusNoteOff:
		note, velocity, ok := twoDataBytes(data)
		if !ok {
			return nil, false
		}

		return NoteOff{Channel: channel, Note: note, Velocity: velocity, Time: d.now()}, true

	case statusControlChange:
		controller, value, ok := twoDataBytes(data)
		if !ok {
			return nil, false
		}

		return ControlChange{Channel: channel, Controller: controller, Value: value, Time: d.now()}, true

	case statusProgramChange:
		if len(data) != 1 || data[0] > maxDataByte {
			return nil, false
		}

		return ProgramChange{Channel: channel, Value: data[0], Time: d.now()}, true

	default:
		// Pressure, pitch bend and system families are out of the
		// handled subset.
		return nil, false
	}
}

func (d Decoder) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}

	return time.Now()
}

func twoDataBytes(data []byte) (a, b byte, ok bool) {
	if len(data) != 2 || data[0] > maxDataByte || data[1] > maxDataByte {
		return 0, 0, false
	}

	return data[0], data[1], true
}
