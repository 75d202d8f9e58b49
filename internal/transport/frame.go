package transport

// DIN-MIDI serial links carry no length prefix: a byte with the top bit
// set starts a message, the status family fixes the data-byte count, and
// running status lets consecutive messages of the same family omit the
// status byte entirely. The Chunker resolves all of that so downstream
// consumers always see complete status-prefixed frames.

const (
	sysexStart byte = 0xF0
	sysexEnd   byte = 0xF7
)

// Chunker reassembles complete wire frames from an arbitrary stream of
// serial bytes. The zero value is ready to use; state carries across
// Push calls so frames may be split at any byte boundary.
type Chunker struct {
	status byte   // active (running) status, 0 when unsynced
	want   int    // data bytes the active family needs
	data   []byte // data bytes collected so far
	skip   int    // system-common data bytes left to discard
	sysex  bool   // inside a SysEx block
}

// Push consumes buf and calls emit once per completed frame. Emitted
// slices are freshly allocated; emit may retain them.
//
// Bytes that cannot belong to a handled frame are dropped: SysEx
// payloads, system-common messages and their data, and data bytes
// arriving before any status byte (the stream resyncs on the next
// status).
func (c *Chunker) Push(buf []byte, emit func(frame []byte)) {
	for _, b := range buf {
		switch {
		case b >= 0xF8:
			// System real-time bytes may interleave anywhere, including
			// between the data bytes of another message. Skipped without
			// touching reassembly state.

		case b >= sysexStart:
			// System-common territory. Cancels running status.
			c.status = 0
			c.data = c.data[:0]
			c.sysex = b == sysexStart
			c.skip = 0
			if b != sysexStart && b != sysexEnd {
				c.skip = systemDataLen(b)
			}

		case b >= 0x80:
			c.status = b
			c.want = familyDataLen(b)
			c.data = c.data[:0]
			c.sysex = false
			c.skip = 0

		case c.sysex:
			// SysEx payload.

		case c.skip > 0:
			c.skip--

		case c.status == 0:
			// Stray data byte before any status. Dropped; the stream
			// resyncs at the next status byte.

		default:
			c.data = append(c.data, b)
			if len(c.data) == c.want {
				frame := make([]byte, 0, 1+len(c.data))
				frame = append(frame, c.status)
				frame = append(frame, c.data...)
				emit(frame)
				// Status stays armed: running status applies until the
				// next status byte replaces it.
				c.data = c.data[:0]
			}
		}
	}
}

func familyDataLen(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	default:
		return 2
	}
}

func systemDataLen(status byte) int {
	switch status {
	case 0xF1, 0xF3:
		return 1
	case 0xF2:
		return 2
	default:
		return 0
	}
}
