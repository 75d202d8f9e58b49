package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/skobkin/midimon/internal/midi"
	"github.com/skobkin/midimon/internal/transport"
)

// mididump classifies hex-encoded MIDI bytes from the command line or
// stdin. By default each input line is treated as a raw wire stream and
// run through the serial framer, so running status and interleaved
// real-time bytes behave exactly like they do on a DIN cable.

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mididump: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	framed := flag.Bool("framed", false, "treat every input as one complete status-prefixed frame, skipping the framer")
	keepZeroVelocity := flag.Bool("keep-zero-velocity", false, "classify zero-velocity NoteOn as NoteOn instead of NoteOff")
	flag.Parse()

	decoder := midi.NewDecoder()
	decoder.NoteOffOnZeroVelocity = !*keepZeroVelocity

	inputs := flag.Args()
	if len(inputs) > 0 {
		for _, input := range inputs {
			if err := dump(decoder, *framed, input); err != nil {
				return err
			}
		}
		return nil
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := dump(decoder, *framed, line); err != nil {
			fmt.Fprintf(os.Stderr, "mididump: %v\n", err)
		}
	}

	return scanner.Err()
}

func dump(decoder midi.Decoder, framed bool, input string) error {
	lines, err := dumpLines(decoder, framed, input)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Println(line)
	}

	return nil
}

// dumpLines classifies one hex input and returns the printable result,
// one line per extracted frame.
func dumpLines(decoder midi.Decoder, framed bool, input string) ([]string, error) {
	raw, err := parseHex(input)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var frames [][]byte
	if framed {
		frames = [][]byte{raw}
	} else {
		var chunker transport.Chunker
		chunker.Push(raw, func(frame []byte) {
			frames = append(frames, frame)
		})
	}

	out := make([]string, 0, len(frames))
	for _, frame := range frames {
		if msg, ok := decoder.Decode(frame); ok {
			out = append(out, fmt.Sprintf("% X -> %s", frame, msg))
		} else {
			out = append(out, fmt.Sprintf("% X -> rejected", frame))
		}
	}

	return out, nil
}

func parseHex(input string) ([]byte, error) {
	compact := strings.Join(strings.Fields(input), "")
	raw, err := hex.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("parse hex %q: %w", input, err)
	}

	return raw, nil
}
