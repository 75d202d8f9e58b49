package main

import (
	"reflect"
	"testing"

	"github.com/skobkin/midimon/internal/midi"
)

func TestDumpLinesClassifiesStream(t *testing.T) {
	decoder := midi.NewDecoder()

	tests := []struct {
		name   string
		framed bool
		input  string
		want   []string
	}{
		{
			name:  "single note on",
			input: "903C64",
			want:  []string{"90 3C 64 -> note_on ch=1 note=60 vel=100"},
		},
		{
			name:  "spaced input",
			input: "90 3c 64",
			want:  []string{"90 3C 64 -> note_on ch=1 note=60 vel=100"},
		},
		{
			name:  "running status with zero velocity",
			input: "903C643E00",
			want: []string{
				"90 3C 64 -> note_on ch=1 note=60 vel=100",
				"90 3E 00 -> note_off ch=1 note=62 vel=0",
			},
		},
		{
			name:  "realtime byte interleaved",
			input: "90F83C64",
			want:  []string{"90 3C 64 -> note_on ch=1 note=60 vel=100"},
		},
		{
			name:  "unsupported family",
			input: "E0007F",
			want:  []string{"E0 00 7F -> rejected"},
		},
		{
			name:   "framed skips the framer",
			framed: true,
			input:  "C005",
			want:   []string{"C0 05 -> program_change ch=1 val=5"},
		},
	}

	for _, tc := range tests {
		got, err := dumpLines(decoder, tc.framed, tc.input)
		if err != nil {
			t.Fatalf("%s: dump: %v", tc.name, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestDumpLinesKeepZeroVelocity(t *testing.T) {
	decoder := midi.NewDecoder()
	decoder.NoteOffOnZeroVelocity = false

	got, err := dumpLines(decoder, true, "903C00")
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	want := []string{"90 3C 00 -> note_on ch=1 note=60 vel=0"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDumpLinesRejectsBadHex(t *testing.T) {
	decoder := midi.NewDecoder()

	if _, err := dumpLines(decoder, false, "90 3C 6"); err == nil {
		t.Fatalf("expected odd-length hex to fail")
	}
	if _, err := dumpLines(decoder, false, "zz"); err == nil {
		t.Fatalf("expected invalid hex to fail")
	}
}
