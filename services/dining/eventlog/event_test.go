// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package eventlog

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want Event
	}{
		{"1: philosopher 3: becomes thinking", Event{Seq: 1, Philosopher: 3, Kind: KindThinking}},
		{"2: philosopher 3: picks up a fork 3", Event{Seq: 2, Philosopher: 3, Kind: KindPickUp, Fork: 3}},
		{"17: philosopher 5: becomes eating\n", Event{Seq: 17, Philosopher: 5, Kind: KindEating}},
		{"30: philosopher 5: releases a fork 1", Event{Seq: 30, Philosopher: 5, Kind: KindRelease, Fork: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if err != nil {
				t.Fatalf("ParseLine() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseLine() = %+v, want %+v", got, tt.want)
			}
			if got.String() != strings.TrimSpace(tt.line) {
				t.Errorf("String() = %q, want %q", got.String(), strings.TrimSpace(tt.line))
			}
		})
	}
}

func TestParseLine_Malformed(t *testing.T) {
	lines := []string{
		"",
		"philosopher 1: becomes thinking",
		"0: philosopher 1: becomes thinking",
		"x: philosopher 1: becomes thinking",
		"1: philosopher: becomes thinking",
		"1: philosopher 0: becomes thinking",
		"1: diner 1: becomes thinking",
		"1: philosopher 1: becomes hungry",
		"1: philosopher 1: picks up a fork",
		"1: philosopher 1: picks up a fork zero",
		"1: philosopher 1: releases a fork 0",
	}

	for _, line := range lines {
		if _, err := ParseLine(line); !errors.Is(err, ErrMalformedLine) {
			t.Errorf("ParseLine(%q) error = %v, want ErrMalformedLine", line, err)
		}
	}
}

func TestTemplatesMatchParser(t *testing.T) {
	lines := []string{
		"1: " + fmt.Sprintf(TemplateThinking, 2),
		"2: " + fmt.Sprintf(TemplatePickUp, 2, 3),
		"3: " + fmt.Sprintf(TemplateEating, 2),
		"4: " + fmt.Sprintf(TemplateRelease, 2, 3),
	}
	kinds := []Kind{KindThinking, KindPickUp, KindEating, KindRelease}

	for i, line := range lines {
		ev, err := ParseLine(line)
		if err != nil {
			t.Fatalf("ParseLine(%q) error = %v", line, err)
		}
		if ev.Kind != kinds[i] || ev.Philosopher != 2 {
			t.Errorf("ParseLine(%q) = %+v", line, ev)
		}
	}
}

func TestRead_SkipsBlankLinesAndReportsLine(t *testing.T) {
	input := "1: philosopher 1: becomes thinking\n\n2: philosopher 1: picks up a fork 1\nbogus\n"

	events, err := Read(strings.NewReader(input))
	if !errors.Is(err, ErrMalformedLine) {
		t.Fatalf("Read() error = %v, want ErrMalformedLine", err)
	}
	if !strings.Contains(err.Error(), "line 4") {
		t.Errorf("error %q does not name line 4", err)
	}
	if len(events) != 2 {
		t.Errorf("Read() returned %d events before the bad line, want 2", len(events))
	}
}

func TestKind_String(t *testing.T) {
	if got := Kind(0).String(); got != "unknown" {
		t.Errorf("Kind(0).String() = %q", got)
	}
}
