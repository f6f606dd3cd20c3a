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
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Message templates for the four philosopher events. Each takes the
// philosopher id first; the fork events also take the fork id.
const (
	TemplateThinking = "philosopher %d: becomes thinking"
	TemplatePickUp   = "philosopher %d: picks up a fork %d"
	TemplateEating   = "philosopher %d: becomes eating"
	TemplateRelease  = "philosopher %d: releases a fork %d"
)

// EventsPerMeal is the number of records one full meal cycle produces:
// think, two pick-ups, eat, two releases.
const EventsPerMeal = 6

// ErrMalformedLine is returned by ParseLine for lines outside the log format.
var ErrMalformedLine = errors.New("eventlog: malformed line")

// Kind identifies a philosopher event.
type Kind int

const (
	KindThinking Kind = iota + 1
	KindPickUp
	KindEating
	KindRelease
)

// String returns the event description without the fork number.
func (k Kind) String() string {
	switch k {
	case KindThinking:
		return "becomes thinking"
	case KindPickUp:
		return "picks up a fork"
	case KindEating:
		return "becomes eating"
	case KindRelease:
		return "releases a fork"
	default:
		return "unknown"
	}
}

// Event is one parsed log line.
type Event struct {
	Seq         uint64
	Philosopher int
	Kind        Kind
	// Fork is set for KindPickUp and KindRelease, zero otherwise.
	Fork int
}

// String formats the event exactly as it appears in the log, without the
// trailing newline.
func (e Event) String() string {
	switch e.Kind {
	case KindPickUp, KindRelease:
		return fmt.Sprintf("%d: philosopher %d: %s %d", e.Seq, e.Philosopher, e.Kind, e.Fork)
	default:
		return fmt.Sprintf("%d: philosopher %d: %s", e.Seq, e.Philosopher, e.Kind)
	}
}

// ParseLine parses "<seq>: philosopher <id>: <event>".
func ParseLine(line string) (Event, error) {
	line = strings.TrimRight(line, "\r\n")
	bad := func(reason string) (Event, error) {
		return Event{}, fmt.Errorf("%w: %s: %q", ErrMalformedLine, reason, line)
	}

	seqRaw, rest, ok := strings.Cut(line, ": ")
	if !ok {
		return bad("missing sequence number")
	}
	seq, err := strconv.ParseUint(seqRaw, 10, 64)
	if err != nil || seq == 0 {
		return bad("invalid sequence number")
	}

	who, desc, ok := strings.Cut(rest, ": ")
	if !ok {
		return bad("missing event description")
	}
	idRaw, ok := strings.CutPrefix(who, "philosopher ")
	if !ok {
		return bad("missing philosopher")
	}
	id, err := strconv.Atoi(idRaw)
	if err != nil || id <= 0 {
		return bad("invalid philosopher id")
	}

	ev := Event{Seq: seq, Philosopher: id}
	switch {
	case desc == KindThinking.String():
		ev.Kind = KindThinking
	case desc == KindEating.String():
		ev.Kind = KindEating
	case strings.HasPrefix(desc, KindPickUp.String()+" "):
		ev.Kind = KindPickUp
		ev.Fork, err = strconv.Atoi(strings.TrimPrefix(desc, KindPickUp.String()+" "))
	case strings.HasPrefix(desc, KindRelease.String()+" "):
		ev.Kind = KindRelease
		ev.Fork, err = strconv.Atoi(strings.TrimPrefix(desc, KindRelease.String()+" "))
	default:
		return bad("unknown event")
	}
	if err != nil || (ev.Kind == KindPickUp || ev.Kind == KindRelease) && ev.Fork <= 0 {
		return bad("invalid fork id")
	}
	return ev, nil
}

// Read parses every line of r. Parsing stops at the first malformed line.
func Read(r io.Reader) ([]Event, error) {
	var events []Event
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		ev, err := ParseLine(scanner.Text())
		if err != nil {
			return events, fmt.Errorf("line %d: %w", lineNo, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("read event log: %w", err)
	}
	return events, nil
}

// ReadFile parses the event log at path.
func ReadFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()
	return Read(f)
}
