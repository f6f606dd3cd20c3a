// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for the dining CLI.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // Deep teal - borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // Slate - muted text, borders

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style

	Box      lipgloss.Style
	ErrorBox lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle: lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:     lipgloss.NewStyle().Bold(true),
	Muted:    lipgloss.NewStyle().Foreground(ColorSlate),
	Success:  lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:  lipgloss.NewStyle().Foreground(ColorWarning),
	Error:    lipgloss.NewStyle().Foreground(ColorError),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// Printer writes styled messages to one destination at one level.
type Printer struct {
	w     io.Writer
	level PersonalityLevel
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer, level PersonalityLevel) *Printer {
	return &Printer{w: w, level: level}
}

// Level returns the printer's personality level.
func (p *Printer) Level() PersonalityLevel {
	return p.level
}

// Title prints a styled title. Machine output omits it.
func (p *Printer) Title(text string) {
	if p.level == PersonalityMachine {
		return
	}
	fmt.Fprintln(p.w, Styles.Title.Render(text))
}

// Success prints a success message with checkmark
func (p *Printer) Success(text string) {
	p.status("OK", IconSuccess, Styles.Success, text)
}

// Warning prints a warning message
func (p *Printer) Warning(text string) {
	p.status("WARN", IconWarning, Styles.Warning, text)
}

// Error prints an error message
func (p *Printer) Error(text string) {
	p.status("ERROR", IconError, Styles.Error, text)
}

func (p *Printer) status(prefix string, icon Icon, style lipgloss.Style, text string) {
	switch p.level {
	case PersonalityMachine:
		fmt.Fprintf(p.w, "%s: %s\n", prefix, text)
	case PersonalityMinimal:
		fmt.Fprintf(p.w, "%s %s\n", icon, text)
	default:
		fmt.Fprintf(p.w, "%s %s\n", icon.Render(), style.Render(text))
	}
}

// Info prints an informational message
func (p *Printer) Info(text string) {
	if p.level == PersonalityMachine {
		fmt.Fprintln(p.w, text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", Styles.Muted.Render("│"), text)
}

// Line prints text unchanged.
func (p *Printer) Line(text string) {
	fmt.Fprintln(p.w, text)
}

// Box prints text in a rounded box; machine output is "title: content".
func (p *Printer) Box(title, content string) {
	p.box(Styles.Box, Styles.Title, title, content)
}

// ErrorBox prints text in an error-styled box.
func (p *Printer) ErrorBox(title, content string) {
	p.box(Styles.ErrorBox, Styles.Error.Bold(true), title, content)
}

func (p *Printer) box(box, head lipgloss.Style, title, content string) {
	if p.level != PersonalityFull {
		fmt.Fprintf(p.w, "%s: %s\n", title, strings.ReplaceAll(content, "\n", "; "))
		return
	}
	fmt.Fprintln(p.w, box.Width(60).Render(head.Render(title)+"\n"+content))
}

// Stat is one labelled number in a Summary.
type Stat struct {
	Label string
	Value any
}

// Summary prints a single line of labelled values.
func (p *Printer) Summary(stats ...Stat) {
	parts := make([]string, len(stats))
	for i, s := range stats {
		if p.level == PersonalityMachine {
			parts[i] = fmt.Sprintf("%s=%v", strings.ReplaceAll(s.Label, " ", "_"), s.Value)
			continue
		}
		parts[i] = Styles.Bold.Render(fmt.Sprint(s.Value)) + " " + Styles.Muted.Render(s.Label)
	}
	if p.level == PersonalityMachine {
		fmt.Fprintf(p.w, "SUMMARY: %s\n", strings.Join(parts, " "))
		return
	}
	fmt.Fprintln(p.w, strings.Join(parts, "  "))
}

// Table prints rows under headers; machine output is tab separated.
func (p *Printer) Table(headers []string, rows [][]string) {
	if p.level == PersonalityMachine {
		fmt.Fprintln(p.w, strings.Join(headers, "\t"))
		for _, row := range rows {
			fmt.Fprintln(p.w, strings.Join(row, "\t"))
		}
		return
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(Styles.Muted).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return Styles.Subtitle.Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	fmt.Fprintln(p.w, t.Render())
}
