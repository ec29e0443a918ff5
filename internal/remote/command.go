package remote

import (
	"errors"
	"fmt"

	"github.com/dgnsrekt/readaloud/guided"
	"github.com/dgnsrekt/readaloud/readaloud"
)

// Controller is the part of the navigator the server drives.
type Controller interface {
	ID() string
	Tree() *guided.Tree
	Current() readaloud.Playback
	Subscribe() (<-chan readaloud.Playback, func())

	Play() error
	Pause() error
	TogglePlayPause() error
	GoTo(node guided.NodeID) error
	GoToLocation(loc readaloud.Location) error
	NextNode() error
	PreviousNode() error
	SkipForward(force bool) error
	SkipBackward(force bool) error
	EscapeForward(force bool) error
	EscapeBackward(force bool) error
	SetSettings(s readaloud.Settings) error
	CanSkip() bool
	CanEscape() bool
}

var (
	// ErrUnknownCommand is returned for a command name the server does not
	// handle.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrBadArgument is returned when a command lacks its argument.
	ErrBadArgument = errors.New("invalid command argument")
)

// Command is a request sent by a client over HTTP or the websocket.
type Command struct {
	Name     string              `json:"command"`
	Force    bool                `json:"force,omitempty"`
	Node     *int                `json:"node,omitempty"`
	Location *readaloud.Location `json:"location,omitempty"`
	Value    float64             `json:"value,omitempty"`
}

// Apply runs c against ctl.
func (c Command) Apply(ctl Controller) error {
	switch c.Name {
	case "play":
		return ctl.Play()
	case "pause":
		return ctl.Pause()
	case "toggle":
		return ctl.TogglePlayPause()
	case "next":
		return ctl.NextNode()
	case "previous":
		return ctl.PreviousNode()
	case "skip_forward":
		return ctl.SkipForward(c.Force)
	case "skip_backward":
		return ctl.SkipBackward(c.Force)
	case "escape_forward":
		return ctl.EscapeForward(c.Force)
	case "escape_backward":
		return ctl.EscapeBackward(c.Force)
	case "go":
		if c.Node == nil {
			return fmt.Errorf("%w: go needs a node", ErrBadArgument)
		}
		return ctl.GoTo(guided.NodeID(*c.Node))
	case "go_location":
		if c.Location == nil || c.Location.IsZero() {
			return fmt.Errorf("%w: go_location needs a location", ErrBadArgument)
		}
		return ctl.GoToLocation(*c.Location)
	case "speed", "pitch":
		if c.Value <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrBadArgument, c.Name)
		}
		s := ctl.Current().Settings
		if c.Name == "speed" {
			s.Speed = c.Value
		} else {
			s.Pitch = c.Value
		}
		return ctl.SetSettings(s)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, c.Name)
	}
}

// Snapshot is the JSON form of a playback snapshot.
type Snapshot struct {
	Session       string              `json:"session"`
	Condition     string              `json:"condition"`
	Error         string              `json:"error,omitempty"`
	Playing       bool                `json:"playing"`
	PlayWhenReady bool                `json:"playWhenReady"`
	Node          int                 `json:"node"`
	Label         string              `json:"label,omitempty"`
	Location      *readaloud.Location `json:"location,omitempty"`
	Segment       string              `json:"segment,omitempty"`
	Index         int                 `json:"index"`
	Items         int                 `json:"items"`
	Language      string              `json:"language"`
	Speed         float64             `json:"speed"`
	Pitch         float64             `json:"pitch"`
	CanSkip       bool                `json:"canSkip"`
	CanEscape     bool                `json:"canEscape"`
}

func snapshot(ctl Controller, p readaloud.Playback) Snapshot {
	s := Snapshot{
		Session:       p.SessionID,
		Condition:     p.Condition.String(),
		Playing:       p.Playing(),
		PlayWhenReady: p.PlayWhenReady,
		Node:          int(p.Node),
		Index:         p.Index,
		Items:         p.Items,
		Language:      p.Settings.Language.String(),
		Speed:         p.Settings.Speed,
		Pitch:         p.Settings.Pitch,
		CanSkip:       ctl.CanSkip(),
		CanEscape:     ctl.CanEscape(),
	}
	if p.Err != nil {
		s.Error = p.Err.Error()
	}
	if tree := ctl.Tree(); tree != nil && tree.Valid(p.Node) {
		s.Label = tree.Label(p.Node)
	}
	if !p.Location.IsZero() {
		loc := p.Location
		s.Location = &loc
	}
	if p.Items > 0 {
		s.Segment = p.Kind.String()
	}
	return s
}

// OutlineEntry is one node of the outline endpoint.
type OutlineEntry struct {
	Node  int      `json:"node"`
	Depth int      `json:"depth"`
	Roles []string `json:"roles,omitempty"`
	Label string   `json:"label,omitempty"`
}

func outline(tree *guided.Tree) []OutlineEntry {
	var entries []OutlineEntry
	tree.Walk(tree.Root(), func(id guided.NodeID, depth int) bool {
		e := OutlineEntry{Node: int(id), Depth: depth, Label: tree.Label(id)}
		for _, r := range tree.Roles(id).Slice() {
			e.Roles = append(e.Roles, string(r))
		}
		entries = append(entries, e)
		return true
	})
	return entries
}
