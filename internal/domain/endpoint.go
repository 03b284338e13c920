// Package domain contains entities without logic, just meta-data
package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxDisplayNameLen = 36
	defaultNamePrefix = "User-"
	defaultNameIDLen  = 6
)

type EndpointID string

// State is the matchmaking state of an endpoint. An endpoint is in exactly one
// state at any time.
type State int

const (
	StateIdle State = iota
	StateWaiting
	StatePaired
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StatePaired:
		return "paired"
	default:
		return "unknown"
	}
}

// Endpoint is one connected participant.
type Endpoint struct {
	ID          EndpointID
	DisplayName string
	JoinedAt    time.Time
	State       State
}

// PeerInfo is the public metadata shared with the other member of a session.
type PeerInfo struct {
	ID          EndpointID `json:"id"`
	DisplayName string     `json:"displayName"`
}

func (e *Endpoint) Public() PeerInfo {
	return PeerInfo{ID: e.ID, DisplayName: e.DisplayName}
}

// DefaultDisplayName derives a label from the endpoint id.
func DefaultDisplayName(id EndpointID) string {
	s := string(id)
	if len(s) > defaultNameIDLen {
		s = s[:defaultNameIDLen]
	}
	return defaultNamePrefix + s
}

// NormalizeDisplayName trims the label and falls back to the default one when
// nothing usable is left. Names are unverified; overly long ones are cut.
func NormalizeDisplayName(id EndpointID, name string) string {
	name = strings.TrimSpace(name)
	if name == "" || !utf8.ValidString(name) {
		return DefaultDisplayName(id)
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLen {
		name = string([]rune(name)[:MaxDisplayNameLen])
	}
	return name
}
