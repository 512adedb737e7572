// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

// Package chat is the room chat relay: sanitize, truncate, fan out, plus
// the /rename command.
package chat

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/roomcast/roomcast/internal/logging"
)

// Limits and the author of server-generated messages.
const (
	MaxMessageLen = 500
	MaxNameLen    = 32
	SystemSender  = "System"

	renamePrefix = "/rename "
)

// Relay errors.
var (
	ErrChatDisabled = errors.New("chat is disabled")
	ErrBadName      = errors.New("invalid display name")
)

// Names persists display names across sessions. Implemented by the memory
// store.
type Names interface {
	SetClientName(fingerprint, name string) error
}

// Message is the wire form of a chat-message event in both directions.
type Message struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// NameUpdate is the wire form of a name-updated event, sent only to the
// renaming connection.
type NameUpdate struct {
	DisplayName string `json:"displayName"`
}

// Outcome is what one inbound chat message produces: an optional room
// broadcast and an optional name update for the sender.
type Outcome struct {
	Broadcast  *Message
	NameUpdate *NameUpdate
}

// Relay sanitizes and routes chat traffic.
type Relay struct {
	enabled bool
	names   Names
}

// NewRelay creates a relay. When enabled is false every message is
// rejected.
func NewRelay(enabled bool, names Names) *Relay {
	return &Relay{enabled: enabled, names: names}
}

// sanitize truncates to limit runes and then HTML-escapes, so markup can
// never reach other viewers.
func sanitize(s string, limit int) string {
	runes := []rune(s)
	if len(runes) > limit {
		s = string(runes[:limit])
	}
	return html.EscapeString(s)
}

// Handle processes one inbound chat message from the viewer identified by
// fingerprint. The raw /rename text is never broadcast.
func (r *Relay) Handle(fingerprint string, msg Message) (Outcome, error) {
	if !r.enabled {
		return Outcome{}, ErrChatDisabled
	}

	if strings.HasPrefix(msg.Message, renamePrefix) {
		return r.rename(fingerprint, msg)
	}

	out := &Message{
		Sender:  sanitize(msg.Sender, MaxNameLen),
		Message: sanitize(msg.Message, MaxMessageLen),
	}
	return Outcome{Broadcast: out}, nil
}

// rename applies the /rename command: persist the new name, notify the
// sender, announce the change as a system message.
func (r *Relay) rename(fingerprint string, msg Message) (Outcome, error) {
	newName := strings.TrimSpace(strings.TrimPrefix(msg.Message, renamePrefix))
	if newName == "" || len([]rune(newName)) > MaxNameLen {
		return Outcome{}, ErrBadName
	}

	if err := r.names.SetClientName(fingerprint, newName); err != nil {
		logging.Warn().Err(err).Msg("failed to persist display name")
	}

	oldName := sanitize(msg.Sender, MaxNameLen)
	escaped := sanitize(newName, MaxNameLen)
	announcement := &Message{
		Sender:  SystemSender,
		Message: fmt.Sprintf("%s is now known as %s", oldName, escaped),
	}
	return Outcome{
		Broadcast:  announcement,
		NameUpdate: &NameUpdate{DisplayName: newName},
	}, nil
}
