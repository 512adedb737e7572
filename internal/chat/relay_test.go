// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package chat

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomcast/roomcast/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

type fakeNames struct {
	byFP map[string]string
}

func (f *fakeNames) SetClientName(fp, name string) error {
	if f.byFP == nil {
		f.byFP = make(map[string]string)
	}
	f.byFP[fp] = name
	return nil
}

func TestMessageIsEscapedAndTruncated(t *testing.T) {
	r := NewRelay(true, &fakeNames{})

	out, err := r.Handle("fp-1", Message{
		Sender:  `<b>alice</b>`,
		Message: "<script>alert(1)</script>",
	})
	require.NoError(t, err)
	require.NotNil(t, out.Broadcast)
	assert.Equal(t, "&lt;b&gt;alice&lt;/b&gt;", out.Broadcast.Sender)
	assert.Equal(t, "&lt;script&gt;alert(1)&lt;/script&gt;", out.Broadcast.Message)
	assert.Nil(t, out.NameUpdate)

	long := strings.Repeat("a", MaxMessageLen+100)
	out, err = r.Handle("fp-1", Message{Sender: "alice", Message: long})
	require.NoError(t, err)
	assert.Len(t, out.Broadcast.Message, MaxMessageLen)
}

func TestRenameCommand(t *testing.T) {
	names := &fakeNames{}
	r := NewRelay(true, names)

	out, err := r.Handle("fp-1", Message{Sender: "alice", Message: "/rename  Bob "})
	require.NoError(t, err)

	require.NotNil(t, out.NameUpdate)
	assert.Equal(t, "Bob", out.NameUpdate.DisplayName)
	assert.Equal(t, "Bob", names.byFP["fp-1"])

	require.NotNil(t, out.Broadcast)
	assert.Equal(t, SystemSender, out.Broadcast.Sender)
	assert.Equal(t, "alice is now known as Bob", out.Broadcast.Message)
	assert.NotContains(t, out.Broadcast.Message, "/rename")
}

func TestRenameValidation(t *testing.T) {
	r := NewRelay(true, &fakeNames{})

	_, err := r.Handle("fp-1", Message{Sender: "alice", Message: "/rename   "})
	assert.ErrorIs(t, err, ErrBadName)

	_, err = r.Handle("fp-1", Message{
		Sender:  "alice",
		Message: "/rename " + strings.Repeat("x", MaxNameLen+1),
	})
	assert.ErrorIs(t, err, ErrBadName)

	// Exactly at the limit is fine.
	out, err := r.Handle("fp-1", Message{
		Sender:  "alice",
		Message: "/rename " + strings.Repeat("x", MaxNameLen),
	})
	require.NoError(t, err)
	assert.Len(t, out.NameUpdate.DisplayName, MaxNameLen)
}

func TestDisabledRelayRejects(t *testing.T) {
	r := NewRelay(false, &fakeNames{})
	_, err := r.Handle("fp-1", Message{Sender: "a", Message: "hi"})
	assert.ErrorIs(t, err, ErrChatDisabled)
}
