// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/nadavby/reclaim/internal/match"
)

// fakeNotifier records deliveries and can be told to fail.
type fakeNotifier struct {
	mu      sync.Mutex
	name    string
	enabled bool
	err     error
	sent    []match.NotificationIntent
}

func (f *fakeNotifier) Name() string  { return f.name }
func (f *fakeNotifier) Enabled() bool { return f.enabled }

func (f *fakeNotifier) Send(_ context.Context, intent *match.NotificationIntent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, *intent)
	return nil
}

func (f *fakeNotifier) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeNotifier) sentItems() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]string, 0, len(f.sent))
	for _, intent := range f.sent {
		items = append(items, intent.ItemID)
	}
	return items
}

func testIntent(userID, itemID string) match.NotificationIntent {
	return match.NotificationIntent{
		UserID:        userID,
		ItemID:        itemID,
		MatchedItemID: "found-9",
		Score:         81,
		RunID:         "run-1",
		CreatedAt:     time.Now().UTC(),
	}
}

func intentMessage(t *testing.T, intent match.NotificationIntent) *message.Message {
	t.Helper()
	payload, err := json.Marshal(intent)
	if err != nil {
		t.Fatalf("Failed to marshal intent: %v", err)
	}
	return message.NewMessage("msg-"+intent.ItemID, payload)
}

// TestDispatcher_DeliversToEnabledNotifiers verifies fan-out reaches
// enabled channels only and carries the intent through intact.
func TestDispatcher_DeliversToEnabledNotifiers(t *testing.T) {
	d := NewDispatcher(NewCooldown(time.Hour))
	active := &fakeNotifier{name: "active", enabled: true}
	dormant := &fakeNotifier{name: "dormant", enabled: false}
	d.Register(active)
	d.Register(dormant)

	intent := testIntent("user-1", "lost-1")
	if err := d.Handle(intentMessage(t, intent)); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if got := active.sentCount(); got != 1 {
		t.Fatalf("Expected 1 delivery to the enabled notifier, got %d", got)
	}
	active.mu.Lock()
	got := active.sent[0]
	active.mu.Unlock()
	if got.UserID != intent.UserID || got.ItemID != intent.ItemID ||
		got.MatchedItemID != intent.MatchedItemID || got.Score != intent.Score ||
		got.RunID != intent.RunID {
		t.Errorf("Expected delivered intent %+v, got %+v", intent, got)
	}
	if got := dormant.sentCount(); got != 0 {
		t.Errorf("Expected no deliveries to the disabled notifier, got %d", got)
	}
}

// TestDispatcher_CooldownSuppressesRepeats verifies a second intent for
// the same user inside the window is dropped while other users still get
// theirs.
func TestDispatcher_CooldownSuppressesRepeats(t *testing.T) {
	d := NewDispatcher(NewCooldown(time.Hour))
	sink := &fakeNotifier{name: "sink", enabled: true}
	d.Register(sink)

	for _, intent := range []match.NotificationIntent{
		testIntent("user-1", "lost-1"),
		testIntent("user-1", "lost-2"),
		testIntent("user-2", "lost-3"),
	} {
		if err := d.Handle(intentMessage(t, intent)); err != nil {
			t.Fatalf("Handle returned error for %s: %v", intent.ItemID, err)
		}
	}

	want := []string{"lost-1", "lost-3"}
	got := sink.sentItems()
	if len(got) != len(want) {
		t.Fatalf("Expected deliveries %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Delivery %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

// TestDispatcher_MalformedPayloadAcked verifies an unparseable intent is
// acked and dropped rather than redelivered.
func TestDispatcher_MalformedPayloadAcked(t *testing.T) {
	d := NewDispatcher(NewCooldown(time.Hour))
	sink := &fakeNotifier{name: "sink", enabled: true}
	d.Register(sink)

	msg := message.NewMessage("bad-payload", []byte("{not json"))
	if err := d.Handle(msg); err != nil {
		t.Fatalf("Expected a malformed payload to be absorbed, got %v", err)
	}

	select {
	case <-msg.Acked():
	default:
		t.Error("Expected the malformed message to be acked")
	}
	if got := sink.sentCount(); got != 0 {
		t.Errorf("Expected no deliveries for a malformed payload, got %d", got)
	}
}

// TestDispatcher_MissingRecipientDropped verifies an intent without a
// user is dropped without reaching any channel.
func TestDispatcher_MissingRecipientDropped(t *testing.T) {
	d := NewDispatcher(NewCooldown(time.Hour))
	sink := &fakeNotifier{name: "sink", enabled: true}
	d.Register(sink)

	msg := intentMessage(t, testIntent("", "lost-1"))
	if err := d.Handle(msg); err != nil {
		t.Fatalf("Expected a recipient-less intent to be absorbed, got %v", err)
	}

	select {
	case <-msg.Acked():
	default:
		t.Error("Expected the recipient-less message to be acked")
	}
	if got := sink.sentCount(); got != 0 {
		t.Errorf("Expected no deliveries without a recipient, got %d", got)
	}
}

// TestDispatcher_FailureDoesNotBlockOtherChannels verifies one broken
// notifier does not stop delivery to the rest.
func TestDispatcher_FailureDoesNotBlockOtherChannels(t *testing.T) {
	d := NewDispatcher(NewCooldown(time.Hour))
	failing := &fakeNotifier{name: "failing", enabled: true, err: errors.New("endpoint down")}
	working := &fakeNotifier{name: "working", enabled: true}
	d.Register(failing)
	d.Register(working)

	if err := d.Handle(intentMessage(t, testIntent("user-1", "lost-1"))); err != nil {
		t.Fatalf("Expected delivery failures to be absorbed, got %v", err)
	}

	if got := working.sentCount(); got != 1 {
		t.Errorf("Expected the working notifier to receive the intent, got %d deliveries", got)
	}
}

// TestDispatcher_RegisterIgnoresNil verifies a nil notifier registration
// is a no-op.
func TestDispatcher_RegisterIgnoresNil(t *testing.T) {
	d := NewDispatcher(nil)
	d.Register(nil)

	if err := d.Handle(intentMessage(t, testIntent("user-1", "lost-1"))); err != nil {
		t.Fatalf("Expected an intent with no notifiers to be absorbed, got %v", err)
	}
}
