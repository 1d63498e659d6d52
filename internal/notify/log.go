// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package notify

import (
	"context"

	"github.com/nadavby/reclaim/internal/logging"
	"github.com/nadavby/reclaim/internal/match"
)

// LogNotifier writes notifications to the structured log. It is always
// enabled, so matches surface somewhere even with no webhook configured.
type LogNotifier struct{}

// NewLogNotifier creates the log notification sink.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Name returns the notifier name.
func (n *LogNotifier) Name() string {
	return "log"
}

// Enabled always reports true.
func (n *LogNotifier) Enabled() bool {
	return true
}

// Send logs the notification.
func (n *LogNotifier) Send(ctx context.Context, intent *match.NotificationIntent) error {
	logging.Info().
		Str("user_id", intent.UserID).
		Str("item_id", intent.ItemID).
		Str("matched_item_id", intent.MatchedItemID).
		Int("score", intent.Score).
		Str("run_id", intent.RunID).
		Msg("Match notification")
	return nil
}
