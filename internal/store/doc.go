// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

/*
Package store persists the lost and found item registry behind the
ItemStore interface.

Two backends implement the interface:

  - MemoryStore keeps items in a mutex-guarded map. It is the default
    backend and the one tests use.
  - BadgerStore persists items in an embedded BadgerDB so a single-node
    deployment survives restarts.

Open selects the backend from configuration:

	st, err := store.Open(cfg.Store)
	if err != nil {
	    return err
	}
	defer st.Close()

Both backends return clones (or freshly decoded values), so callers can
mutate what they receive without corrupting stored state. Lookups on
missing items return ErrNotFound and duplicate creates return
ErrDuplicate; both are matched with errors.Is.

Candidate queries returned by FindCandidates are ordered oldest first so
that longer-waiting reports win ranking ties downstream. List is ordered
newest first for presentation.
*/
package store
