// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

// Package events carries pipeline lifecycle events over an in-process
// Watermill pub/sub.
//
// Two topics are used:
//
//	roastery.stage  one StageEvent per stage outcome (succeeded, failed, skipped)
//	roastery.run    one RunEvent when a run finishes
//
// The bus is backed by Watermill's gochannel implementation. Messages are not
// persisted: a subscriber only receives events published after it
// subscribed. The API layer subscribes to run events to invalidate its
// cached report.
//
// Payloads are JSON encoded with goccy/go-json. Handlers ack every message;
// a failing handler is logged and the event is dropped.
package events
