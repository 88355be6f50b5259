// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

/*
Package notify escalates high-priority domain events into tracked
notifications and delivers them with bounded retries.

Escalation Triggers:

  - new, unacknowledged alerts with severity CRITICAL or HIGH
  - dose readings over the high threshold (HP10 > 25 mSv)
  - personnel inserts and updates
  - device updates whose derived status is CALIBRATION_DUE

Each trigger builds a Notification from a fixed template (title, priority,
acknowledgment flag, presentation hints) plus actions that carry either an
API endpoint, a dashboard URL or a phone number.

Delivery:

A single worker drains a FIFO queue. Each attempt goes to every
authenticated subscriber of the notifications channel. A failed attempt is
rescheduled on a min-heap keyed by due time after base×2^(attempts-1),
capped at the configured maximum; due retries re-enter the queue ahead of
new work. After maxAttempts the notification is marked failed and the
FailureObserver is called. The backlog is capped: when full, the oldest
pending notification is evicted and reported to the observer.

An optional circuit breaker (sony/gobreaker) wraps the hand-off. An attempt
that finds no eligible recipients fails the notification but does not count
against the breaker.

Delivery Log:

Every notification's attempts are kept in a DeliveryLog for the retention
window; the Sweeper service purges older entries. Layer.Stats summarizes
the log and the queue for the HTTP stats endpoint.
*/
package notify
