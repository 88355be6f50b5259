// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

/*
Package websocket implements the real-time fan-out hub: it accepts client
connections, tracks their authentication, channel subscriptions and room
membership, and distributes envelopes to the right subset of them.

Key Components:

  - Registry: single source of truth for live connections and their state
  - Broadcaster: channel, room and notification fan-out with bounded sends
  - HeartbeatMonitor: pings connections and evicts unresponsive ones
  - Handler: interprets inbound control messages
  - Hub: accepts transports, runs their pumps and owns shutdown

Architecture:

	        ┌──────────────┐
	        │   Registry   │ ← one lock over conns, subscriptions, rooms
	        └──────┬───────┘
	   ┌───────────┼─────────────┬──────────────┐
	   │           │             │              │
	Handler   Broadcaster   HeartbeatMonitor   Hub
	   ↑           ↑                            │
	readPump   event router                 accept/close

Each connection has two goroutines:
  - readPump: reads frames, refreshes liveness, dispatches to the Handler
  - writePump: the only writer; drains the send queue and heartbeat pings

Inbound Messages:

  - AUTHENTICATE {token, userId, role}
  - SUBSCRIBE / UNSUBSCRIBE {channels}
  - JOIN_ROOM / LEAVE_ROOM {room}
  - PING, GET_STATUS

Outbound Envelopes:

Every envelope carries a type and a millisecond UTC timestamp:
CONNECTION_ESTABLISHED, AUTHENTICATED, SUBSCRIPTION_CONFIRMED,
UNSUBSCRIPTION_CONFIRMED, ROOM_JOINED, ROOM_LEFT, PONG, CONNECTION_STATUS,
BROADCAST, ROOM_BROADCAST, NOTIFICATION, ERROR and SERVER_SHUTDOWN.

Error Handling:

  - Malformed frames, unknown types and frames over MaxMessageSize: ERROR reply, connection stays open
  - Frames over four times MaxMessageSize: the transport read limit fails the read and the
    connection is closed with 1009 (message too big) and no ERROR envelope
  - Send timeout or closed transport during fan-out: recipient evicted, fan-out continues
  - Capacity reached: ERROR frame then close with 1013 (try again later)
  - Shutdown started: ERROR SERVER_BUSY then close with 1001 (going away)
  - No traffic for two heartbeat intervals: evicted by the HeartbeatMonitor

Thread Safety:

Registry methods are safe for concurrent use. Lookups return snapshots sorted
by accept order, so fan-out order is deterministic.

See Also:

  - internal/authz: role to channel permissions
  - internal/events: domain event routing onto channels
  - internal/notify: notification escalation over DeliverNotification
*/
package websocket
