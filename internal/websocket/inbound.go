// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package websocket

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Inbound message types.
const (
	InboundAuthenticate = "AUTHENTICATE"
	InboundSubscribe    = "SUBSCRIBE"
	InboundUnsubscribe  = "UNSUBSCRIBE"
	InboundJoinRoom     = "JOIN_ROOM"
	InboundLeaveRoom    = "LEAVE_ROOM"
	InboundPing         = "PING"
	InboundGetStatus    = "GET_STATUS"
)

// Inbound is a decoded client control message. The set of implementations is
// closed: every frame decodes to exactly one of the types below.
type Inbound interface {
	inboundKind() string
}

type (
	Authenticate struct {
		Token  string
		UserID string
		Role   string
	}
	Subscribe struct {
		Channels []string
	}
	Unsubscribe struct {
		Channels []string
	}
	JoinRoom struct {
		Room string
	}
	LeaveRoom struct {
		Room string
	}
	Ping      struct{}
	GetStatus struct{}

	// Unrecognized is a well-formed object whose type is not part of the protocol.
	Unrecognized struct {
		Type string
	}

	// Malformed is a frame that could not be decoded into a control message.
	Malformed struct {
		Code    ErrorCode
		Message string
	}
)

func (Authenticate) inboundKind() string { return InboundAuthenticate }
func (Subscribe) inboundKind() string    { return InboundSubscribe }
func (Unsubscribe) inboundKind() string  { return InboundUnsubscribe }
func (JoinRoom) inboundKind() string     { return InboundJoinRoom }
func (LeaveRoom) inboundKind() string    { return InboundLeaveRoom }
func (Ping) inboundKind() string         { return InboundPing }
func (GetStatus) inboundKind() string    { return InboundGetStatus }
func (Unrecognized) inboundKind() string { return "unknown" }
func (Malformed) inboundKind() string    { return "malformed" }

// Decode parses a raw text frame. It never fails: frames that are not valid
// control messages decode to Malformed or Unrecognized.
func Decode(data []byte) Inbound {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return Malformed{Code: CodeInvalidMessageFormat, Message: "Message must be valid JSON"}
	}

	typ, _ := stringField(raw, "type")
	switch typ {
	case InboundAuthenticate:
		token, _ := stringField(raw, "token")
		userID, _ := stringField(raw, "userId")
		role, _ := stringField(raw, "role")
		return Authenticate{Token: token, UserID: userID, Role: role}
	case InboundSubscribe:
		channels, ok := stringSlice(raw, "channels")
		if !ok {
			return Malformed{Code: CodeInvalidSubscription, Message: "Channels must be an array"}
		}
		return Subscribe{Channels: channels}
	case InboundUnsubscribe:
		channels, ok := stringSlice(raw, "channels")
		if !ok {
			return Malformed{Code: CodeInvalidUnsubscribe, Message: "Channels must be an array"}
		}
		return Unsubscribe{Channels: channels}
	case InboundJoinRoom, InboundLeaveRoom:
		room, ok := stringField(raw, "room")
		if !ok || room == "" {
			return Malformed{Code: CodeInvalidRoom, Message: "Room name must be a string"}
		}
		if typ == InboundJoinRoom {
			return JoinRoom{Room: room}
		}
		return LeaveRoom{Room: room}
	case InboundPing:
		return Ping{}
	case InboundGetStatus:
		return GetStatus{}
	default:
		if _, present := raw["type"]; !present {
			return Unrecognized{Type: "undefined"}
		}
		return Unrecognized{Type: typ}
	}
}

func stringField(raw map[string]json.RawMessage, key string) (string, bool) {
	value, ok := raw[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return "", false
	}
	return s, true
}

// stringSlice accepts only a JSON array of strings; null and scalars are rejected.
func stringSlice(raw map[string]json.RawMessage, key string) ([]string, bool) {
	value := bytes.TrimSpace(raw[key])
	if len(value) == 0 || value[0] != '[' {
		return nil, false
	}
	var out []string
	if err := json.Unmarshal(value, &out); err != nil {
		return nil, false
	}
	if out == nil {
		out = []string{}
	}
	return out, true
}
