// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type selects a notification template.
type Type string

const (
	TypeCriticalAlert   Type = "CRITICAL_ALERT"
	TypeHighAlert       Type = "HIGH_ALERT"
	TypeMediumAlert     Type = "MEDIUM_ALERT"
	TypeLowAlert        Type = "LOW_ALERT"
	TypeDoseReading     Type = "DOSE_READING"
	TypeDeviceStatus    Type = "DEVICE_STATUS"
	TypePersonnelUpdate Type = "PERSONNEL_UPDATE"
)

// Priority drives expiry, badge and renotify behavior.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Template is the fixed presentation of a notification type.
type Template struct {
	Title                  string
	Priority               Priority
	RequiresAcknowledgment bool
	Sound                  string
	Vibration              []int
	Icon                   string
}

var templates = map[Type]Template{
	TypeCriticalAlert: {
		Title:                  "🚨 CRITICAL Radiation Alert",
		Priority:               PriorityHigh,
		RequiresAcknowledgment: true,
		Sound:                  "emergency.wav",
		Vibration:              []int{200, 100, 200, 100, 200},
		Icon:                   "🚨",
	},
	TypeHighAlert: {
		Title:                  "⚠️ High Radiation Alert",
		Priority:               PriorityHigh,
		RequiresAcknowledgment: true,
		Sound:                  "alert.wav",
		Vibration:              []int{200, 100, 200},
		Icon:                   "⚠️",
	},
	TypeMediumAlert: {
		Title:     "⚠️ Radiation Alert",
		Priority:  PriorityNormal,
		Sound:     "notification.wav",
		Vibration: []int{200},
		Icon:      "⚠️",
	},
	TypeLowAlert: {
		Title:     "ℹ️ Radiation Notice",
		Priority:  PriorityLow,
		Sound:     "soft.wav",
		Vibration: []int{100},
		Icon:      "ℹ️",
	},
	TypeDoseReading: {
		Title:     "📊 New Dose Reading",
		Priority:  PriorityNormal,
		Sound:     "chime.wav",
		Vibration: []int{100},
		Icon:      "📊",
	},
	TypeDeviceStatus: {
		Title:     "🔧 Device Status Update",
		Priority:  PriorityNormal,
		Sound:     "notification.wav",
		Vibration: []int{100},
		Icon:      "🔧",
	},
	TypePersonnelUpdate: {
		Title:     "👤 Personnel Update",
		Priority:  PriorityLow,
		Sound:     "soft.wav",
		Vibration: []int{100},
		Icon:      "👤",
	},
}

// LookupTemplate returns the template for t.
func LookupTemplate(t Type) (Template, bool) {
	tpl, ok := templates[t]
	return tpl, ok
}

// Expiry returns how long a notification of priority p stays relevant.
func Expiry(p Priority) time.Duration {
	switch p {
	case PriorityHigh:
		return 24 * time.Hour
	case PriorityLow:
		return 6 * time.Hour
	default:
		return 12 * time.Hour
	}
}

// Badge maps a priority to the client badge name.
func Badge(p Priority) string {
	switch p {
	case PriorityHigh:
		return "urgent"
	case PriorityLow:
		return "low"
	default:
		return "info"
	}
}

// Action is a client-side affordance attached to a notification. Exactly one
// of Endpoint, URL, Phone or PersonnelID is set.
type Action struct {
	ID                   string `json:"id"`
	Label                string `json:"label"`
	Type                 string `json:"type"`
	Endpoint             string `json:"endpoint,omitempty"`
	URL                  string `json:"url,omitempty"`
	Phone                string `json:"phone,omitempty"`
	PersonnelID          string `json:"personnelId,omitempty"`
	RequiresConfirmation bool   `json:"requiresConfirmation,omitempty"`
	OpenInNewTab         bool   `json:"openInNewTab,omitempty"`
}

// Presentation carries rendering hints for the client.
type Presentation struct {
	Sound     string `json:"sound"`
	Vibration []int  `json:"vibration"`
	Icon      string `json:"icon"`
	Badge     string `json:"badge"`
	Tag       string `json:"tag"`
	Renotify  bool   `json:"renotify"`
}

// Delivery tracks attempts for one notification. It is mutated only by the
// Layer's worker and never sent to clients.
type Delivery struct {
	Attempts      int        `json:"attempts"`
	MaxAttempts   int        `json:"maxAttempts"`
	LastAttemptAt *time.Time `json:"lastAttemptAt"`
	Delivered     bool       `json:"delivered"`
	Acknowledged  bool       `json:"acknowledged"`
}

// Notification is a tracked, templated message derived from a domain event.
type Notification struct {
	ID                     string         `json:"id"`
	Type                   Type           `json:"type"`
	Title                  string         `json:"title"`
	Message                string         `json:"message"`
	Priority               Priority       `json:"priority"`
	RequiresAcknowledgment bool           `json:"requiresAcknowledgment"`
	CreatedAt              time.Time      `json:"createdAt"`
	ExpiresAt              time.Time      `json:"expiresAt"`
	Data                   map[string]any `json:"data"`
	Actions                []Action       `json:"actions"`
	Presentation           Presentation   `json:"presentation"`
	Delivery               Delivery       `json:"-"`
}

// New builds a notification of type t from its template. data supplies the
// event fields shown to the client; deviceId or personnelId, when present,
// scope the presentation tag.
func New(t Type, message string, data map[string]any, actions []Action, now time.Time, maxAttempts int) (*Notification, error) {
	tpl, ok := templates[t]
	if !ok {
		return nil, fmt.Errorf("unknown notification type: %s", t)
	}
	if data == nil {
		data = map[string]any{}
	}
	if actions == nil {
		actions = []Action{}
	}
	now = now.UTC()
	return &Notification{
		ID:                     newID(now),
		Type:                   t,
		Title:                  tpl.Title,
		Message:                message,
		Priority:               tpl.Priority,
		RequiresAcknowledgment: tpl.RequiresAcknowledgment,
		CreatedAt:              now,
		ExpiresAt:              now.Add(Expiry(tpl.Priority)),
		Data:                   data,
		Actions:                actions,
		Presentation: Presentation{
			Sound:     tpl.Sound,
			Vibration: tpl.Vibration,
			Icon:      tpl.Icon,
			Badge:     Badge(tpl.Priority),
			Tag:       fmt.Sprintf("radiation_%s_%s", t, tagScope(data)),
			Renotify:  tpl.Priority == PriorityHigh,
		},
		Delivery: Delivery{MaxAttempts: maxAttempts},
	}, nil
}

func tagScope(data map[string]any) string {
	for _, key := range []string{"deviceId", "personnelId"} {
		if v, ok := data[key]; ok && v != nil {
			if s := fmt.Sprint(v); s != "" {
				return s
			}
		}
	}
	return "system"
}

// newID returns notif_<unix-ms>_<8 random chars>.
func newID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("notif_%d_%s", now.UnixMilli(), suffix)
}
