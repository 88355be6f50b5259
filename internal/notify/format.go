// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/dosehub/internal/events"
)

// SafetyOfficePhone is dialed by the contact_safety action.
const SafetyOfficePhone = "+1-555-SAFETY"

// FormatAlertMessage renders the one-line summary of an alert record.
func FormatAlertMessage(alert events.Record) string {
	severity := strings.ToUpper(alert.String("severity"))
	device := ""
	if id := alert.String("device_id"); id != "" {
		device = fmt.Sprintf(" (Device %s)", id)
	}

	switch alertType(alert) {
	case "DOSE_THRESHOLD":
		return fmt.Sprintf("%s: Dose threshold exceeded - %s mSv > %s mSv%s",
			severity, alert.String("value"), alert.String("threshold"), device)
	case "RATE_SPIKE":
		return fmt.Sprintf("%s: Radiation rate spike detected - %s µSv/h%s", severity, alert.String("value"), device)
	case "DEVICE_MALFUNCTION":
		return fmt.Sprintf("%s: Device malfunction detected%s", severity, device)
	case "BATTERY_LOW":
		return fmt.Sprintf("Device battery low%s - %s%%", device, alert.String("value"))
	case "CALIBRATION_DUE":
		return fmt.Sprintf("Device calibration overdue%s", device)
	default:
		detail := "Radiation monitoring alert"
		if details, ok := alert["details"].(map[string]any); ok {
			if msg := events.Record(details).String("message"); msg != "" {
				detail = msg
			}
		}
		return fmt.Sprintf("%s: %s%s", severity, detail, device)
	}
}

// alertType reads the alert kind, which upstream rows carry as either
// "type" or "alert_type".
func alertType(alert events.Record) string {
	if t := alert.String("alert_type"); t != "" {
		return t
	}
	return alert.String("type")
}

// FormatReadingMessage renders a dose reading. Personnel and device details
// are appended when the reading row was joined with them.
func FormatReadingMessage(reading events.Record) string {
	msg := fmt.Sprintf("New dose reading: %s mSv (HP10), %s mSv (HP07)",
		reading.String("hp10_msv"), reading.String("hp007_msv"))
	if lname := reading.String("lname"); lname != "" {
		msg += fmt.Sprintf(" for %s %s", reading.String("rank_rate"), lname)
	}
	if serial := reading.String("device_serial"); serial != "" {
		msg += " from " + serial
	}
	return msg
}

// FormatDeviceMessage renders a device status change.
func FormatDeviceMessage(device events.Record, status events.DeviceStatus) string {
	serial := device.String("serial")
	switch status {
	case events.DeviceOperational:
		return fmt.Sprintf("Device %s is operational", serial)
	case events.DeviceCalibrationDue:
		return fmt.Sprintf("Device %s calibration is overdue", serial)
	case events.DeviceRFDisabled:
		return fmt.Sprintf("Device %s RF communication disabled", serial)
	case events.DeviceFirmwareOutdated:
		return fmt.Sprintf("Device %s firmware is outdated", serial)
	default:
		return fmt.Sprintf("Device %s status: %s", serial, status)
	}
}

// FormatPersonnelMessage renders a personnel change.
func FormatPersonnelMessage(personnel events.Record, action string) string {
	name := strings.TrimSpace(fmt.Sprintf("%s %s %s",
		personnel.String("rank_rate"), personnel.String("fname"), personnel.String("lname")))
	switch action {
	case events.PersonnelAdded:
		return "New personnel added: " + name
	case events.PersonnelUpdated:
		return "Personnel updated: " + name
	default:
		return "Personnel update: " + name
	}
}

// AlertNotification builds a CRITICAL_ALERT or HIGH_ALERT notification.
// Other severities are not escalated and return an error.
func AlertNotification(alert events.Record, now time.Time, maxAttempts int) (*Notification, error) {
	id := alert.String("id")
	severity := alert.String("severity")

	acknowledge := Action{
		ID:       "acknowledge",
		Label:    "Acknowledge",
		Type:     "primary",
		Endpoint: fmt.Sprintf("/api/radiation/alerts/%s/acknowledge", id),
	}
	details := Action{
		ID:    "view_details",
		Label: "View Details",
		Type:  "secondary",
		URL:   fmt.Sprintf("/radiation-dashboard?alert=%s", id),
	}

	var t Type
	var actions []Action
	switch severity {
	case "CRITICAL":
		t = TypeCriticalAlert
		acknowledge.RequiresConfirmation = true
		details.OpenInNewTab = true
		actions = []Action{acknowledge, details, {
			ID:    "contact_safety",
			Label: "Contact Safety Officer",
			Type:  "danger",
			Phone: SafetyOfficePhone,
		}}
	case "HIGH":
		t = TypeHighAlert
		actions = []Action{acknowledge, details}
	default:
		return nil, fmt.Errorf("alert severity %q does not escalate", severity)
	}

	timestamp := alert.String("measured_ts")
	if timestamp == "" {
		timestamp = now.UTC().Format(time.RFC3339Nano)
	}
	data := map[string]any{
		"alertId":     id,
		"alertType":   alertType(alert),
		"deviceId":    alert["device_id"],
		"personnelId": alert["personnel_id"],
		"threshold":   alert["threshold"],
		"value":       alert["value"],
		"severity":    severity,
		"timestamp":   timestamp,
	}
	return New(t, FormatAlertMessage(alert), data, actions, now, maxAttempts)
}

// ReadingNotification builds a HIGH_ALERT for a high reading and a
// DOSE_READING otherwise.
func ReadingNotification(reading events.Record, now time.Time, maxAttempts int) (*Notification, error) {
	id := reading.String("id")
	high := events.IsHigh(reading)

	t := TypeDoseReading
	view := Action{
		ID:    "view_reading",
		Label: "View Reading",
		Type:  "secondary",
		URL:   fmt.Sprintf("/radiation-dashboard?reading=%s", id),
	}
	actions := []Action{view}
	if high {
		t = TypeHighAlert
		view.Type = "primary"
		actions = []Action{view, {
			ID:          "contact_personnel",
			Label:       "Contact Personnel",
			Type:        "secondary",
			PersonnelID: reading.String("personnel_id"),
		}}
	}

	data := map[string]any{
		"readingId":   id,
		"deviceId":    reading["device_id"],
		"personnelId": reading["personnel_id"],
		"hp10_msv":    reading["hp10_msv"],
		"hp007_msv":   reading["hp007_msv"],
		"rate_usv_h":  reading["rate_usv_h"],
		"batteryPct":  reading["battery_pct"],
		"timestamp":   reading["measured_ts"],
		"isAnomalous": high,
	}
	return New(t, FormatReadingMessage(reading), data, actions, now, maxAttempts)
}

// DeviceNotification builds a DEVICE_STATUS notification.
func DeviceNotification(device events.Record, status events.DeviceStatus, now time.Time, maxAttempts int) (*Notification, error) {
	id := device.String("id")
	actions := []Action{{
		ID:    "view_device",
		Label: "View Device",
		Type:  "secondary",
		URL:   fmt.Sprintf("/radiation-dashboard?device=%s", id),
	}}
	if status == events.DeviceCalibrationDue {
		actions = append(actions, Action{
			ID:       "calibrate",
			Label:    "Schedule Calibration",
			Type:     "primary",
			Endpoint: fmt.Sprintf("/api/radiation/devices/%s/calibrate", id),
		})
	}

	data := map[string]any{
		"deviceId":       id,
		"status":         string(status),
		"serial":         device["serial"],
		"rfPolicy":       device["rf_policy"],
		"calibrationDue": device["calib_due"],
		"firmware":       device["firmware"],
	}
	return New(TypeDeviceStatus, FormatDeviceMessage(device, status), data, actions, now, maxAttempts)
}

// PersonnelNotification builds a PERSONNEL_UPDATE notification.
func PersonnelNotification(personnel events.Record, action string, now time.Time, maxAttempts int) (*Notification, error) {
	id := personnel.String("id")
	actions := []Action{{
		ID:    "view_personnel",
		Label: "View Personnel",
		Type:  "secondary",
		URL:   fmt.Sprintf("/radiation-dashboard?personnel=%s", id),
	}}

	data := map[string]any{
		"personnelId": id,
		"updateType":  action,
		"edipi":       personnel["edipi"],
		"name":        strings.TrimSpace(personnel.String("fname") + " " + personnel.String("lname")),
		"rank":        personnel["rank_rate"],
	}
	return New(TypePersonnelUpdate, FormatPersonnelMessage(personnel, action), data, actions, now, maxAttempts)
}
