// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package events

import (
	"strconv"
	"strings"
	"time"
)

// Reading thresholds. The "high" threshold drives notifications and is lower
// than the anomaly threshold on purpose; the two are kept independent.
const (
	AnomalousHP10MSv   = 50.0
	AnomalousHP007MSv  = 50.0
	AnomalousRateUSvH  = 1000.0
	LowBatteryPct      = 10.0
	HighReadingHP10MSv = 25.0
)

// DeviceStatus is derived from a device record.
type DeviceStatus string

const (
	DeviceOperational      DeviceStatus = "OPERATIONAL"
	DeviceCalibrationDue   DeviceStatus = "CALIBRATION_DUE"
	DeviceRFDisabled       DeviceStatus = "RF_DISABLED"
	DeviceFirmwareOutdated DeviceStatus = "FIRMWARE_OUTDATED"
)

// IsAnomalous reports whether a reading crosses any anomaly threshold.
// All comparisons are strict; missing fields never trigger.
func IsAnomalous(r Record) bool {
	if v, ok := r.Float("hp10_msv"); ok && v > AnomalousHP10MSv {
		return true
	}
	if v, ok := r.Float("hp007_msv"); ok && v > AnomalousHP007MSv {
		return true
	}
	if v, ok := r.Float("rate_usv_h"); ok && v > AnomalousRateUSvH {
		return true
	}
	if v, ok := r.Float("battery_pct"); ok && v < LowBatteryPct {
		return true
	}
	return false
}

// IsHigh reports whether a reading should raise a dose notification.
func IsHigh(r Record) bool {
	v, ok := r.Float("hp10_msv")
	return ok && v > HighReadingHP10MSv
}

// DeriveDeviceStatus checks calibration, RF policy and firmware in that order.
func DeriveDeviceStatus(r Record, now time.Time) DeviceStatus {
	if due, ok := r.Time("calib_due"); ok && due.Before(now) {
		return DeviceCalibrationDue
	}
	if r.String("rf_policy") == "NO_RF" {
		return DeviceRFDisabled
	}
	current, minimum := r.String("firmware"), r.String("firmware_min")
	if current != "" && minimum != "" && CompareVersions(current, minimum) < 0 {
		return DeviceFirmwareOutdated
	}
	return DeviceOperational
}

// CompareVersions compares dotted versions component by component as
// integers. Missing components count as 0, so "1.2" equals "1.2.0".
func CompareVersions(a, b string) int {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	n := len(pa)
	if len(pb) > n {
		n = len(pb)
	}
	for i := 0; i < n; i++ {
		x, y := versionPart(pa, i), versionPart(pb, i)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

func versionPart(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
	if err != nil {
		return 0
	}
	return n
}

// AlertPriority maps severity to a sort priority, 1 being most urgent.
func AlertPriority(severity string) int {
	switch severity {
	case "CRITICAL":
		return 1
	case "HIGH":
		return 2
	case "MEDIUM":
		return 3
	case "LOW":
		return 4
	default:
		return 5
	}
}
