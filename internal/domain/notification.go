package domain

import (
	"fmt"
	"strings"
	"time"
)

// Notification categories
const (
	CategoryNewDevices = "newDevices"
)

// Notification is emitted to the notification sink
type Notification struct {
	Category string         `json:"category"`
	Key      string         `json:"key"`
	Message  string         `json:"message"`
	Hosts    []DetectedHost `json:"hosts,omitempty"`
	At       time.Time      `json:"at"`
}

// NewDevicesNotification describes hosts found by an operator-triggered sweep
func NewDevicesNotification(hosts []DetectedHost) Notification {
	ips := make([]string, 0, len(hosts))
	for _, h := range hosts {
		ips = append(ips, h.IP)
	}
	return Notification{
		Category: CategoryNewDevices,
		Key:      "newDevices",
		Message:  fmt.Sprintf("%d new device(s) found: %s", len(hosts), strings.Join(ips, ", ")),
		Hosts:    hosts,
		At:       time.Now(),
	}
}

// SchemaItem is one control in a rendered form description
type SchemaItem struct {
	Type     string `json:"type"`
	Label    string `json:"label,omitempty"`
	Text     string `json:"text,omitempty"`
	Default  any    `json:"default,omitempty"`
	Sm       int    `json:"sm,omitempty"`
	NewLine  bool   `json:"newLine,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// NotificationSchema is a panel description for pending new-device notifications
type NotificationSchema struct {
	Type  string                `json:"type"`
	Items map[string]SchemaItem `json:"items"`
}

// BuildNotificationSchema renders one "add" checkbox per pending host.
// Item keys are "_add_<ip>" with dots replaced so the UI can address them.
func BuildNotificationSchema(hosts []DetectedHost) NotificationSchema {
	schema := NotificationSchema{Type: "panel", Items: map[string]SchemaItem{}}
	if len(hosts) == 0 {
		schema.Items["_none"] = SchemaItem{Type: "staticText", Text: "No new devices"}
		return schema
	}
	for _, h := range hosts {
		label := h.IP
		if h.MAC != "" {
			label += " [" + h.MAC + "]"
		}
		if h.Vendor != "" {
			label += " " + h.Vendor
		}
		key := "_add_" + strings.ReplaceAll(h.IP, ".", "_")
		schema.Items[key] = SchemaItem{
			Type:    "checkbox",
			Label:   label,
			Default: true,
			Sm:      12,
			NewLine: true,
		}
	}
	return schema
}
