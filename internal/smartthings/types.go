package smartthings

import (
	"sort"
	"strings"
)

// Handle identifies one device on one API base. Both values are fixed
// configuration; the service does not discover devices dynamically.
type Handle struct {
	DeviceID string
	APIBase  string
}

// Device describes a SmartThings device as returned by GET /devices/{id}
type Device struct {
	DeviceID   string            `json:"deviceId"`
	Name       string            `json:"name"`
	Label      string            `json:"label"`
	Components []DeviceComponent `json:"components"`
}

// DeviceComponent is one component of a device with its capability list
type DeviceComponent struct {
	ID           string       `json:"id"`
	Label        string       `json:"label"`
	Capabilities []Capability `json:"capabilities"`
}

// Capability is a device feature category such as imageCapture or Refresh
type Capability struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
}

// AttributeValue is a single capability attribute from a status response
type AttributeValue struct {
	Value     interface{} `json:"value"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// CapabilityStatus maps attribute name to its current value
type CapabilityStatus map[string]AttributeValue

// ComponentStatus maps capability ID to its attribute set
type ComponentStatus map[string]CapabilityStatus

// DeviceStatus is the typed shape of GET /devices/{id}/status
type DeviceStatus struct {
	Components map[string]ComponentStatus `json:"components"`
}

// capabilities whose attributes may carry a captured image URL
var imageCapabilities = map[string]bool{
	"imageCapture": true,
	"image":        true,
}

// ImageURL returns the first http(s) URL found under an image-bearing
// attribute, preferring the main component and the image attribute so the
// result is stable across map iteration order. The boolean is false when the
// status carries no image URL.
func (s *DeviceStatus) ImageURL() (string, bool) {
	if s == nil || len(s.Components) == 0 {
		return "", false
	}

	for _, component := range orderedKeys(s.Components, "main") {
		caps := s.Components[component]
		for capID, attrs := range caps {
			if !imageCapabilities[capID] {
				continue
			}
			if url, ok := imageURLFromAttrs(attrs); ok {
				return url, true
			}
		}
	}
	return "", false
}

func imageURLFromAttrs(attrs CapabilityStatus) (string, bool) {
	// The camera reports the capture URL in the image attribute
	if v, ok := attrs["image"]; ok {
		if url, ok := httpsValue(v.Value); ok {
			return url, true
		}
	}
	for _, name := range orderedKeys(attrs, "") {
		if url, ok := httpsValue(attrs[name].Value); ok {
			return url, true
		}
	}
	return "", false
}

func httpsValue(v interface{}) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	if !strings.HasPrefix(s, "https://") && !strings.HasPrefix(s, "http://") {
		return "", false
	}
	return s, true
}

// orderedKeys returns map keys sorted, with the preferred key (if present)
// first, so scans over status maps are deterministic.
func orderedKeys[M ~map[string]V, V any](m M, preferred string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != preferred {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if preferred != "" {
		if _, ok := m[preferred]; ok {
			keys = append([]string{preferred}, keys...)
		}
	}
	return keys
}
