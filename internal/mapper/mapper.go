// Package mapper turns the configured device list into the object layout and
// the ping tasks the scheduler runs.
//
// Plan is pure: the same namespace and devices always yield the same ids, so
// Sync can reconcile against what a previous run persisted.
package mapper

import (
	"fmt"
	"regexp"
	"strings"

	"pingwatch/internal/domain"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	// anything but letters, digits, '_' and '-'; this covers dots and colons
	forbiddenRe = regexp.MustCompile(`[^\p{L}\p{N}_-]`)
)

// Sanitize makes s usable as one id segment
func Sanitize(s string) string {
	s = whitespaceRe.ReplaceAllString(strings.TrimSpace(s), "_")
	return forbiddenRe.ReplaceAllString(s, "_")
}

// Layout is the outcome of planning
type Layout struct {
	Namespace string
	// Objects lists every channel ahead of its states
	Objects []domain.Object
	Tasks   []*domain.PingTask
	// Warnings describe devices that were skipped
	Warnings []string
}

// Plan maps devices to objects and tasks. Disabled devices and devices
// whose id collides with an earlier one are left out.
func Plan(namespace string, devices []domain.Device, noHostname bool) *Layout {
	l := &Layout{Namespace: namespace}
	l.Objects = append(l.Objects, browseObjects(namespace)...)

	owner := map[string]string{domain.BrowseChannel: "browse state"}
	for _, d := range devices {
		ip := strings.TrimSpace(d.IP)
		if !d.IsEnabled() {
			continue
		}
		if ip == "" {
			l.Warnings = append(l.Warnings, fmt.Sprintf("device %q has no address, skipped", d.Name))
			continue
		}
		if _, err := domain.ParseTarget(ip); err != nil {
			l.Warnings = append(l.Warnings, fmt.Sprintf("device %q: %v, skipped", d.Name, err))
			continue
		}

		label := strings.TrimSpace(d.Name)
		key := label
		if noHostname || key == "" {
			key = ip
		}
		seg := Sanitize(key)
		if prev, taken := owner[seg]; taken {
			l.Warnings = append(l.Warnings, fmt.Sprintf("device %s maps to id %q already used by %s, skipped", ip, seg, prev))
			continue
		}
		owner[seg] = ip

		if label == "" {
			label = ip
		}
		ch := namespace + "." + seg
		l.Objects = append(l.Objects, deviceObjects(ch, label, ip, d.ExtendedInfo)...)
		l.Tasks = append(l.Tasks, domain.NewPingTask(ip, d.ExtendedInfo, ch+".alive", ch+".time", ch+".rps"))
	}
	return l
}

// IDs returns the planned object ids
func (l *Layout) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(l.Objects))
	for _, o := range l.Objects {
		ids[o.ID] = struct{}{}
	}
	return ids
}

func deviceObjects(ch, label, ip string, extended bool) []domain.Object {
	objs := []domain.Object{
		{
			ID:     ch,
			Type:   domain.ObjectTypeChannel,
			Common: domain.ObjectCommon{Name: label},
			Native: map[string]string{"host": ip},
		},
		stateObject(ch+".alive", "Alive "+label, "indicator.reachable", "boolean", "", false),
	}
	if extended {
		objs = append(objs,
			stateObject(ch+".time", "Time "+label, "value.interval", "number", "ms", false),
			stateObject(ch+".rps", "RPS "+label, "value", "number", "rps", false),
		)
	}
	return objs
}

func browseObjects(namespace string) []domain.Object {
	ids := domain.NewBrowseIDs(namespace)
	return []domain.Object{
		{ID: ids.Channel, Type: domain.ObjectTypeChannel, Common: domain.ObjectCommon{Name: "Browse"}},
		stateObject(ids.Interface, "Interface to browse", "text", "string", "", true),
		stateObject(ids.Progress, "Browse progress", "value", "number", "", false),
		stateObject(ids.RangeLength, "Range length", "value", "number", "", true),
		stateObject(ids.RangeStart, "Range start", "text", "string", "", true),
		stateObject(ids.Result, "Browse result", "json", "string", "", false),
		stateObject(ids.Running, "Browse running", "indicator.working", "boolean", "", true),
		stateObject(ids.Status, "Browse status", "text", "string", "", false),
	}
}

func stateObject(id, name, role, typ, unit string, write bool) domain.Object {
	return domain.Object{
		ID:   id,
		Type: domain.ObjectTypeState,
		Common: domain.ObjectCommon{
			Name:  name,
			Role:  role,
			Type:  typ,
			Unit:  unit,
			Read:  true,
			Write: write,
		},
	}
}
