// Package permission resolves the effective capability set of a user from its
// role and, for assistants, the assigned task list.
package permission

import (
	"sort"
	"strings"
)

// Role represents the access tier of an account.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleAdmin     Role = "admin"
)

// Valid reports whether the role is one of the known tiers.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleAdmin:
		return true
	}
	return false
}

// Capability is a task an assistant may be assigned. Admins hold all of them.
type Capability string

const (
	CapLiveAgentSupport     Capability = "live_agent_support"
	CapManageProducts       Capability = "manage_products"
	CapAddProducts          Capability = "add_products"
	CapUpdateOrders         Capability = "update_orders"
	CapManageBanners        Capability = "manage_banners"
	CapManageCustomRequests Capability = "manage_custom_requests"
)

var allCapabilities = []Capability{
	CapLiveAgentSupport,
	CapManageProducts,
	CapAddProducts,
	CapUpdateOrders,
	CapManageBanners,
	CapManageCustomRequests,
}

// All returns every task-gated capability.
func All() []Capability {
	out := make([]Capability, len(allCapabilities))
	copy(out, allCapabilities)
	return out
}

// ParseCapability converts a raw task name into a known capability.
func ParseCapability(raw string) (Capability, bool) {
	c := Capability(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range allCapabilities {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// NormaliseCapabilities trims, lowercases and deduplicates raw task names,
// dropping anything unknown. The result is sorted.
func NormaliseCapabilities(raw []string) []Capability {
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[Capability]struct{}, len(raw))
	out := make([]Capability, 0, len(raw))
	for _, val := range raw {
		c, ok := ParseCapability(val)
		if !ok {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Subject is anything that can be resolved to a capability set.
type Subject interface {
	GetRole() Role
	GetAssistantTasks() []Capability
	GetAssistantEnabled() bool
}

// Set is an effective capability set.
type Set map[Capability]bool

// Has reports membership.
func (s Set) Has(c Capability) bool {
	return s[c]
}

// HasAny reports whether any of the capabilities is present.
func (s Set) HasAny(caps ...Capability) bool {
	for _, c := range caps {
		if s[c] {
			return true
		}
	}
	return false
}

// List returns the members sorted by name.
func (s Set) List() []Capability {
	out := make([]Capability, 0, len(s))
	for c, ok := range s {
		if ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CapabilitiesOf resolves the effective capability set.
// Admins receive every capability regardless of assigned tasks. Assistants
// receive their assigned tasks, or nothing when the account is disabled.
// Customers receive nothing; customer operations are not capability gated.
func CapabilitiesOf(subject Subject) Set {
	caps := make(Set, len(allCapabilities))
	if subject == nil {
		return caps
	}
	switch subject.GetRole() {
	case RoleAdmin:
		for _, c := range allCapabilities {
			caps[c] = true
		}
	case RoleAssistant:
		if !subject.GetAssistantEnabled() {
			return caps
		}
		for _, task := range subject.GetAssistantTasks() {
			if _, ok := ParseCapability(string(task)); ok {
				caps[task] = true
			}
		}
	}
	return caps
}

// Has reports whether the subject holds the capability.
func Has(subject Subject, c Capability) bool {
	return CapabilitiesOf(subject).Has(c)
}

// IsAdmin reports whether the subject is an administrator.
func IsAdmin(subject Subject) bool {
	return subject != nil && subject.GetRole() == RoleAdmin
}
