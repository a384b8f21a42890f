package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type subject struct {
	role    Role
	tasks   []Capability
	enabled bool
}

func (s subject) GetRole() Role                   { return s.role }
func (s subject) GetAssistantTasks() []Capability { return s.tasks }
func (s subject) GetAssistantEnabled() bool       { return s.enabled }

func TestCapabilitiesOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		subject Subject
		want    []Capability
	}{
		{
			name:    "admin holds every capability without tasks",
			subject: subject{role: RoleAdmin},
			want:    All(),
		},
		{
			name:    "admin ignores assigned tasks",
			subject: subject{role: RoleAdmin, tasks: []Capability{CapUpdateOrders}},
			want:    All(),
		},
		{
			name:    "enabled assistant gets assigned tasks",
			subject: subject{role: RoleAssistant, enabled: true, tasks: []Capability{CapUpdateOrders, CapManageBanners}},
			want:    []Capability{CapManageBanners, CapUpdateOrders},
		},
		{
			name:    "disabled assistant gets nothing",
			subject: subject{role: RoleAssistant, enabled: false, tasks: []Capability{CapUpdateOrders}},
			want:    []Capability{},
		},
		{
			name:    "unknown tasks are ignored",
			subject: subject{role: RoleAssistant, enabled: true, tasks: []Capability{"launch_rockets", CapAddProducts}},
			want:    []Capability{CapAddProducts},
		},
		{
			name:    "customer gets nothing",
			subject: subject{role: RoleUser, enabled: true, tasks: []Capability{CapUpdateOrders}},
			want:    []Capability{},
		},
		{
			name:    "nil subject gets nothing",
			subject: nil,
			want:    []Capability{},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.ElementsMatch(t, tc.want, CapabilitiesOf(tc.subject).List())
		})
	}
}

func TestHasAndIsAdmin(t *testing.T) {
	t.Parallel()

	assistant := subject{role: RoleAssistant, enabled: true, tasks: []Capability{CapLiveAgentSupport}}
	assert.True(t, Has(assistant, CapLiveAgentSupport))
	assert.False(t, Has(assistant, CapManageProducts))
	assert.False(t, IsAdmin(assistant))
	assert.True(t, IsAdmin(subject{role: RoleAdmin}))
	assert.True(t, CapabilitiesOf(assistant).HasAny(CapAddProducts, CapLiveAgentSupport))
}

func TestNormaliseCapabilities(t *testing.T) {
	t.Parallel()

	got := NormaliseCapabilities([]string{" Update_Orders ", "update_orders", "", "nope", "manage_banners"})
	assert.Equal(t, []Capability{CapManageBanners, CapUpdateOrders}, got)
	assert.Nil(t, NormaliseCapabilities(nil))
}

func TestRoleValid(t *testing.T) {
	t.Parallel()

	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleUser.Valid())
	assert.False(t, Role("owner").Valid())
}
