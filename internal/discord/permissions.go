package discord

import (
	"slices"

	"github.com/bwmarrin/discordgo"
)

// PermissionChecker validates that a Discord user carries the facilitator
// role before executing interview control commands.
type PermissionChecker struct {
	controlRoleID string
}

// NewPermissionChecker creates a PermissionChecker for the given role ID.
func NewPermissionChecker(controlRoleID string) *PermissionChecker {
	return &PermissionChecker{controlRoleID: controlRoleID}
}

// CanControl checks whether the interaction author has the configured
// facilitator role. An empty role ID allows everyone (useful for small
// teams and development). Returns false if the interaction has no Member
// (e.g. DM channel interactions).
func (p *PermissionChecker) CanControl(i *discordgo.InteractionCreate) bool {
	if p.controlRoleID == "" {
		return true
	}
	if i.Member == nil {
		return false
	}
	return slices.Contains(i.Member.Roles, p.controlRoleID)
}
