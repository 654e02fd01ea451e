package audit

import "time"

// Event records a mutation of the trust boundary. Events are append-only and
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	Actor     string
	Action    Action
	EntityID  string
	Detail    string
}

type Action string

const (
	ActionRoleCreated       Action = "role_created"
	ActionRoleUpdated       Action = "role_updated"
	ActionRoleDeleted       Action = "role_deleted"
	ActionUsersAssigned     Action = "users_assigned"
	ActionUsersRemoved      Action = "users_removed"
	ActionMemberProvisioned Action = "member_provisioned"
)
