package db

import "log"

// MemberGate answers the hub's membership checks from the workspace_members
// table. Lookup errors deny: the ws path drops unauthorized events silently
// either way, so failing closed costs nothing.
type MemberGate struct {
	database *Database
}

func NewMemberGate(database *Database) *MemberGate {
	return &MemberGate{database: database}
}

func (g *MemberGate) IsMember(workspaceID, userID string) bool {
	ok, err := g.database.IsMember(workspaceID, userID)
	if err != nil {
		log.Printf("Membership lookup failed for workspace %s: %v", workspaceID, err)
		return false
	}
	return ok
}
