package service

import (
	"qqbridge/internal/models"
)

// AccessFilter is the whitelist predicate over group and user
// identifiers. An empty set on either axis means "allow all" on that
// axis, never "deny all".
type AccessFilter struct {
	groups map[string]struct{}
	users  map[string]struct{}
}

func NewAccessFilter(cfg models.FilterConfig) *AccessFilter {
	return &AccessFilter{
		groups: toSet(cfg.AllowedGroups),
		users:  toSet(cfg.AllowedUsers),
	}
}

// Allowed judges an event against both axes. An absent identifier
// passes its axis; a private message is judged only against the user
// whitelist because its group_id is absent.
func (f *AccessFilter) Allowed(evt *models.InboundEvent) bool {
	if !memberOrAbsent(evt.GroupID, f.groups) {
		return false
	}
	return memberOrAbsent(evt.UserID, f.users)
}

func memberOrAbsent(id string, set map[string]struct{}) bool {
	if id == "" || len(set) == 0 {
		return true
	}
	_, ok := set[id]
	return ok
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}
