// Package perm holds the authorization predicates. They are pure reads
// over current store state: they never mutate, never fail, and assume
// the caller has already resolved the entities they are given.
package perm

import "huddle/api/internal/store"

// IsGlobalOwner reports whether the user holds the workspace-wide
// owner permission level.
func IsGlobalOwner(u *store.User) bool {
	return u.Permission == store.PermOwner
}

// IsChannelOwner reports whether the user is in the channel's owner set.
func IsChannelOwner(u *store.User, ch *store.Channel) bool {
	return contains(ch.OwnerIDs, u.ID)
}

// IsMember reports whether the user is in the channel's member set.
func IsMember(u *store.User, ch *store.Channel) bool {
	return contains(ch.MemberIDs, u.ID)
}

// CanAdminister reports whether the user may administer the channel:
// global owners administer everything, channel owners their own channel.
func CanAdminister(u *store.User, ch *store.Channel) bool {
	return IsGlobalOwner(u) || IsChannelOwner(u, ch)
}

// CanActOnMessage reports whether the user may edit, remove, or pin the
// message: its sender, a global owner, or an owner of its channel.
func CanActOnMessage(u *store.User, ch *store.Channel, m *store.Message) bool {
	return m.SenderID == u.ID || CanAdminister(u, ch)
}

func contains(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
