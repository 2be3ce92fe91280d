package perm

import (
	"testing"

	"huddle/api/internal/store"
)

func TestChannelPredicates(t *testing.T) {
	owner := &store.User{ID: 1, Permission: store.PermMember}
	member := &store.User{ID: 2, Permission: store.PermMember}
	outsider := &store.User{ID: 3, Permission: store.PermMember}
	global := &store.User{ID: 4, Permission: store.PermOwner}

	ch := &store.Channel{ID: 1, OwnerIDs: []int{1}, MemberIDs: []int{1, 2}}

	if !IsChannelOwner(owner, ch) || IsChannelOwner(member, ch) {
		t.Fatal("IsChannelOwner mismatch")
	}
	if !IsMember(member, ch) || IsMember(outsider, ch) {
		t.Fatal("IsMember mismatch")
	}
	if !CanAdminister(owner, ch) {
		t.Fatal("channel owner should administer channel")
	}
	if !CanAdminister(global, ch) {
		t.Fatal("global owner should administer any channel")
	}
	if CanAdminister(member, ch) {
		t.Fatal("plain member should not administer channel")
	}
}

func TestCanActOnMessage(t *testing.T) {
	sender := &store.User{ID: 2, Permission: store.PermMember}
	chOwner := &store.User{ID: 1, Permission: store.PermMember}
	global := &store.User{ID: 4, Permission: store.PermOwner}
	bystander := &store.User{ID: 5, Permission: store.PermMember}

	ch := &store.Channel{ID: 1, OwnerIDs: []int{1}, MemberIDs: []int{1, 2, 5}}
	msg := &store.Message{ID: 10, ChannelID: 1, SenderID: 2}

	for _, u := range []*store.User{sender, chOwner, global} {
		if !CanActOnMessage(u, ch, msg) {
			t.Fatalf("user %d should be able to act on message", u.ID)
		}
	}
	if CanActOnMessage(bystander, ch, msg) {
		t.Fatal("bystander should not be able to act on message")
	}
}
