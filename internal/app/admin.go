package app

import (
	"context"

	"huddle/api/internal/perm"
	"huddle/api/internal/store"
)

// SetPermission changes a user's workspace-wide permission level. Only
// global owners may do this, and the workspace must never be left
// without a global owner.
func (s *Service) SetPermission(ctx context.Context, token string, targetID int, level store.Permission) error {
	actorID, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}
	if level != store.PermOwner && level != store.PermMember {
		return inputError("permission level is not valid")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	actor, err := s.actor(actorID)
	if err != nil {
		return err
	}
	if !perm.IsGlobalOwner(actor) {
		return accessError("only a global owner can change permissions")
	}

	target, ok := s.store.GetUser(targetID)
	if !ok || targetID <= 0 {
		return inputError("user does not exist")
	}
	if target.Permission == level {
		return inputError("user already has that permission level")
	}
	if level == store.PermMember && perm.IsGlobalOwner(target) && s.globalOwnerCount() == 1 {
		return inputError("cannot demote the only global owner")
	}

	target.Permission = level
	return nil
}

// RemoveUser removes a user from the workspace. Their messages survive,
// re-attributed to the deleted-user sentinel, and they leave every
// channel. Global owners may remove anyone but the last owner standing.
func (s *Service) RemoveUser(ctx context.Context, token string, targetID int) error {
	actorID, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	actor, err := s.actor(actorID)
	if err != nil {
		return err
	}
	if !perm.IsGlobalOwner(actor) {
		return accessError("only a global owner can remove users")
	}

	target, ok := s.store.GetUser(targetID)
	if !ok || targetID <= 0 {
		return inputError("user does not exist")
	}
	if perm.IsGlobalOwner(target) && s.globalOwnerCount() == 1 {
		return inputError("cannot remove the only global owner")
	}

	s.store.DeleteUser(targetID)
	return nil
}

// globalOwnerCount counts users at the owner permission level. Caller
// holds mu.
func (s *Service) globalOwnerCount() int {
	count := 0
	for _, u := range s.store.Users() {
		if u.Permission == store.PermOwner {
			count++
		}
	}
	return count
}
