package app

import (
	"context"
	"unicode/utf8"

	"huddle/api/internal/perm"
)

type ChannelSummary struct {
	ID       int
	Name     string
	IsPublic bool
}

type ChannelDetails struct {
	Name     string
	IsPublic bool
	Owners   []UserProfile
	Members  []UserProfile
}

// ChannelCreate allocates a channel with the actor as its first owner
// and member.
func (s *Service) ChannelCreate(ctx context.Context, token, name string, isPublic bool) (int, error) {
	actorID, err := s.authenticate(ctx, token)
	if err != nil {
		return 0, err
	}
	if n := utf8.RuneCountInString(name); n < 1 || n > maxChannelName {
		return 0, inputError("channel name must be 1-20 characters")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	actor, err := s.actor(actorID)
	if err != nil {
		return 0, err
	}
	ch := s.store.CreateChannel(name, isPublic, actor.ID)
	return ch.ID, nil
}

// ChannelsList returns the channels visible to the actor: every public
// channel plus the private ones they belong to.
func (s *Service) ChannelsList(ctx context.Context, token string) ([]ChannelSummary, error) {
	actorID, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	actor, err := s.actor(actorID)
	if err != nil {
		return nil, err
	}

	var out []ChannelSummary
	for _, ch := range s.store.Channels() {
		if !ch.IsPublic && !perm.IsMember(actor, ch) {
			continue
		}
		out = append(out, ChannelSummary{ID: ch.ID, Name: ch.Name, IsPublic: ch.IsPublic})
	}
	return out, nil
}

// ChannelDetail returns a channel's membership. Members only.
func (s *Service) ChannelDetail(ctx context.Context, token string, channelID int) (ChannelDetails, error) {
	actorID, err := s.authenticate(ctx, token)
	if err != nil {
		return ChannelDetails{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	actor, err := s.actor(actorID)
	if err != nil {
		return ChannelDetails{}, err
	}
	ch, ok := s.store.GetChannel(channelID)
	if !ok {
		return ChannelDetails{}, inputError("channel does not exist")
	}
	if !perm.IsMember(actor, ch) {
		return ChannelDetails{}, accessError("not a member of this channel")
	}

	details := ChannelDetails{Name: ch.Name, IsPublic: ch.IsPublic}
	for _, id := range ch.OwnerIDs {
		if u, uok := s.store.GetUser(id); uok {
			details.Owners = append(details.Owners, profileOf(u))
		}
	}
	for _, id := range ch.MemberIDs {
		if u, uok := s.store.GetUser(id); uok {
			details.Members = append(details.Members, profileOf(u))
		}
	}
	return details, nil
}

// ChannelJoin adds the actor to a channel. Joining a channel you are
// already in is a no-op, not an error. Private channels admit only
// global owners.
func (s *Service) ChannelJoin(ctx context.Context, token string, channelID int) error {
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
	ch, ok := s.store.GetChannel(channelID)
	if !ok {
		return inputError("channel does not exist")
	}
	if perm.IsMember(actor, ch) {
		return nil
	}
	if !ch.IsPublic && !perm.IsGlobalOwner(actor) {
		return accessError("channel is private")
	}

	ch.MemberIDs = append(ch.MemberIDs, actor.ID)
	return nil
}

// ChannelLeave removes the actor from both the member and owner sets.
// A channel may be left with zero owners; that is a valid state.
func (s *Service) ChannelLeave(ctx context.Context, token string, channelID int) error {
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
	ch, ok := s.store.GetChannel(channelID)
	if !ok {
		return inputError("channel does not exist")
	}
	if !perm.IsMember(actor, ch) {
		return accessError("not a member of this channel")
	}

	ch.MemberIDs = removeID(ch.MemberIDs, actor.ID)
	ch.OwnerIDs = removeID(ch.OwnerIDs, actor.ID)
	return nil
}

// ChannelInvite adds an existing user directly to a channel. Any member
// can invite, including into private channels.
func (s *Service) ChannelInvite(ctx context.Context, token string, channelID, targetID int) error {
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
	ch, ok := s.store.GetChannel(channelID)
	if !ok {
		return inputError("channel does not exist")
	}
	target, ok := s.store.GetUser(targetID)
	if !ok || targetID <= 0 {
		return inputError("user does not exist")
	}
	if !perm.IsMember(actor, ch) {
		return accessError("not a member of this channel")
	}
	if perm.IsMember(target, ch) {
		return inputError("user is already a member")
	}

	ch.MemberIDs = append(ch.MemberIDs, target.ID)
	return nil
}

// ChannelAddOwner promotes a member to channel owner.
func (s *Service) ChannelAddOwner(ctx context.Context, token string, channelID, targetID int) error {
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
	ch, ok := s.store.GetChannel(channelID)
	if !ok {
		return inputError("channel does not exist")
	}
	target, ok := s.store.GetUser(targetID)
	if !ok || targetID <= 0 {
		return inputError("user does not exist")
	}
	if !perm.CanAdminister(actor, ch) {
		return accessError("not authorized to administer this channel")
	}
	if !perm.IsMember(target, ch) {
		return inputError("user is not a member of this channel")
	}
	if perm.IsChannelOwner(target, ch) {
		return inputError("user is already an owner")
	}

	ch.OwnerIDs = append(ch.OwnerIDs, target.ID)
	return nil
}

// ChannelRemoveOwner demotes a channel owner back to plain member.
func (s *Service) ChannelRemoveOwner(ctx context.Context, token string, channelID, targetID int) error {
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
	ch, ok := s.store.GetChannel(channelID)
	if !ok {
		return inputError("channel does not exist")
	}
	target, ok := s.store.GetUser(targetID)
	if !ok || targetID <= 0 {
		return inputError("user does not exist")
	}
	if !perm.CanAdminister(actor, ch) {
		return accessError("not authorized to administer this channel")
	}
	if !perm.IsChannelOwner(target, ch) {
		return inputError("user is not an owner of this channel")
	}

	ch.OwnerIDs = removeID(ch.OwnerIDs, target.ID)
	return nil
}

func removeID(ids []int, id int) []int {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
