package app

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"huddle/api/internal/perm"
	"huddle/api/internal/search"
	"huddle/api/internal/store"
)

type ReactView struct {
	Type         int
	UserIDs      []int
	ActorReacted bool
}

type MessageView struct {
	ID        int
	ChannelID int
	SenderID  int
	Body      string
	CreatedAt int64
	Pinned    bool
	Reacts    []ReactView
}

// MessageSend appends a message to a channel the actor belongs to.
func (s *Service) MessageSend(ctx context.Context, token string, channelID int, text string) (int, error) {
	actorID, err := s.authenticate(ctx, token)
	if err != nil {
		return 0, err
	}
	if n := utf8.RuneCountInString(text); n < 1 || n > maxMessageLen {
		return 0, inputError("message must be 1-1000 characters")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	actor, err := s.actor(actorID)
	if err != nil {
		return 0, err
	}
	ch, ok := s.store.GetChannel(channelID)
	if !ok {
		return 0, inputError("channel does not exist")
	}
	if !perm.IsMember(actor, ch) {
		return 0, accessError("not a member of this channel")
	}

	msg := s.store.CreateMessage(store.Message{
		ChannelID: channelID,
		SenderID:  actor.ID,
		Body:      text,
		CreatedAt: s.now().Unix(),
	})
	s.search.IndexMessage(messageRecord(msg))
	return msg.ID, nil
}

// MessagesList returns a channel's visible messages in append order.
// Hidden (scheduled, unrevealed) messages are excluded.
func (s *Service) MessagesList(ctx context.Context, token string, channelID int) ([]MessageView, error) {
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
	ch, ok := s.store.GetChannel(channelID)
	if !ok {
		return nil, inputError("channel does not exist")
	}
	if !perm.IsMember(actor, ch) {
		return nil, accessError("not a member of this channel")
	}

	var out []MessageView
	for _, m := range s.store.ChannelMessages(ch) {
		if m.Hidden {
			continue
		}
		out = append(out, viewMessage(m, actor.ID))
	}
	return out, nil
}

// MessageEdit rewrites a message body. Editing to an empty body removes
// the message entirely.
func (s *Service) MessageEdit(ctx context.Context, token string, messageID int, text string) error {
	actorID, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}
	if utf8.RuneCountInString(text) > maxMessageLen {
		return inputError("message must be at most 1000 characters")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	actor, msg, ch, err := s.resolveMessage(actorID, messageID)
	if err != nil {
		return err
	}
	if !perm.CanActOnMessage(actor, ch, msg) {
		return accessError("not authorized to edit this message")
	}

	if text == "" {
		s.store.DeleteMessage(msg.ID)
		s.search.DeleteMessage(msg.ID)
		return nil
	}
	msg.Body = text
	if !msg.Hidden {
		s.search.IndexMessage(messageRecord(msg))
	}
	return nil
}

// MessageRemove deletes a message.
func (s *Service) MessageRemove(ctx context.Context, token string, messageID int) error {
	actorID, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	actor, msg, ch, err := s.resolveMessage(actorID, messageID)
	if err != nil {
		return err
	}
	if !perm.CanActOnMessage(actor, ch, msg) {
		return accessError("not authorized to remove this message")
	}

	s.store.DeleteMessage(msg.ID)
	s.search.DeleteMessage(msg.ID)
	return nil
}

// MessageReact applies a reaction. A user applies a given reaction type
// to a given message at most once.
func (s *Service) MessageReact(ctx context.Context, token string, messageID, reactType int) error {
	actorID, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}
	if !store.ValidReactType(reactType) {
		return inputError("reaction type is not valid")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	actor, msg, ch, err := s.resolveMessage(actorID, messageID)
	if err != nil {
		return err
	}
	if !perm.IsMember(actor, ch) {
		return accessError("not a member of this channel")
	}

	for i := range msg.Reacts {
		if msg.Reacts[i].Type != reactType {
			continue
		}
		for _, id := range msg.Reacts[i].UserIDs {
			if id == actor.ID {
				return inputError("already reacted with this reaction")
			}
		}
		msg.Reacts[i].UserIDs = append(msg.Reacts[i].UserIDs, actor.ID)
		return nil
	}
	msg.Reacts = append(msg.Reacts, store.React{Type: reactType, UserIDs: []int{actor.ID}})
	return nil
}

// MessageUnreact withdraws a reaction. A react left with no users is
// removed from the message.
func (s *Service) MessageUnreact(ctx context.Context, token string, messageID, reactType int) error {
	actorID, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}
	if !store.ValidReactType(reactType) {
		return inputError("reaction type is not valid")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	actor, msg, ch, err := s.resolveMessage(actorID, messageID)
	if err != nil {
		return err
	}
	if !perm.IsMember(actor, ch) {
		return accessError("not a member of this channel")
	}

	for i := range msg.Reacts {
		if msg.Reacts[i].Type != reactType {
			continue
		}
		for j, id := range msg.Reacts[i].UserIDs {
			if id != actor.ID {
				continue
			}
			msg.Reacts[i].UserIDs = append(msg.Reacts[i].UserIDs[:j], msg.Reacts[i].UserIDs[j+1:]...)
			if len(msg.Reacts[i].UserIDs) == 0 {
				msg.Reacts = append(msg.Reacts[:i], msg.Reacts[i+1:]...)
			}
			return nil
		}
	}
	return inputError("no such reaction from this user")
}

// MessagePin marks a message pinned.
func (s *Service) MessagePin(ctx context.Context, token string, messageID int) error {
	return s.setPinned(ctx, token, messageID, true)
}

// MessageUnpin clears a message's pinned flag.
func (s *Service) MessageUnpin(ctx context.Context, token string, messageID int) error {
	return s.setPinned(ctx, token, messageID, false)
}

func (s *Service) setPinned(ctx context.Context, token string, messageID int, pinned bool) error {
	actorID, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	actor, msg, ch, err := s.resolveMessage(actorID, messageID)
	if err != nil {
		return err
	}
	if !perm.CanAdminister(actor, ch) {
		return accessError("not authorized to administer this channel")
	}
	if msg.Pinned == pinned {
		if pinned {
			return inputError("message is already pinned")
		}
		return inputError("message is not pinned")
	}

	msg.Pinned = pinned
	return nil
}

// MessageSendLater inserts a hidden message now, so its id is stable
// and referenceable, and arms a timer that reveals it at sendAt.
func (s *Service) MessageSendLater(ctx context.Context, token string, channelID int, text string, sendAt int64) (int, error) {
	actorID, err := s.authenticate(ctx, token)
	if err != nil {
		return 0, err
	}
	if n := utf8.RuneCountInString(text); n < 1 || n > maxMessageLen {
		return 0, inputError("message must be 1-1000 characters")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if sendAt <= now.Unix() {
		return 0, inputError("send time must be in the future")
	}
	actor, err := s.actor(actorID)
	if err != nil {
		return 0, err
	}
	ch, ok := s.store.GetChannel(channelID)
	if !ok {
		return 0, inputError("channel does not exist")
	}
	if !perm.IsMember(actor, ch) {
		return 0, accessError("not a member of this channel")
	}

	msg := s.store.CreateMessage(store.Message{
		ChannelID: channelID,
		SenderID:  actor.ID,
		Body:      text,
		CreatedAt: sendAt,
		Hidden:    true,
	})

	messageID := msg.ID
	epoch := s.epoch
	s.sched.After(time.Duration(sendAt-now.Unix())*time.Second, func() {
		s.revealMessage(messageID, epoch)
	})
	return messageID, nil
}

// revealMessage runs on timer fire. The message may have been edited
// away or the workspace reset since arming, so everything is
// re-validated under the mutation lock; the epoch check catches a
// reset that ran while this callback was already waiting on the lock.
func (s *Service) revealMessage(messageID int, epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		return
	}
	msg, ok := s.store.GetMessage(messageID)
	if !ok || !msg.Hidden {
		return
	}
	msg.Hidden = false
	msg.CreatedAt = s.now().Unix()
	s.search.IndexMessage(messageRecord(msg))
}

// SearchMessages finds messages containing the query across the
// channels the actor belongs to. Meilisearch serves the query when
// healthy; otherwise the entity store is scanned directly.
func (s *Service) SearchMessages(ctx context.Context, token, query string) ([]MessageView, error) {
	actorID, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	if n := utf8.RuneCountInString(query); n < 1 || n > maxMessageLen {
		return nil, inputError("query must be 1-1000 characters")
	}

	s.mu.Lock()
	actor, err := s.actor(actorID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	var channelIDs []int
	for _, ch := range s.store.Channels() {
		if perm.IsMember(actor, ch) {
			channelIDs = append(channelIDs, ch.ID)
		}
	}
	s.mu.Unlock()

	if len(channelIDs) == 0 {
		return nil, nil
	}

	// The index query is external I/O; run it outside the lock. The
	// channel ids gathered above only narrow the index filter — every
	// hit is re-validated against live state under the lock below.
	records, _, ok := s.search.Search(search.Query{Text: query, ChannelIDs: channelIDs})

	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok {
		return s.scanMessages(actorID, query)
	}
	return s.resolveSearchHits(actorID, records)
}

// resolveSearchHits maps index hits back onto live entities. The actor,
// the messages, and their membership may all have changed while the
// index query ran unlocked, so each is re-checked here. Caller holds mu.
func (s *Service) resolveSearchHits(actorID int, records []search.MessageRecord) ([]MessageView, error) {
	actor, err := s.actor(actorID)
	if err != nil {
		return nil, err
	}
	var out []MessageView
	for _, rec := range records {
		msg, found := s.store.GetMessage(rec.ID)
		if !found || msg.Hidden {
			continue
		}
		ch, found := s.store.GetChannel(msg.ChannelID)
		if !found || !perm.IsMember(actor, ch) {
			continue
		}
		out = append(out, viewMessage(msg, actorID))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// scanMessages is the index-less fallback: a case-insensitive substring
// scan over the actor's current channels. Caller holds mu.
func (s *Service) scanMessages(actorID int, query string) ([]MessageView, error) {
	actor, err := s.actor(actorID)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)
	var out []MessageView
	for _, ch := range s.store.Channels() {
		if !perm.IsMember(actor, ch) {
			continue
		}
		for _, m := range s.store.ChannelMessages(ch) {
			if m.Hidden {
				continue
			}
			if strings.Contains(strings.ToLower(m.Body), needle) {
				out = append(out, viewMessage(m, actorID))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// resolveMessage looks up a message, its channel, and the acting user.
// Caller holds mu.
func (s *Service) resolveMessage(actorID, messageID int) (*store.User, *store.Message, *store.Channel, error) {
	actor, err := s.actor(actorID)
	if err != nil {
		return nil, nil, nil, err
	}
	msg, ok := s.store.GetMessage(messageID)
	if !ok {
		return nil, nil, nil, inputError("message does not exist")
	}
	ch, ok := s.store.GetChannel(msg.ChannelID)
	if !ok {
		return nil, nil, nil, inputError("message does not exist")
	}
	return actor, msg, ch, nil
}

func viewMessage(m *store.Message, actorID int) MessageView {
	view := MessageView{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		SenderID:  m.SenderID,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
		Pinned:    m.Pinned,
	}
	for _, r := range m.Reacts {
		rv := ReactView{Type: r.Type, UserIDs: append([]int(nil), r.UserIDs...)}
		for _, id := range r.UserIDs {
			if id == actorID {
				rv.ActorReacted = true
				break
			}
		}
		view.Reacts = append(view.Reacts, rv)
	}
	return view
}
