package app

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"huddle/api/internal/perm"
	"huddle/api/internal/store"
)

type StandupStatus struct {
	Active   bool
	FinishAt int64
}

// StandupStart opens a standup window on a channel and arms the timer
// that will flush the buffer when the window closes. Returns the finish
// time.
func (s *Service) StandupStart(ctx context.Context, token string, channelID, durationSeconds int) (int64, error) {
	actorID, err := s.authenticate(ctx, token)
	if err != nil {
		return 0, err
	}
	if durationSeconds <= 0 {
		return 0, inputError("standup duration must be positive")
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
	if ch.Standup != nil {
		return 0, inputError("a standup is already active in this channel")
	}

	finishAt := s.now().Add(time.Duration(durationSeconds) * time.Second).Unix()
	ch.Standup = &store.Standup{
		StarterID: actor.ID,
		FinishAt:  finishAt,
	}

	epoch := s.epoch
	s.sched.After(time.Duration(durationSeconds)*time.Second, func() {
		s.finishStandup(channelID, epoch)
	})
	return finishAt, nil
}

// finishStandup runs on timer fire. The workspace may have been reset
// or the channel deleted since arming, so everything is re-validated
// under the mutation lock; the epoch check catches a reset that ran
// while this callback was already waiting on the lock. The buffered
// entries are joined into one summary message posted by the standup
// bot; an empty buffer posts nothing.
func (s *Service) finishStandup(channelID int, epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		return
	}
	ch, ok := s.store.GetChannel(channelID)
	if !ok || ch.Standup == nil {
		return
	}
	buffer := ch.Standup.Buffer
	ch.Standup = nil

	if len(buffer) == 0 {
		return
	}
	lines := make([]string, len(buffer))
	for i, entry := range buffer {
		lines[i] = fmt.Sprintf("%s: %s", entry.Handle, entry.Text)
	}

	// The summary is exempt from the per-message length cap; it goes
	// through the store directly rather than MessageSend.
	msg := s.store.CreateMessage(store.Message{
		ChannelID: channelID,
		SenderID:  store.StandupBotID,
		Body:      strings.Join(lines, "\n"),
		CreatedAt: s.now().Unix(),
	})
	s.search.IndexMessage(messageRecord(msg))
}

// StandupActive reports whether a standup is running and when it ends.
func (s *Service) StandupActive(ctx context.Context, token string, channelID int) (StandupStatus, error) {
	actorID, err := s.authenticate(ctx, token)
	if err != nil {
		return StandupStatus{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	actor, err := s.actor(actorID)
	if err != nil {
		return StandupStatus{}, err
	}
	ch, ok := s.store.GetChannel(channelID)
	if !ok {
		return StandupStatus{}, inputError("channel does not exist")
	}
	if !perm.IsMember(actor, ch) {
		return StandupStatus{}, accessError("not a member of this channel")
	}

	if ch.Standup == nil {
		return StandupStatus{}, nil
	}
	return StandupStatus{Active: true, FinishAt: ch.Standup.FinishAt}, nil
}

// StandupSend buffers a line into the channel's active standup. Nothing
// is posted until the window closes.
func (s *Service) StandupSend(ctx context.Context, token string, channelID int, text string) error {
	actorID, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}
	if utf8.RuneCountInString(text) > maxMessageLen {
		return inputError("message must be at most 1000 characters")
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
	if ch.Standup == nil {
		return inputError("no standup is active in this channel")
	}

	ch.Standup.Buffer = append(ch.Standup.Buffer, store.StandupEntry{
		Handle: actor.Handle,
		Text:   text,
	})
	return nil
}
