package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"huddle/api/internal/search"
	"huddle/api/internal/store"
)

// channelWith registers a user and a channel they own; returned ids are
// ready for message operations.
func channelWith(t *testing.T, svc *Service, email string) (AuthResult, int) {
	t.Helper()
	res := register(t, svc, email, "Ada", "Lovelace")
	chID, err := svc.ChannelCreate(context.Background(), res.Token, "general", true)
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	return res, chID
}

func TestMessageSendAndList(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	ada, chID := channelWith(t, svc, "ada@example.com")
	grace := register(t, svc, "grace@example.com", "Grace", "Hopper")

	if _, err := svc.MessageSend(ctx, ada.Token, chID, ""); !IsInputError(err) {
		t.Errorf("empty message: got %v, want input error", err)
	}
	if _, err := svc.MessageSend(ctx, ada.Token, chID, strings.Repeat("x", 1001)); !IsInputError(err) {
		t.Errorf("oversize message: got %v, want input error", err)
	}
	if _, err := svc.MessageSend(ctx, grace.Token, chID, "hi"); !IsAccessError(err) {
		t.Errorf("non-member send: got %v, want access error", err)
	}

	first, err := svc.MessageSend(ctx, ada.Token, chID, "first")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	second, err := svc.MessageSend(ctx, ada.Token, chID, "second")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if second <= first {
		t.Errorf("message ids not increasing: %d then %d", first, second)
	}

	if _, err := svc.MessagesList(ctx, grace.Token, chID); !IsAccessError(err) {
		t.Fatalf("non-member list: got %v, want access error", err)
	}
	msgs, err := svc.MessagesList(ctx, ada.Token, chID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Body != "first" || msgs[1].Body != "second" {
		t.Errorf("messages = %+v", msgs)
	}
	if msgs[0].SenderID != ada.UserID {
		t.Errorf("sender = %d, want %d", msgs[0].SenderID, ada.UserID)
	}
}

func TestMessageEditAndRemove(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	ada, chID := channelWith(t, svc, "ada@example.com")
	grace := register(t, svc, "grace@example.com", "Grace", "Hopper")
	if err := svc.ChannelJoin(ctx, grace.Token, chID); err != nil {
		t.Fatalf("join: %v", err)
	}

	msgID, err := svc.MessageSend(ctx, grace.Token, chID, "draft")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	joan := register(t, svc, "joan@example.com", "Joan", "Clarke")
	if err := svc.ChannelJoin(ctx, joan.Token, chID); err != nil {
		t.Fatalf("join: %v", err)
	}
	// A plain member may only act on their own messages.
	if err := svc.MessageEdit(ctx, joan.Token, msgID, "hijacked"); !IsAccessError(err) {
		t.Errorf("edit by other member: got %v, want access error", err)
	}
	if err := svc.MessageRemove(ctx, joan.Token, msgID); !IsAccessError(err) {
		t.Errorf("remove by other member: got %v, want access error", err)
	}

	if err := svc.MessageEdit(ctx, grace.Token, msgID, "final"); err != nil {
		t.Fatalf("edit by sender: %v", err)
	}
	// The channel owner can act on anyone's message.
	if err := svc.MessageEdit(ctx, ada.Token, msgID, "moderated"); err != nil {
		t.Fatalf("edit by channel owner: %v", err)
	}

	// Editing to an empty body removes the message.
	if err := svc.MessageEdit(ctx, grace.Token, msgID, ""); err != nil {
		t.Fatalf("edit to empty: %v", err)
	}
	if err := svc.MessageEdit(ctx, grace.Token, msgID, "again"); !IsInputError(err) {
		t.Errorf("edit deleted message: got %v, want input error", err)
	}

	msgID, err = svc.MessageSend(ctx, grace.Token, chID, "to remove")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := svc.MessageRemove(ctx, grace.Token, msgID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	msgs, err := svc.MessagesList(ctx, ada.Token, chID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("messages after removals = %+v, want none", msgs)
	}
}

func TestMessageReacts(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	ada, chID := channelWith(t, svc, "ada@example.com")
	grace := register(t, svc, "grace@example.com", "Grace", "Hopper")
	if err := svc.ChannelJoin(ctx, grace.Token, chID); err != nil {
		t.Fatalf("join: %v", err)
	}

	msgID, err := svc.MessageSend(ctx, ada.Token, chID, "react to this")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := svc.MessageReact(ctx, ada.Token, msgID, 42); !IsInputError(err) {
		t.Errorf("unknown react type: got %v, want input error", err)
	}
	if err := svc.MessageReact(ctx, ada.Token, msgID, store.ReactThumbsUp); err != nil {
		t.Fatalf("react: %v", err)
	}
	if err := svc.MessageReact(ctx, ada.Token, msgID, store.ReactThumbsUp); !IsInputError(err) {
		t.Errorf("duplicate react: got %v, want input error", err)
	}
	if err := svc.MessageReact(ctx, grace.Token, msgID, store.ReactThumbsUp); err != nil {
		t.Fatalf("second user react: %v", err)
	}

	msgs, err := svc.MessagesList(ctx, ada.Token, chID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 || len(msgs[0].Reacts) != 1 {
		t.Fatalf("messages = %+v", msgs)
	}
	react := msgs[0].Reacts[0]
	if react.Type != store.ReactThumbsUp || len(react.UserIDs) != 2 || !react.ActorReacted {
		t.Errorf("react = %+v", react)
	}

	if err := svc.MessageUnreact(ctx, ada.Token, msgID, store.ReactThumbsUp); err != nil {
		t.Fatalf("unreact: %v", err)
	}
	if err := svc.MessageUnreact(ctx, ada.Token, msgID, store.ReactThumbsUp); !IsInputError(err) {
		t.Errorf("unreact twice: got %v, want input error", err)
	}
	if err := svc.MessageUnreact(ctx, grace.Token, msgID, store.ReactThumbsUp); err != nil {
		t.Fatalf("unreact: %v", err)
	}

	// A react with no remaining users disappears from the message.
	msgs, err = svc.MessagesList(ctx, ada.Token, chID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs[0].Reacts) != 0 {
		t.Errorf("reacts after all withdrawn = %+v, want none", msgs[0].Reacts)
	}
}

func TestMessagePinning(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	ada, chID := channelWith(t, svc, "ada@example.com")
	grace := register(t, svc, "grace@example.com", "Grace", "Hopper")
	if err := svc.ChannelJoin(ctx, grace.Token, chID); err != nil {
		t.Fatalf("join: %v", err)
	}

	msgID, err := svc.MessageSend(ctx, grace.Token, chID, "important")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	// Pinning needs channel-administration rights, even on own messages.
	if err := svc.MessagePin(ctx, grace.Token, msgID); !IsAccessError(err) {
		t.Fatalf("pin by plain member: got %v, want access error", err)
	}
	if err := svc.MessageUnpin(ctx, ada.Token, msgID); !IsInputError(err) {
		t.Errorf("unpin unpinned: got %v, want input error", err)
	}
	if err := svc.MessagePin(ctx, ada.Token, msgID); err != nil {
		t.Fatalf("pin: %v", err)
	}
	if err := svc.MessagePin(ctx, ada.Token, msgID); !IsInputError(err) {
		t.Errorf("re-pin: got %v, want input error", err)
	}

	msgs, err := svc.MessagesList(ctx, ada.Token, chID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !msgs[0].Pinned {
		t.Error("message not pinned")
	}

	if err := svc.MessageUnpin(ctx, ada.Token, msgID); err != nil {
		t.Fatalf("unpin: %v", err)
	}
}

func TestMessageSendLater(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	ada, chID := channelWith(t, svc, "ada@example.com")

	past := time.Now().Add(-time.Minute).Unix()
	if _, err := svc.MessageSendLater(ctx, ada.Token, chID, "too late", past); !IsInputError(err) {
		t.Fatalf("past send time: got %v, want input error", err)
	}

	sendAt := time.Now().Add(1 * time.Second).Unix()
	msgID, err := svc.MessageSendLater(ctx, ada.Token, chID, "scheduled", sendAt)
	if err != nil {
		t.Fatalf("send later: %v", err)
	}
	if msgID <= 0 {
		t.Fatalf("message id = %d", msgID)
	}

	// Hidden until the timer fires.
	msgs, err := svc.MessagesList(ctx, ada.Token, chID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("messages before reveal = %+v, want none", msgs)
	}

	time.Sleep(1500 * time.Millisecond)

	msgs, err = svc.MessagesList(ctx, ada.Token, chID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != msgID || msgs[0].Body != "scheduled" {
		t.Fatalf("messages after reveal = %+v", msgs)
	}
}

func TestMessageSendLaterCanBeRemovedBeforeReveal(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	ada, chID := channelWith(t, svc, "ada@example.com")

	sendAt := time.Now().Add(1 * time.Second).Unix()
	msgID, err := svc.MessageSendLater(ctx, ada.Token, chID, "never mind", sendAt)
	if err != nil {
		t.Fatalf("send later: %v", err)
	}
	if err := svc.MessageRemove(ctx, ada.Token, msgID); err != nil {
		t.Fatalf("remove before reveal: %v", err)
	}

	// The timer fires against a deleted message and does nothing.
	time.Sleep(1500 * time.Millisecond)
	msgs, err := svc.MessagesList(ctx, ada.Token, chID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("messages = %+v, want none", msgs)
	}
}

func TestDelayedMessageTimerCannotOutliveReset(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	ada, chID := channelWith(t, svc, "ada@example.com")
	sendAt := time.Now().Add(1 * time.Second).Unix()
	msgID, err := svc.MessageSendLater(ctx, ada.Token, chID, "stale", sendAt)
	if err != nil {
		t.Fatalf("send later: %v", err)
	}

	// Hold the mutation lock across the fire moment, reset under it,
	// and rebuild a hidden message on the recycled id before the stale
	// callback gets the lock.
	svc.mu.Lock()
	time.Sleep(1200 * time.Millisecond)
	svc.epoch++
	svc.sched.CancelAll()
	svc.store.Reset()
	u := svc.store.CreateUser(store.User{
		Email:      "grace@example.com",
		NameFirst:  "Grace",
		NameLast:   "Hopper",
		Handle:     "gracehopper",
		Permission: store.PermOwner,
	})
	ch := svc.store.CreateChannel("general", true, u.ID)
	m := svc.store.CreateMessage(store.Message{
		ChannelID: ch.ID,
		SenderID:  u.ID,
		Body:      "scheduled after reset",
		CreatedAt: time.Now().Add(time.Hour).Unix(),
		Hidden:    true,
	})
	if m.ID != msgID {
		svc.mu.Unlock()
		t.Fatalf("recycled message id = %d, want %d", m.ID, msgID)
	}
	svc.mu.Unlock()

	time.Sleep(100 * time.Millisecond)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if !m.Hidden {
		t.Fatal("stale timer revealed the post-reset message on the recycled id")
	}
}

func TestSearchHitsRevalidatedAgainstLiveState(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	ada, chID := channelWith(t, svc, "ada@example.com")
	grace := register(t, svc, "grace@example.com", "Grace", "Hopper")
	if err := svc.ChannelJoin(ctx, grace.Token, chID); err != nil {
		t.Fatalf("join: %v", err)
	}
	msgID, err := svc.MessageSend(ctx, ada.Token, chID, "quarterly numbers")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := svc.ChannelLeave(ctx, grace.Token, chID); err != nil {
		t.Fatalf("leave: %v", err)
	}

	// Index hits carry state from before the lock was re-acquired; a
	// hit in a channel the actor has since left must not surface.
	records := []search.MessageRecord{{ID: msgID, ChannelID: chID, SenderID: ada.UserID, Body: "quarterly numbers"}}

	svc.mu.Lock()
	hits, err := svc.resolveSearchHits(grace.UserID, records)
	svc.mu.Unlock()
	if err != nil {
		t.Fatalf("resolve hits: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("hits for departed member = %+v, want none", hits)
	}

	svc.mu.Lock()
	hits, err = svc.resolveSearchHits(ada.UserID, records)
	svc.mu.Unlock()
	if err != nil {
		t.Fatalf("resolve hits: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != msgID {
		t.Errorf("hits for member = %+v, want message %d", hits, msgID)
	}
}

func TestSearchMessagesFallbackScan(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	ada, chID := channelWith(t, svc, "ada@example.com")
	grace := register(t, svc, "grace@example.com", "Grace", "Hopper")
	otherID, err := svc.ChannelCreate(ctx, grace.Token, "private", false)
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}

	if _, err := svc.MessageSend(ctx, ada.Token, chID, "deploy the Compiler"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.MessageSend(ctx, ada.Token, chID, "lunch plans"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.MessageSend(ctx, grace.Token, otherID, "compiler secrets"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if _, err := svc.SearchMessages(ctx, ada.Token, ""); !IsInputError(err) {
		t.Fatalf("empty query: got %v, want input error", err)
	}

	// Matching is case-insensitive and scoped to the actor's channels.
	hits, err := svc.SearchMessages(ctx, ada.Token, "compiler")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].Body != "deploy the Compiler" {
		t.Errorf("hits = %+v", hits)
	}

	hits, err = svc.SearchMessages(ctx, grace.Token, "compiler")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].ChannelID != otherID {
		t.Errorf("hits = %+v", hits)
	}
}
