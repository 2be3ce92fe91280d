// Package store owns the canonical in-memory entity graph. Entities are
// arena-owned: cross-references are plain integer ids resolved through
// lookups, never pointers between entities, so deletion and sentinel
// substitution cannot leave anything dangling.
//
// The store performs no locking of its own. Callers (the app service)
// serialize all access behind a single mutation lock.
package store

import (
	"sort"
	"strings"
)

type Store struct {
	users    map[int]*User
	channels map[int]*Channel
	messages map[int]*Message

	usersByEmail  map[string]int
	usersByHandle map[string]int

	// Counters only ever advance, even across deletions, so ids are
	// never reused within a workspace lifetime.
	nextUserID    int
	nextChannelID int
	nextMessageID int
}

func New() *Store {
	s := &Store{}
	s.Reset()
	return s
}

// Reset clears every collection and rewinds all id counters.
func (s *Store) Reset() {
	s.users = make(map[int]*User)
	s.channels = make(map[int]*Channel)
	s.messages = make(map[int]*Message)
	s.usersByEmail = make(map[string]int)
	s.usersByHandle = make(map[string]int)
	s.nextUserID = 0
	s.nextChannelID = 0
	s.nextMessageID = 0
}

// CreateUser allocates a fresh id, inserts the user, and returns the
// stored record. Email and handle uniqueness is the caller's concern;
// the store indexes whatever it is given.
func (s *Store) CreateUser(u User) *User {
	s.nextUserID++
	u.ID = s.nextUserID
	stored := &u
	s.users[u.ID] = stored
	s.usersByEmail[strings.ToLower(u.Email)] = u.ID
	s.usersByHandle[u.Handle] = u.ID
	return stored
}

// GetUser resolves id to a user. Reserved negative ids resolve to
// synthesized records so message history stays renderable after user
// removal and standup summaries have an author.
func (s *Store) GetUser(id int) (*User, bool) {
	switch id {
	case DeletedUserID:
		return &User{ID: DeletedUserID, NameFirst: "Removed", NameLast: "user", Handle: "removeduser", Permission: PermMember}, true
	case StandupBotID:
		return &User{ID: StandupBotID, NameFirst: "Standup", NameLast: "bot", Handle: "standupbot", Permission: PermMember}, true
	}
	u, ok := s.users[id]
	return u, ok
}

func (s *Store) GetUserByEmail(email string) (*User, bool) {
	id, ok := s.usersByEmail[strings.ToLower(email)]
	if !ok {
		return nil, false
	}
	return s.users[id], true
}

func (s *Store) HandleTaken(handle string) bool {
	_, ok := s.usersByHandle[handle]
	return ok
}

// Users returns all registered users ordered by ascending id.
func (s *Store) Users() []*User {
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateUserEmail rewrites a user's email and keeps the index in step.
func (s *Store) UpdateUserEmail(id int, email string) {
	u, ok := s.users[id]
	if !ok {
		return
	}
	delete(s.usersByEmail, strings.ToLower(u.Email))
	u.Email = email
	s.usersByEmail[strings.ToLower(email)] = id
}

// UpdateUserHandle rewrites a user's handle and keeps the index in step.
func (s *Store) UpdateUserHandle(id int, handle string) {
	u, ok := s.users[id]
	if !ok {
		return
	}
	delete(s.usersByHandle, u.Handle)
	u.Handle = handle
	s.usersByHandle[handle] = id
}

// DeleteUser cascades: the user leaves every channel's member and owner
// sets, every message they sent is re-attributed to the deleted-user
// sentinel, and the identity itself is removed. Messages, reacts, and
// channels survive.
func (s *Store) DeleteUser(id int) {
	u, ok := s.users[id]
	if !ok {
		return
	}
	for _, ch := range s.channels {
		ch.OwnerIDs = removeID(ch.OwnerIDs, id)
		ch.MemberIDs = removeID(ch.MemberIDs, id)
	}
	for _, m := range s.messages {
		if m.SenderID == id {
			m.SenderID = DeletedUserID
		}
	}
	delete(s.usersByEmail, strings.ToLower(u.Email))
	delete(s.usersByHandle, u.Handle)
	delete(s.users, id)
}

// CreateChannel allocates a fresh id and inserts the channel with the
// creator in both the owner and member sets.
func (s *Store) CreateChannel(name string, isPublic bool, creatorID int) *Channel {
	s.nextChannelID++
	ch := &Channel{
		ID:        s.nextChannelID,
		Name:      name,
		IsPublic:  isPublic,
		OwnerIDs:  []int{creatorID},
		MemberIDs: []int{creatorID},
	}
	s.channels[ch.ID] = ch
	return ch
}

func (s *Store) GetChannel(id int) (*Channel, bool) {
	ch, ok := s.channels[id]
	return ch, ok
}

// Channels returns all channels ordered by ascending id.
func (s *Store) Channels() []*Channel {
	out := make([]*Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CreateMessage allocates a fresh id, inserts the message, and appends
// it to the owning channel's ordered list.
func (s *Store) CreateMessage(m Message) *Message {
	s.nextMessageID++
	m.ID = s.nextMessageID
	stored := &m
	s.messages[m.ID] = stored
	if ch, ok := s.channels[m.ChannelID]; ok {
		ch.MessageIDs = append(ch.MessageIDs, m.ID)
	}
	return stored
}

func (s *Store) GetMessage(id int) (*Message, bool) {
	m, ok := s.messages[id]
	return m, ok
}

// DeleteMessage removes a message from the arena and from its channel's
// ordered list.
func (s *Store) DeleteMessage(id int) {
	m, ok := s.messages[id]
	if !ok {
		return
	}
	if ch, chOK := s.channels[m.ChannelID]; chOK {
		ch.MessageIDs = removeID(ch.MessageIDs, id)
	}
	delete(s.messages, id)
}

// ChannelMessages returns a channel's messages in append order.
func (s *Store) ChannelMessages(ch *Channel) []*Message {
	out := make([]*Message, 0, len(ch.MessageIDs))
	for _, id := range ch.MessageIDs {
		if m, ok := s.messages[id]; ok {
			out = append(out, m)
		}
	}
	return out
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
