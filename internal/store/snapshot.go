package store

import "strings"

// Snapshot is a plain serializable copy of the full entity graph,
// including the id counters so restored workspaces keep allocating
// past any id ever issued.
type Snapshot struct {
	Users    []User    `json:"users"`
	Channels []Channel `json:"channels"`
	Messages []Message `json:"messages"`

	NextUserID    int `json:"nextUserId"`
	NextChannelID int `json:"nextChannelId"`
	NextMessageID int `json:"nextMessageId"`
}

// Snapshot deep-copies the current graph.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		NextUserID:    s.nextUserID,
		NextChannelID: s.nextChannelID,
		NextMessageID: s.nextMessageID,
	}
	for _, u := range s.Users() {
		snap.Users = append(snap.Users, *u)
	}
	for _, ch := range s.Channels() {
		c := *ch
		c.OwnerIDs = append([]int(nil), ch.OwnerIDs...)
		c.MemberIDs = append([]int(nil), ch.MemberIDs...)
		c.MessageIDs = append([]int(nil), ch.MessageIDs...)
		if ch.Standup != nil {
			st := *ch.Standup
			st.Buffer = append([]StandupEntry(nil), ch.Standup.Buffer...)
			c.Standup = &st
		}
		snap.Channels = append(snap.Channels, c)
	}
	for _, ch := range s.Channels() {
		for _, m := range s.ChannelMessages(ch) {
			msg := *m
			msg.Reacts = make([]React, len(m.Reacts))
			for i, r := range m.Reacts {
				msg.Reacts[i] = React{Type: r.Type, UserIDs: append([]int(nil), r.UserIDs...)}
			}
			snap.Messages = append(snap.Messages, msg)
		}
	}
	return snap
}

// Restore replaces the entire graph with the snapshot's contents.
func (s *Store) Restore(snap Snapshot) {
	s.Reset()
	for _, u := range snap.Users {
		stored := u
		s.users[u.ID] = &stored
		s.usersByEmail[strings.ToLower(u.Email)] = u.ID
		s.usersByHandle[u.Handle] = u.ID
	}
	for _, ch := range snap.Channels {
		stored := ch
		s.channels[ch.ID] = &stored
	}
	for _, m := range snap.Messages {
		stored := m
		s.messages[m.ID] = &stored
	}
	s.nextUserID = snap.NextUserID
	s.nextChannelID = snap.NextChannelID
	s.nextMessageID = snap.NextMessageID
}
