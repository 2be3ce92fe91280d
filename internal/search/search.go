package search

// MessageRecord is the data indexed for a message. Hidden (not yet
// revealed) messages are never indexed, so they can never match.
type MessageRecord struct {
	ID        int    `json:"id"`
	ChannelID int    `json:"channelId"`
	SenderID  int    `json:"senderId"`
	Body      string `json:"body"`
	CreatedAt int64  `json:"createdAt"`
}

// Query describes a message search request. ChannelIDs restricts hits
// to channels the caller may read.
type Query struct {
	Text       string
	ChannelIDs []int
	Limit      int
}
