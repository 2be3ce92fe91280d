package store

// Permission is a user's workspace-wide permission level.
type Permission int

const (
	PermOwner  Permission = 1
	PermMember Permission = 2
)

// Reserved user ids. Negative ids never collide with the monotonic
// counter and are synthesized by GetUser rather than stored.
const (
	DeletedUserID  = -1
	StandupBotID   = -2
)

// Recognized reaction types.
const (
	ReactThumbsUp = 1
	ReactHeart    = 2
	ReactLaugh    = 3
)

// ValidReactType reports whether id is a recognized reaction type.
func ValidReactType(id int) bool {
	return id == ReactThumbsUp || id == ReactHeart || id == ReactLaugh
}

type User struct {
	ID              int        `json:"id"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"passwordHash"`
	NameFirst       string     `json:"nameFirst"`
	NameLast        string     `json:"nameLast"`
	Handle          string     `json:"handle"`
	Permission      Permission `json:"permission"`
	ProfileImageURL string     `json:"profileImageUrl"`
}

type Channel struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	IsPublic  bool   `json:"isPublic"`
	OwnerIDs  []int  `json:"ownerIds"`
	MemberIDs []int  `json:"memberIds"`
	// MessageIDs holds the channel's messages in append order; the
	// messages themselves live in the store arena.
	MessageIDs []int    `json:"messageIds"`
	Standup    *Standup `json:"standup,omitempty"`
}

// Standup is a channel's active standup window, nil when inactive.
type Standup struct {
	StarterID int            `json:"starterId"`
	FinishAt  int64          `json:"finishAt"`
	Buffer    []StandupEntry `json:"buffer"`
}

type StandupEntry struct {
	Handle string `json:"handle"`
	Text   string `json:"text"`
}

// Message is a channel post. User-sent bodies are capped at 1000
// characters by the mutation layer; standup summaries are system-posted
// by the standup bot and exempt from the cap, since they join a whole
// window of buffered lines into one body.
type Message struct {
	ID        int     `json:"id"`
	ChannelID int     `json:"channelId"`
	SenderID  int     `json:"senderId"`
	Body      string  `json:"body"`
	CreatedAt int64   `json:"createdAt"`
	Reacts    []React `json:"reacts"`
	Pinned    bool    `json:"pinned"`
	Hidden    bool    `json:"hidden"`
}

// React pairs a reaction type with the users who applied it. A react
// with an empty user set is removed from the message.
type React struct {
	Type    int   `json:"type"`
	UserIDs []int `json:"userIds"`
}
