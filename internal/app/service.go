// Package app implements the workspace's mutation operations. Every
// operation follows the same shape: authenticate the token, resolve and
// validate the target entities, check the authorization predicates, and
// apply an invariant-preserving mutation — all of it, bar external I/O,
// inside the single mutation lock. A rejected operation leaves the
// graph untouched.
package app

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"huddle/api/internal/config"
	"huddle/api/internal/sched"
	"huddle/api/internal/search"
	"huddle/api/internal/session"
	"huddle/api/internal/store"
)

// Mailer delivers password-reset codes. Dispatch happens outside the
// mutation lock, after the code is committed.
type Mailer interface {
	IsConfigured() bool
	SendResetCode(to, handle, code string) error
}

type Service struct {
	cfg      config.Config
	store    *store.Store
	sessions *session.Manager
	sched    *sched.Scheduler
	search   *search.Service
	mailer   Mailer

	// mu serializes all entity-graph mutation. Scheduler callbacks
	// acquire it too and re-validate state before acting.
	mu sync.Mutex

	// epoch advances on every workspace reset, under mu. Timer
	// callbacks capture it at arm time and bail out when it has moved:
	// a callback that passed the scheduler's cancellation check and is
	// waiting on mu while a reset runs must not touch the new graph,
	// and entity re-validation alone cannot catch that because the
	// reset rewinds the id counters and ids get recycled.
	epoch uint64

	now func() time.Time
}

func New(cfg config.Config, st *store.Store, sessions *session.Manager, scheduler *sched.Scheduler, searcher *search.Service, mailer Mailer) *Service {
	return &Service{
		cfg:      cfg,
		store:    st,
		sessions: sessions,
		sched:    scheduler,
		search:   searcher,
		mailer:   mailer,
		now:      time.Now,
	}
}

type AuthResult struct {
	Token  string
	UserID int
}

type UserProfile struct {
	UserID          int
	Email           string
	NameFirst       string
	NameLast        string
	Handle          string
	Permission      store.Permission
	ProfileImageURL string
}

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

const (
	minPasswordLen = 6
	maxNameLen     = 50
	maxChannelName = 20
	maxMessageLen  = 1000
	minHandleLen   = 3
	maxHandleLen   = 20
)

// Register creates a user, derives a unique handle, and issues a
// session token. The first user ever registered becomes global owner.
func (s *Service) Register(ctx context.Context, email, password, nameFirst, nameLast string) (AuthResult, error) {
	email = strings.TrimSpace(email)
	if !emailPattern.MatchString(email) {
		return AuthResult{}, inputError("email is not valid")
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return AuthResult{}, inputError("password must be at least 6 characters")
	}
	if n := utf8.RuneCountInString(nameFirst); n < 1 || n > maxNameLen {
		return AuthResult{}, inputError("first name must be 1-50 characters")
	}
	if n := utf8.RuneCountInString(nameLast); n < 1 || n > maxNameLen {
		return AuthResult{}, inputError("last name must be 1-50 characters")
	}

	// bcrypt is deliberately slow; derive the digest before taking the
	// mutation lock.
	hash, err := s.sessions.HashPassword(password)
	if err != nil {
		return AuthResult{}, err
	}

	s.mu.Lock()
	if _, taken := s.store.GetUserByEmail(email); taken {
		s.mu.Unlock()
		return AuthResult{}, inputError("email already registered")
	}

	permission := store.PermMember
	if len(s.store.Users()) == 0 {
		permission = store.PermOwner
	}

	user := s.store.CreateUser(store.User{
		Email:        email,
		PasswordHash: hash,
		NameFirst:    nameFirst,
		NameLast:     nameLast,
		Handle:       s.generateHandle(nameFirst, nameLast),
		Permission:   permission,
	})
	userID, handle := user.ID, user.Handle
	s.mu.Unlock()

	token, err := s.sessions.IssueToken(userID, handle)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}
	return AuthResult{Token: token, UserID: userID}, nil
}

// generateHandle derives a unique handle from the name: lowercase
// alphanumeric first+last, cut to 20 characters. On collision the
// minimal trailing characters are replaced by an incrementing numeric
// suffix, so handles never exceed 20 characters. Caller holds mu.
func (s *Service) generateHandle(nameFirst, nameLast string) string {
	base := lowerAlnum(nameFirst + nameLast)
	if base == "" {
		base = "user"
	}
	if len(base) > maxHandleLen {
		base = base[:maxHandleLen]
	}

	candidate := base
	for n := 0; s.store.HandleTaken(candidate); n++ {
		suffix := strconv.Itoa(n)
		trimmed := base
		if len(trimmed)+len(suffix) > maxHandleLen {
			trimmed = trimmed[:maxHandleLen-len(suffix)]
		}
		candidate = trimmed + suffix
	}
	return candidate
}

func lowerAlnum(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Login authenticates by email and password and issues a fresh token.
func (s *Service) Login(ctx context.Context, email, password string) (AuthResult, error) {
	s.mu.Lock()
	user, ok := s.store.GetUserByEmail(strings.TrimSpace(email))
	var userID int
	var handle, hash string
	if ok {
		userID, handle, hash = user.ID, user.Handle, user.PasswordHash
	}
	s.mu.Unlock()

	if !ok || !s.sessions.CheckPassword(hash, password) {
		return AuthResult{}, inputError("email or password is incorrect")
	}

	token, err := s.sessions.IssueToken(userID, handle)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}
	return AuthResult{Token: token, UserID: userID}, nil
}

// Logout blacklists the presented token.
func (s *Service) Logout(ctx context.Context, token string) error {
	if _, err := s.authenticate(ctx, token); err != nil {
		return err
	}
	return s.sessions.RevokeToken(ctx, token)
}

// RequestPasswordReset generates a reset code and mails it. Unknown
// emails succeed silently with no observable difference, so the
// endpoint cannot be used to probe which accounts exist.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	s.mu.Lock()
	user, ok := s.store.GetUserByEmail(strings.TrimSpace(email))
	var userID int
	var handle, to string
	if ok {
		userID, handle, to = user.ID, user.Handle, user.Email
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}

	code, err := s.sessions.CreateResetCode(ctx, userID)
	if err != nil {
		return fmt.Errorf("create reset code: %w", err)
	}

	if s.mailer != nil && s.mailer.IsConfigured() {
		if err := s.mailer.SendResetCode(to, handle, code); err != nil {
			log.Printf("app: send reset code to user %d: %v", userID, err)
		}
	}
	return nil
}

// ResetPassword consumes a reset code and rewrites the password digest.
func (s *Service) ResetPassword(ctx context.Context, code, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return inputError("password must be at least 6 characters")
	}

	userID, err := s.sessions.ConsumeResetCode(ctx, code)
	if err == session.ErrCodeNotFound {
		return inputError("reset code is not valid")
	}
	if err != nil {
		return fmt.Errorf("consume reset code: %w", err)
	}

	hash, err := s.sessions.HashPassword(newPassword)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.store.GetUser(userID)
	if !ok {
		return inputError("reset code is not valid")
	}
	user.PasswordHash = hash
	return nil
}

// authenticate validates the token and returns the bound user id.
// Blacklist lookup may hit Redis, so this runs before the mutation
// lock; callers re-resolve the user under the lock.
func (s *Service) authenticate(ctx context.Context, token string) (int, error) {
	userID, err := s.sessions.ValidateToken(ctx, token)
	if err != nil {
		return 0, accessError("token is invalid or expired")
	}
	return userID, nil
}

// actor resolves an authenticated user id inside the critical section.
// A valid token whose user has since been removed is an access failure.
func (s *Service) actor(userID int) (*store.User, error) {
	if userID <= 0 {
		return nil, accessError("token is invalid or expired")
	}
	user, ok := s.store.GetUser(userID)
	if !ok {
		return nil, accessError("token user no longer exists")
	}
	return user, nil
}

// Profile returns any user's profile; the actor only needs a valid session.
func (s *Service) Profile(ctx context.Context, token string, userID int) (UserProfile, error) {
	actorID, err := s.authenticate(ctx, token)
	if err != nil {
		return UserProfile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.actor(actorID); err != nil {
		return UserProfile{}, err
	}
	user, ok := s.store.GetUser(userID)
	if !ok {
		return UserProfile{}, inputError("user does not exist")
	}
	return profileOf(user), nil
}

// ListUsers returns every registered user's profile.
func (s *Service) ListUsers(ctx context.Context, token string) ([]UserProfile, error) {
	actorID, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.actor(actorID); err != nil {
		return nil, err
	}
	users := s.store.Users()
	out := make([]UserProfile, len(users))
	for i, u := range users {
		out[i] = profileOf(u)
	}
	return out, nil
}

func profileOf(u *store.User) UserProfile {
	return UserProfile{
		UserID:          u.ID,
		Email:           u.Email,
		NameFirst:       u.NameFirst,
		NameLast:        u.NameLast,
		Handle:          u.Handle,
		Permission:      u.Permission,
		ProfileImageURL: u.ProfileImageURL,
	}
}

// SetName updates the actor's first and last name.
func (s *Service) SetName(ctx context.Context, token, nameFirst, nameLast string) error {
	actorID, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}
	if n := utf8.RuneCountInString(nameFirst); n < 1 || n > maxNameLen {
		return inputError("first name must be 1-50 characters")
	}
	if n := utf8.RuneCountInString(nameLast); n < 1 || n > maxNameLen {
		return inputError("last name must be 1-50 characters")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	actor, err := s.actor(actorID)
	if err != nil {
		return err
	}
	actor.NameFirst = nameFirst
	actor.NameLast = nameLast
	return nil
}

// SetEmail updates the actor's email address.
func (s *Service) SetEmail(ctx context.Context, token, email string) error {
	actorID, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}
	email = strings.TrimSpace(email)
	if !emailPattern.MatchString(email) {
		return inputError("email is not valid")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	actor, err := s.actor(actorID)
	if err != nil {
		return err
	}
	if existing, taken := s.store.GetUserByEmail(email); taken && existing.ID != actor.ID {
		return inputError("email already registered")
	}
	s.store.UpdateUserEmail(actor.ID, email)
	return nil
}

// SetHandle updates the actor's handle.
func (s *Service) SetHandle(ctx context.Context, token, handle string) error {
	actorID, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}
	if n := utf8.RuneCountInString(handle); n < minHandleLen || n > maxHandleLen {
		return inputError("handle must be 3-20 characters")
	}
	if lowerAlnum(handle) != handle {
		return inputError("handle must be lowercase alphanumeric")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	actor, err := s.actor(actorID)
	if err != nil {
		return err
	}
	if actor.Handle != handle && s.store.HandleTaken(handle) {
		return inputError("handle already taken")
	}
	s.store.UpdateUserHandle(actor.ID, handle)
	return nil
}

// Reset clears all core state: outstanding timers first (so no stale
// callback can mutate the new graph), then the entity graph, the token
// blacklist, the reset codes, and the search index. Reset is the only
// operation with no authorization requirement.
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.epoch++
	s.sched.CancelAll()
	s.store.Reset()
	s.mu.Unlock()

	if err := s.sessions.Reset(ctx); err != nil {
		return fmt.Errorf("reset session state: %w", err)
	}
	s.search.Clear()
	return nil
}

// StateSnapshot copies the entity graph for the persistence collaborator.
func (s *Service) StateSnapshot() store.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Snapshot()
}

// RestoreState replaces the entity graph from a snapshot and rebuilds
// the search index from the restored visible messages.
func (s *Service) RestoreState(snap store.Snapshot) {
	s.mu.Lock()
	s.store.Restore(snap)
	records := s.visibleMessageRecords()
	s.mu.Unlock()

	s.search.ReindexAll(records)
}

// visibleMessageRecords collects all non-hidden messages. Caller holds mu.
func (s *Service) visibleMessageRecords() []search.MessageRecord {
	var out []search.MessageRecord
	for _, ch := range s.store.Channels() {
		for _, m := range s.store.ChannelMessages(ch) {
			if m.Hidden {
				continue
			}
			out = append(out, messageRecord(m))
		}
	}
	return out
}

func messageRecord(m *store.Message) search.MessageRecord {
	return search.MessageRecord{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		SenderID:  m.SenderID,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
	}
}
