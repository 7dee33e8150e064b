// Package memory keeps bounded per-session conversation history for the
// stateful answer mode.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/tmc/langchaingo/llms"
	lcmemory "github.com/tmc/langchaingo/memory"
)

// Config bounds session history.
type Config struct {
	MaxHistory  int
	MaxSessions int
	TTL         time.Duration
}

// DefaultConfig returns the defaults used when memory is enabled.
func DefaultConfig() Config {
	return Config{
		MaxHistory:  10,
		MaxSessions: 1000,
		TTL:         30 * time.Minute,
	}
}

// Exchange is one user query and the system's reply.
type Exchange struct {
	Query    string
	Response string
}

// Store holds sessions in an LRU with idle expiry. Sessions are independent;
// the store lock only guards lookup and creation.
type Store struct {
	mu       sync.Mutex
	sessions *expirable.LRU[string, *Session]
	cfg      Config
}

// NewStore creates an empty session store.
func NewStore(cfg Config) *Store {
	def := DefaultConfig()
	if cfg.MaxHistory < 1 {
		cfg.MaxHistory = def.MaxHistory
	}
	if cfg.MaxSessions < 1 {
		cfg.MaxSessions = def.MaxSessions
	}
	return &Store{
		sessions: expirable.NewLRU[string, *Session](cfg.MaxSessions, nil, cfg.TTL),
		cfg:      cfg,
	}
}

// Session returns the session for id, creating it on first use.
func (s *Store) Session(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions.Get(id); ok {
		return sess
	}
	sess := &Session{
		id:         id,
		history:    lcmemory.NewChatMessageHistory(),
		maxHistory: s.cfg.MaxHistory,
	}
	s.sessions.Add(id, sess)
	return sess
}

// Clear drops the session for id. Clearing an unknown session is a no-op.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions.Remove(id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.sessions.Len()
}

// Session is one conversation. Callers serialize a whole exchange with
// Lock/Unlock so that reading history and appending the reply happen
// together.
type Session struct {
	sync.Mutex

	id         string
	history    *lcmemory.ChatMessageHistory
	maxHistory int
}

func (s *Session) ID() string {
	return s.id
}

// AddExchange appends an exchange and evicts the oldest ones past the
// configured maximum. The caller must hold the session lock.
func (s *Session) AddExchange(ctx context.Context, query, response string) error {
	if err := s.history.AddUserMessage(ctx, query); err != nil {
		return err
	}
	if err := s.history.AddAIMessage(ctx, response); err != nil {
		return err
	}

	msgs, err := s.history.Messages(ctx)
	if err != nil {
		return err
	}
	if limit := 2 * s.maxHistory; len(msgs) > limit {
		return s.history.SetMessages(ctx, msgs[len(msgs)-limit:])
	}
	return nil
}

// History returns the exchanges in chronological order. The caller must hold
// the session lock.
func (s *Session) History(ctx context.Context) ([]Exchange, error) {
	msgs, err := s.history.Messages(ctx)
	if err != nil {
		return nil, err
	}

	var out []Exchange
	for i := 0; i+1 < len(msgs); i += 2 {
		if msgs[i].GetType() != llms.ChatMessageTypeHuman || msgs[i+1].GetType() != llms.ChatMessageTypeAI {
			continue
		}
		out = append(out, Exchange{Query: msgs[i].GetContent(), Response: msgs[i+1].GetContent()})
	}
	return out, nil
}

// Clear empties the history. The caller must hold the session lock.
func (s *Session) Clear(ctx context.Context) error {
	return s.history.Clear(ctx)
}

// FormatForPrompt renders the most recent exchanges that fit in maxTokens
// under a "Chat History:" heading, oldest first. Tokens are estimated at four
// characters each. It returns "" when there is no history. The caller must
// hold the session lock.
func (s *Session) FormatForPrompt(ctx context.Context, maxTokens int) (string, error) {
	history, err := s.History(ctx)
	if err != nil {
		return "", err
	}
	return FormatHistory(history, maxTokens), nil
}

// FormatHistory is FormatForPrompt over an explicit exchange list.
func FormatHistory(history []Exchange, maxTokens int) string {
	if len(history) == 0 {
		return ""
	}

	var included []string
	tokens := 0
	for i := len(history) - 1; i >= 0; i-- {
		text := "User: " + history[i].Query + "\nSystem: " + history[i].Response + "\n"
		estimated := EstimateTokens(text)
		if tokens+estimated > maxTokens {
			break
		}
		tokens += estimated
		included = append(included, text)
	}

	var b strings.Builder
	b.WriteString("Chat History:\n")
	for i := len(included) - 1; i >= 0; i-- {
		b.WriteString(included[i])
	}
	return b.String()
}

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return len(text) / 4
}
