package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-widget/backend/internal/model/chat"
	"github.com/zhouzirui/chat-widget/backend/internal/model/widget"
	"github.com/zhouzirui/chat-widget/backend/internal/service/reply"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrEmptyMessage       = errors.New("message text is required")
	ErrUnknownSuggestion  = errors.New("suggestion not configured")
	ErrWidgetUnavailable  = errors.New("widget configuration unavailable")
	ErrPlaceholderMissing = errors.New("thinking placeholder already removed")
)

const subscriberBuffer = 32

// ConfigProvider exposes the loaded widget configuration.
type ConfigProvider interface {
	Current() (*widget.Config, bool)
}

// Resolver produces bot replies for free text.
type Resolver interface {
	Resolve(ctx context.Context, cfg *widget.Config, text string) reply.Result
}

// Service encapsulates widget session state and the conversation flows.
type Service struct {
	configs  ConfigProvider
	resolver Resolver
	sleep    func(ctx context.Context, d time.Duration) error

	mu          sync.RWMutex
	sessions    map[string]chat.Session
	messages    map[string][]chat.Message
	subscribers map[string]map[chan chat.Event]struct{}
}

// NewService bootstraps the in-memory widget service.
func NewService(configs ConfigProvider, resolver Resolver) *Service {
	return &Service{
		configs:     configs,
		resolver:    resolver,
		sleep:       sleepContext,
		sessions:    make(map[string]chat.Session),
		messages:    make(map[string][]chat.Message),
		subscribers: make(map[string]map[chan chat.Event]struct{}),
	}
}

// CreateSession provisions a hidden widget instance with an empty transcript.
func (s *Service) CreateSession(_ context.Context) (chat.Session, error) {
	session := chat.Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.messages[session.ID] = make([]chat.Message, 0, 16)
	s.mu.Unlock()

	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// LoadTranscript returns stored messages for the provided session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// Toggle flips the widget visibility.
func (s *Service) Toggle(_ context.Context, sessionID string) (chat.Session, error) {
	return s.updateVisibility(sessionID, func(current bool) bool { return !current })
}

// SetVisible opens or closes the widget. The first time it opens, the
// configured greeting is appended to the transcript.
func (s *Service) SetVisible(_ context.Context, sessionID string, visible bool) (chat.Session, error) {
	return s.updateVisibility(sessionID, func(bool) bool { return visible })
}

// updateVisibility applies next to the current flag under the write lock.
func (s *Service) updateVisibility(sessionID string, next func(current bool) bool) (chat.Session, error) {
	cfg, ok := s.configs.Current()
	if !ok {
		return chat.Session{}, ErrWidgetUnavailable
	}

	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return chat.Session{}, ErrSessionNotFound
	}

	visible := next(session.Visible)
	changed := session.Visible != visible
	session.Visible = visible

	var greeting *chat.Message
	if visible && !session.GreetingShown {
		session.GreetingShown = true
		msg := s.appendLocked(sessionID, chat.SenderBot, cfg.DefaultMessage, false)
		greeting = &msg
	}
	s.sessions[sessionID] = session
	s.mu.Unlock()

	if changed {
		s.publish(chat.Event{Type: chat.EventVisibilityChanged, SessionID: sessionID, Visible: &visible})
	}
	if greeting != nil {
		s.publish(chat.Event{Type: chat.EventMessageAdded, SessionID: sessionID, Message: greeting})
	}

	return session, nil
}

// Submit runs the free-text flow: record the visitor message, show a thinking
// placeholder, resolve a reply and record it. The placeholder is removed on
// every path. Once the visitor message is recorded, cancelling ctx no longer
// aborts the flow.
func (s *Service) Submit(ctx context.Context, sessionID, text string) (chat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chat.Message{}, ErrEmptyMessage
	}

	cfg, ok := s.configs.Current()
	if !ok {
		return chat.Message{}, ErrWidgetUnavailable
	}
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}
	ctx = context.WithoutCancel(ctx)

	if _, err := s.append(sessionID, chat.SenderUser, text, false); err != nil {
		return chat.Message{}, err
	}

	result, err := s.withPlaceholder(sessionID, func() (string, error) {
		res := s.resolver.Resolve(ctx, cfg, text)
		log.Debug().Str("session", sessionID).Str("source", string(res.Source)).Msg("reply resolved")
		return res.Text, nil
	})
	if err != nil {
		return chat.Message{}, err
	}

	return s.append(sessionID, chat.SenderBot, result, false)
}

// SelectSuggestion runs the suggestion-button flow. The canned reply is shown
// after the configured thinking delay and never reaches the network. Like
// Submit, the flow always completes once the visitor message is recorded.
func (s *Service) SelectSuggestion(ctx context.Context, sessionID, prompt string) (chat.Message, error) {
	cfg, ok := s.configs.Current()
	if !ok {
		return chat.Message{}, ErrWidgetUnavailable
	}

	answer, ok := cfg.CannedResponse(prompt)
	if !ok {
		return chat.Message{}, ErrUnknownSuggestion
	}
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}
	ctx = context.WithoutCancel(ctx)

	if _, err := s.append(sessionID, chat.SenderUser, prompt, false); err != nil {
		return chat.Message{}, err
	}

	result, err := s.withPlaceholder(sessionID, func() (string, error) {
		if err := s.sleep(ctx, cfg.ThinkingDelay()); err != nil {
			return "", err
		}
		return answer, nil
	})
	if err != nil {
		return chat.Message{}, err
	}

	return s.append(sessionID, chat.SenderBot, result, false)
}

// withPlaceholder appends a thinking placeholder, runs work and removes the
// placeholder exactly once whatever work returns.
func (s *Service) withPlaceholder(sessionID string, work func() (string, error)) (string, error) {
	placeholder, err := s.append(sessionID, chat.SenderBot, "", true)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := s.remove(sessionID, placeholder.ID); err != nil {
			log.Warn().Err(err).Str("session", sessionID).Msg("failed to remove thinking placeholder")
		}
	}()

	return work()
}

// Subscribe registers a listener for session events. The returned func
// unregisters it and closes the channel. Events are dropped for listeners
// that fall behind.
func (s *Service) Subscribe(sessionID string) (<-chan chat.Event, func(), error) {
	ch := make(chan chat.Event, subscriberBuffer)

	s.mu.Lock()
	if _, ok := s.sessions[sessionID]; !ok {
		s.mu.Unlock()
		return nil, nil, ErrSessionNotFound
	}
	if s.subscribers[sessionID] == nil {
		s.subscribers[sessionID] = make(map[chan chat.Event]struct{})
	}
	s.subscribers[sessionID][ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers[sessionID], ch)
			if len(s.subscribers[sessionID]) == 0 {
				delete(s.subscribers, sessionID)
			}
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}

func (s *Service) append(sessionID string, sender chat.Sender, content string, thinking bool) (chat.Message, error) {
	s.mu.Lock()
	if _, ok := s.sessions[sessionID]; !ok {
		s.mu.Unlock()
		return chat.Message{}, ErrSessionNotFound
	}
	msg := s.appendLocked(sessionID, sender, content, thinking)
	s.mu.Unlock()

	s.publish(chat.Event{Type: chat.EventMessageAdded, SessionID: sessionID, Message: &msg})
	return msg, nil
}

func (s *Service) appendLocked(sessionID string, sender chat.Sender, content string, thinking bool) chat.Message {
	msg := chat.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Sender:    sender,
		Content:   content,
		Thinking:  thinking,
		CreatedAt: time.Now().UTC(),
	}
	s.messages[sessionID] = append(s.messages[sessionID], msg)
	return msg
}

func (s *Service) remove(sessionID, messageID string) error {
	s.mu.Lock()
	messages := s.messages[sessionID]
	idx := -1
	for i, msg := range messages {
		if msg.ID == messageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return ErrPlaceholderMissing
	}
	removed := messages[idx]
	s.messages[sessionID] = append(messages[:idx:idx], messages[idx+1:]...)
	s.mu.Unlock()

	s.publish(chat.Event{Type: chat.EventMessageRemoved, SessionID: sessionID, Message: &removed})
	return nil
}

// publish must be called without holding s.mu.
func (s *Service) publish(event chat.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for ch := range s.subscribers[event.SessionID] {
		select {
		case ch <- event:
		default:
			log.Warn().Str("session", event.SessionID).Str("event", string(event.Type)).Msg("subscriber lagging, event dropped")
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
