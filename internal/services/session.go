package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"random-photo-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Session is a created screen session and its access token
type Session struct {
	ID        string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionService handles screen sessions and their tokens
type SessionService struct {
	mu        sync.RWMutex
	screens   map[string]*Screen
	deps      ScreenDeps
	jwtSecret string
	ttl       time.Duration
	ctx       context.Context
}

// NewSessionService creates a new session service. Screens are derived from ctx.
func NewSessionService(ctx context.Context, deps ScreenDeps, jwtSecret string, ttl time.Duration) *SessionService {
	return &SessionService{
		screens:   make(map[string]*Screen),
		deps:      deps,
		jwtSecret: jwtSecret,
		ttl:       ttl,
		ctx:       ctx,
	}
}

// Create opens a new screen session and starts its first load
func (s *SessionService) Create() (*Session, error) {
	sessionID := uuid.New().String()
	expiresAt := time.Now().Add(s.ttl)

	token, err := s.GenerateJWT(sessionID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	screen := NewScreen(s.ctx, sessionID, s.deps)

	s.mu.Lock()
	s.screens[sessionID] = screen
	s.mu.Unlock()

	screen.Start()

	log.Info().Str("session_id", sessionID).Msg("Session created")

	return &Session{ID: sessionID, Token: token, ExpiresAt: expiresAt}, nil
}

// GenerateJWT generates a JWT token for a session
func (s *SessionService) GenerateJWT(sessionID string, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"session_id": sessionID,
		"exp":        expiresAt.Unix(),
		"iat":        time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the session ID
func (s *SessionService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	sessionID, ok := claims["session_id"].(string)
	if !ok {
		return "", fmt.Errorf("session_id not found in token")
	}

	return sessionID, nil
}

// Get returns the screen of a live session
func (s *SessionService) Get(sessionID string) (*Screen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	screen, ok := s.screens[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}
	return screen, nil
}

// Destroy tears down a session's screen
func (s *SessionService) Destroy(sessionID string) error {
	s.mu.Lock()
	screen, ok := s.screens[sessionID]
	delete(s.screens, sessionID)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}

	screen.Destroy()
	return nil
}

// Count returns the number of live sessions
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.screens)
}

// Reap destroys sessions idle for longer than the session TTL
func (s *SessionService) Reap(now time.Time) int {
	var idle []string

	s.mu.RLock()
	for id, screen := range s.screens {
		if now.Sub(screen.LastSeen()) > s.ttl {
			idle = append(idle, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range idle {
		if err := s.Destroy(id); err == nil {
			log.Info().Str("session_id", id).Msg("Idle session reaped")
		}
	}
	return len(idle)
}

// Run reaps idle sessions every interval until ctx is done, then destroys the rest
func (s *SessionService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case now := <-ticker.C:
			s.Reap(now)
		}
	}
}

func (s *SessionService) closeAll() {
	s.mu.Lock()
	screens := s.screens
	s.screens = make(map[string]*Screen)
	s.mu.Unlock()

	for _, screen := range screens {
		screen.Destroy()
	}
}
