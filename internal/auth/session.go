// Package auth owns the shopper's credentials and the signed-in signal the
// cart engine listens to.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"storefront/internal/api"
	"storefront/internal/localstore"
	"storefront/internal/model"
)

// User is the signed-in shopper's profile.
type User struct {
	ID        model.ProductRef `json:"id"` // numeric or string primary key
	Email     string           `json:"email"`
	FirstName string           `json:"first_name"`
	LastName  string           `json:"last_name"`
}

// SignUpRequest is the registration payload.
type SignUpRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// signInResponse is returned by both login and register.
type signInResponse struct {
	Token   string `json:"token"`
	Access  string `json:"access"` // some deployments use simplejwt field names
	Refresh string `json:"refresh"`
	User    *User  `json:"user"`
}

func (r signInResponse) access() string {
	if r.Token != "" {
		return r.Token
	}
	return r.Access
}

// Session is the auth state signal: it reports sign-in state, refreshes
// tokens (one round at a time) and performs sign-out side effects.
type Session struct {
	client *api.Client
	store  localstore.Store
	coord  *RefreshCoordinator
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	tokens    Tokens
	user      *User
	listeners map[int]func(bool)
	nextID    int
	signaled  bool // listeners were last told signed in
}

// NewSession loads persisted credentials and installs itself as the
// client's token source.
func NewSession(ctx context.Context, client *api.Client, store localstore.Store, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		client:    client,
		store:     store,
		coord:     NewRefreshCoordinator(),
		logger:    logger,
		now:       time.Now,
		listeners: make(map[int]func(bool)),
	}

	if _, err := store.Get(ctx, localstore.KeyAuthTokens, &s.tokens); err != nil {
		// Unreadable credentials: start signed out
		logger.Warn("discarding stored tokens", slog.String("error", err.Error()))
		s.tokens = Tokens{}
	}
	var user User
	if found, err := store.Get(ctx, localstore.KeyUser, &user); err == nil && found {
		s.user = &user
	}

	s.signaled = s.IsAuthenticated()
	client.SetTokenSource(s)
	return s, nil
}

// Coordinator exposes the refresh coordinator shared with the request layer.
func (s *Session) Coordinator() *RefreshCoordinator {
	return s.coord
}

// IsAuthenticated reports whether a credential that can still be used is
// held: either the access token or the refresh token is unexpired.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	return usable(s.tokens.Access, now) || usable(s.tokens.Refresh, now)
}

// User returns the cached profile, or nil when signed out.
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// AccessToken implements api.TokenSource.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.Access
}

// Refresh implements api.TokenSource. Concurrent callers share one call
// to the refresh endpoint.
func (s *Session) Refresh(ctx context.Context) (string, error) {
	return s.coord.Run(ctx, s.refresh)
}

// AttemptSilentRefresh tries to obtain a fresh access token without user
// interaction. On success the session reports authenticated.
func (s *Session) AttemptSilentRefresh(ctx context.Context) error {
	s.mu.RLock()
	hasRefresh := s.tokens.Refresh != ""
	signaled := s.signaled
	s.mu.RUnlock()

	if !hasRefresh {
		return model.NewSignInRequiredError()
	}
	if _, err := s.Refresh(ctx); err != nil {
		return err
	}
	if !signaled {
		s.notify(true)
	}
	return nil
}

func (s *Session) refresh(ctx context.Context) (string, error) {
	s.mu.RLock()
	refreshToken := s.tokens.Refresh
	s.mu.RUnlock()

	if refreshToken == "" || !usable(refreshToken, s.now()) {
		return "", model.NewUnauthorizedError("refresh token missing or expired")
	}

	var resp struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"` // present when rotation is enabled
	}
	err := s.client.PostPublic(ctx, "auth/refresh/", map[string]string{"refresh": refreshToken}, &resp)
	if err != nil {
		return "", fmt.Errorf("refreshing token: %w", err)
	}
	if resp.Access == "" {
		return "", model.NewUnauthorizedError("refresh returned no access token")
	}

	tokens := Tokens{Access: resp.Access, Refresh: refreshToken}
	if resp.Refresh != "" {
		tokens.Refresh = resp.Refresh
	}

	s.mu.Lock()
	s.tokens = tokens
	s.mu.Unlock()

	if err := s.store.Set(ctx, localstore.KeyAuthTokens, tokens); err != nil {
		s.logger.Warn("persisting refreshed tokens failed", slog.String("error", err.Error()))
	}
	s.logger.Debug("access token refreshed")
	return resp.Access, nil
}

// SignIn authenticates with email and password.
func (s *Session) SignIn(ctx context.Context, email, password string) (*User, error) {
	var resp signInResponse
	err := s.client.PostPublic(ctx, "auth/login/",
		map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, resp)
}

// SignUp registers a new account and signs it in. The account is marked
// new so its guest cart is merged on first load.
func (s *Session) SignUp(ctx context.Context, req SignUpRequest) (*User, error) {
	if req.Email == "" || req.Password == "" {
		return nil, model.NewValidationError("sign up", "email and password are required")
	}
	body := map[string]string{
		"first_name":       req.FirstName,
		"last_name":        req.LastName,
		"email":            req.Email,
		"password":         req.Password,
		"password_confirm": req.Password,
	}

	var resp signInResponse
	if err := s.client.PostPublic(ctx, "auth/register/", body, &resp); err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, localstore.KeyIsNewUser, true); err != nil {
		s.logger.Warn("persisting new-account flag failed", slog.String("error", err.Error()))
	}
	return s.establish(ctx, resp)
}

func (s *Session) establish(ctx context.Context, resp signInResponse) (*User, error) {
	if resp.access() == "" {
		return nil, model.NewUpstreamError("storefront API", fmt.Errorf("sign-in response has no token"))
	}
	tokens := Tokens{Access: resp.access(), Refresh: resp.Refresh}

	s.mu.Lock()
	// Signing in again as the same account is not a transition
	same := s.signaled && sameUser(s.user, resp.User)
	s.tokens = tokens
	s.user = resp.User
	s.mu.Unlock()

	if err := s.store.Set(ctx, localstore.KeyAuthTokens, tokens); err != nil {
		s.logger.Warn("persisting tokens failed", slog.String("error", err.Error()))
	}
	if resp.User != nil {
		if err := s.store.Set(ctx, localstore.KeyUser, resp.User); err != nil {
			s.logger.Warn("persisting user failed", slog.String("error", err.Error()))
		}
	}

	s.logger.Info("signed in", slog.Bool("account_changed", !same))
	if !same {
		s.notify(true)
	}
	return s.User(), nil
}

func sameUser(a, b *User) bool {
	return a != nil && b != nil && a.ID != "" && a.ID == b.ID
}

// Profile fetches the signed-in user's profile and caches it.
func (s *Session) Profile(ctx context.Context) (*User, error) {
	var user User
	if err := s.client.Get(ctx, "auth/profile/", &user); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	if err := s.store.Set(ctx, localstore.KeyUser, user); err != nil {
		s.logger.Warn("persisting user failed", slog.String("error", err.Error()))
	}
	return &user, nil
}

// Addresses lists the shopper's saved addresses.
func (s *Session) Addresses(ctx context.Context) ([]model.Address, error) {
	var addrs []model.Address
	if err := s.client.Get(ctx, "auth/addresses/", &addrs); err != nil {
		return nil, err
	}
	return addrs, nil
}

// SignOut is the user-initiated sign-out.
func (s *Session) SignOut() {
	s.ForceSignOut()
}

// ForceSignOut drops credentials and notifies listeners. Calling it while
// already signed out does nothing.
func (s *Session) ForceSignOut() {
	s.mu.Lock()
	if s.tokens.Empty() && s.user == nil {
		s.mu.Unlock()
		return
	}
	s.tokens = Tokens{}
	s.user = nil
	s.mu.Unlock()

	// Detached: sign-out must complete even if the triggering request was canceled
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.Delete(ctx, localstore.KeyAuthTokens, localstore.KeyUser); err != nil {
		s.logger.Warn("clearing stored credentials failed", slog.String("error", err.Error()))
	}

	s.logger.Info("signed out")
	s.notify(false)
}

// Subscribe registers fn to be called with the new state after every
// sign-in/sign-out transition. Listeners run synchronously on the
// transitioning goroutine. The returned func removes fn.
func (s *Session) Subscribe(fn func(authenticated bool)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) notify(authenticated bool) {
	s.mu.Lock()
	s.signaled = authenticated
	fns := make([]func(bool), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(authenticated)
	}
}
