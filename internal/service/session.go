package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	domainauth "github.com/glhm/console/internal/domain/auth"
	apperrors "github.com/glhm/console/internal/errors"
	"github.com/glhm/console/internal/observability/metrics"
	"github.com/glhm/console/internal/observability/statsd"
	"github.com/glhm/console/internal/ports"
)

// User-facing messages for failed operations that carry no backend message.
const (
	MsgLoginFailed              = "login failed, please retry"
	MsgRegisterFailed           = "registration failed, please retry"
	MsgLoginVerification        = "login verification failed"
	MsgRegistrationVerification = "registration verification failed"
	MsgProfileUnavailable       = "user profile unavailable"
)

const (
	defaultPublicRoute = "/public"
	defaultRootRoute   = "/"
)

// SessionServiceOptions groups dependencies for SessionService.
type SessionServiceOptions struct {
	API         ports.AuthAPI
	Credentials ports.CredentialStore
	Encryptor   ports.Encryptor
	// Events delivers 401 notifications from the API client. Optional.
	Events ports.AuthRejectedSource
	// Navigator may also be attached later with SetNavigator.
	Navigator ports.Navigator

	PublicRoute string
	LoginRoute  string
	RootRoute   string
	// RequireProfile rolls a login back when the profile cannot be fetched.
	RequireProfile bool

	Metrics statsd.Sink
	Logger  *slog.Logger
}

// SessionService owns the client session: it restores, establishes and tears
// down the credential and keeps the observable session state.
// No lock is held across network calls or navigation.
type SessionService struct {
	api       ports.AuthAPI
	creds     ports.CredentialStore
	encryptor ports.Encryptor
	metrics   statsd.Sink
	logger    *slog.Logger

	publicRoute    string
	loginRoute     string
	rootRoute      string
	requireProfile bool

	group       singleflight.Group
	unsubscribe func()

	mu            sync.RWMutex
	nav           ports.Navigator
	state         domainauth.State
	loggedIn      bool
	user          *domainauth.UserProfile
	token         string
	lastErr       string
	canRegister   bool
	originalRoute string
	loginPrompt   bool
	inflight      int
	initialized   bool
	pendingNav    string
}

var _ ports.SessionView = (*SessionService)(nil)

// NewSessionService constructs a SessionService and subscribes it to 401 events.
func NewSessionService(opts SessionServiceOptions) (*SessionService, error) {
	if opts.API == nil {
		return nil, errors.New("session service requires an auth api")
	}
	if opts.Credentials == nil {
		return nil, errors.New("session service requires a credential store")
	}
	if opts.Encryptor == nil {
		return nil, errors.New("session service requires an encryptor")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := opts.Metrics
	if sink == nil {
		sink = statsd.Discard{}
	}
	public := routeOr(opts.PublicRoute, defaultPublicRoute)

	s := &SessionService{
		api:            opts.API,
		creds:          opts.Credentials,
		encryptor:      opts.Encryptor,
		metrics:        sink,
		logger:         logger.With("component", "session"),
		publicRoute:    public,
		loginRoute:     routeOr(opts.LoginRoute, public),
		rootRoute:      routeOr(opts.RootRoute, defaultRootRoute),
		requireProfile: opts.RequireProfile,
		nav:            opts.Navigator,
		state:          domainauth.StateUnknown,
	}
	if opts.Events != nil {
		s.unsubscribe = opts.Events.OnAuthRejected(s.handleAuthRejected)
	}
	return s, nil
}

func routeOr(route, def string) string {
	route = strings.TrimSpace(route)
	if route == "" {
		return def
	}
	return route
}

// SetNavigator attaches the navigator used after login, logout and eviction.
func (s *SessionService) SetNavigator(nav ports.Navigator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nav = nav
}

// Close stops listening for 401 events.
func (s *SessionService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Snapshot returns a copy of the current session.
func (s *SessionService) Snapshot() domainauth.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domainauth.Session{
		State:         s.state,
		IsLoggedIn:    s.loggedIn,
		User:          s.user.Clone(),
		Credential:    s.token,
		Loading:       s.inflight > 0,
		Error:         s.lastErr,
		CanRegister:   s.canRegister,
		OriginalRoute: s.originalRoute,
		LoginPrompt:   s.loginPrompt,
	}
}

// IsLoggedIn reports the logged-in flag.
func (s *SessionService) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loggedIn
}

// User returns a copy of the current profile, or nil.
func (s *SessionService) User() *domainauth.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

// SetOriginalRoute records where to go after a successful login.
func (s *SessionService) SetOriginalRoute(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.originalRoute = path
}

// OpenLoginPrompt raises the login prompt flag.
func (s *SessionService) OpenLoginPrompt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginPrompt = true
}

// CloseLoginPrompt lowers the login prompt flag.
func (s *SessionService) CloseLoginPrompt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginPrompt = false
}

// Init restores the stored credential and asks the backend whether it is
// still valid. Concurrent calls share one run.
func (s *SessionService) Init(ctx context.Context) (bool, error) {
	v, err, _ := s.group.Do("init", func() (any, error) {
		return s.doInit(ctx)
	})
	s.flushPendingNavigation(ctx)
	loggedIn, _ := v.(bool)
	return loggedIn, err
}

// EnsureInitialized runs Init unless one has already completed.
func (s *SessionService) EnsureInitialized(ctx context.Context) error {
	s.mu.RLock()
	done := s.initialized
	s.mu.RUnlock()
	if done {
		return nil
	}
	_, err := s.Init(ctx)
	return err
}

func (s *SessionService) doInit(ctx context.Context) (loggedIn bool, err error) {
	s.begin()
	defer s.end()
	start := time.Now()
	defer func() {
		metrics.EmitOperation(s.metrics, metrics.OperationMetric{Op: "init", Duration: time.Since(start), Err: err})
	}()

	s.transition(domainauth.StateInitializing)

	token, err := s.creds.Get(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "restore credential failed", "error", err)
		s.purge(ctx)
		s.finishInit(false)
		return false, fmt.Errorf("restore credential: %w", err)
	}
	if token != "" {
		s.setToken(token)
		if syncErr := s.creds.Sync(ctx); syncErr != nil {
			s.logger.WarnContext(ctx, "sync credential cookie failed", "error", syncErr)
		}
	}

	loggedIn, err = s.api.IsLogin(ctx)
	switch {
	case err != nil && ctx.Err() != nil:
		s.finishInit(false)
		return false, fmt.Errorf("check login: %w", err)
	case err != nil:
		s.logger.WarnContext(ctx, "check login failed", "error", err)
		loggedIn = false
		if token != "" {
			s.purge(ctx)
		}
	case !loggedIn && token != "":
		s.logger.InfoContext(ctx, "stored credential no longer valid, clearing")
		s.purge(ctx)
	}
	s.setLoggedInFlag(loggedIn)

	s.CheckCanRegister(ctx)

	if loggedIn {
		if _, perr := s.FetchUserInfo(ctx); perr != nil {
			s.logger.WarnContext(ctx, "fetch user profile failed", "error", perr)
			if s.requireProfile {
				s.purge(ctx)
				loggedIn = false
			}
		}
	}

	s.finishInit(loggedIn)
	return loggedIn, nil
}

func (s *SessionService) finishInit(loggedIn bool) {
	to := domainauth.StateLoggedOut
	if loggedIn {
		to = domainauth.StateLoggedIn
	}
	s.mu.Lock()
	s.loggedIn = loggedIn
	if !loggedIn {
		s.user = nil
	}
	s.initialized = true
	s.mu.Unlock()
	s.transition(to)
}

// CheckCanRegister refreshes whether self registration is open. Failures read as closed.
func (s *SessionService) CheckCanRegister(ctx context.Context) bool {
	open, err := s.api.CanRegister(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "check can-register failed", "error", err)
		open = false
	}
	s.mu.Lock()
	s.canRegister = open
	s.mu.Unlock()
	return open
}

// FetchUserInfo loads the profile for the current credential.
func (s *SessionService) FetchUserInfo(ctx context.Context) (*domainauth.UserProfile, error) {
	profile, err := s.api.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch user profile: %w", err)
	}
	if profile == nil {
		return nil, apperrors.Internal("backend returned an empty user profile")
	}
	s.mu.Lock()
	s.user = profile.Clone()
	s.mu.Unlock()
	return profile.Clone(), nil
}

// Login encrypts the password, exchanges it for a credential and verifies the
// session before treating the user as logged in.
func (s *SessionService) Login(ctx context.Context, username, password string, remember bool) error {
	_, err, _ := s.group.Do("login:"+username, func() (any, error) {
		return nil, s.authenticate(ctx, authAttempt{
			op:             "login",
			username:       username,
			password:       password,
			failedMsg:      MsgLoginFailed,
			verifyFailsMsg: MsgLoginVerification,
			exchange: func(ctx context.Context, encrypted string) (string, error) {
				return s.api.Login(ctx, username, encrypted, remember)
			},
		})
	})
	s.flushPendingNavigation(ctx)
	return err
}

// Register creates an account and logs into it.
func (s *SessionService) Register(ctx context.Context, in domainauth.RegisterInput) error {
	_, err, _ := s.group.Do("register:"+in.Username, func() (any, error) {
		return nil, s.authenticate(ctx, authAttempt{
			op:             "register",
			username:       in.Username,
			password:       in.Password,
			failedMsg:      MsgRegisterFailed,
			verifyFailsMsg: MsgRegistrationVerification,
			exchange: func(ctx context.Context, encrypted string) (string, error) {
				return s.api.Register(ctx, in.Username, encrypted, strings.TrimSpace(in.Email))
			},
		})
	})
	s.flushPendingNavigation(ctx)
	return err
}

type authAttempt struct {
	op             string
	username       string
	password       string
	failedMsg      string
	verifyFailsMsg string
	exchange       func(ctx context.Context, encryptedPassword string) (string, error)
}

func (s *SessionService) authenticate(ctx context.Context, a authAttempt) (err error) {
	s.begin()
	defer s.end()
	start := time.Now()
	s.setError("")
	defer func() {
		metrics.EmitOperation(s.metrics, metrics.OperationMetric{Op: a.op, Duration: time.Since(start), Err: err})
		if err != nil {
			s.setError(apperrors.UserMessage(err, a.failedMsg))
			s.logger.WarnContext(ctx, a.op+" failed", "username", a.username, "error", err)
		}
	}()

	if strings.TrimSpace(a.username) == "" {
		return apperrors.ValidationField("username", "username is required")
	}
	if a.password == "" {
		return apperrors.ValidationField("password", "password is required")
	}

	// A key or encryption failure stops here, before the password leaves the process.
	encrypted, err := s.encryptor.Encrypt(ctx, a.password)
	if err != nil {
		return fmt.Errorf("encrypt password: %w", err)
	}

	token, err := a.exchange(ctx, encrypted)
	if err != nil {
		return fmt.Errorf("%s: %w", a.op, err)
	}
	if err := s.creds.Set(ctx, token); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	s.setToken(token)

	ok, verr := s.api.IsLogin(ctx)
	if verr != nil || !ok {
		if verr != nil {
			s.logger.WarnContext(ctx, "verify session failed", "op", a.op, "error", verr)
		}
		s.rollback(ctx)
		return apperrors.VerificationFailed(a.verifyFailsMsg)
	}

	s.setLoggedInFlag(true)
	if _, perr := s.FetchUserInfo(ctx); perr != nil {
		s.logger.WarnContext(ctx, "fetch user profile after "+a.op+" failed", "error", perr)
		if s.requireProfile {
			s.rollback(ctx)
			return apperrors.VerificationFailed(MsgProfileUnavailable)
		}
	}

	s.mu.Lock()
	s.loginPrompt = false
	s.initialized = true
	target := s.rootRoute
	if s.originalRoute != "" && s.originalRoute != s.publicRoute {
		target = s.originalRoute
	}
	s.originalRoute = ""
	s.mu.Unlock()
	s.transition(domainauth.StateLoggedIn)

	s.navigate(ctx, target)
	return nil
}

func (s *SessionService) rollback(ctx context.Context) {
	s.purge(ctx)
	s.mu.Lock()
	s.loggedIn = false
	s.user = nil
	s.mu.Unlock()
	s.transition(domainauth.StateLoggedOut)
}

// Logout tells the backend (best effort), then clears the local session and
// returns to the public route. It is safe to call when already logged out.
func (s *SessionService) Logout(ctx context.Context) error {
	_, err, _ := s.group.Do("logout", func() (any, error) {
		s.begin()
		defer s.end()
		start := time.Now()

		if err := s.api.Logout(ctx); err != nil {
			s.logger.WarnContext(ctx, "logout request failed, clearing local session anyway", "error", err)
		}
		s.rollback(ctx)
		s.mu.Lock()
		s.initialized = true
		s.mu.Unlock()

		metrics.EmitOperation(s.metrics, metrics.OperationMetric{Op: "logout", Duration: time.Since(start)})
		s.navigate(ctx, s.publicRoute)
		return nil, nil
	})
	s.flushPendingNavigation(ctx)
	return err
}

// SetLoggedIn flips the logged-in flag. Setting it false also clears the
// credential, without calling the backend.
func (s *SessionService) SetLoggedIn(ctx context.Context, loggedIn bool) {
	if loggedIn {
		s.setLoggedInFlag(true)
		s.transition(domainauth.StateLoggedIn)
		return
	}
	s.rollback(ctx)
}

func (s *SessionService) handleAuthRejected(ctx context.Context, ev domainauth.AuthRejectedEvent) {
	s.logger.InfoContext(ctx, "credential rejected, ending session",
		"method", ev.Method, "path", ev.Path, "request_id", ev.RequestID)
	s.SetLoggedIn(ctx, false)

	// A guard re-entered from inside a running operation would wait on that
	// operation, so navigation is deferred until it returns.
	s.mu.Lock()
	busy := s.inflight > 0
	if busy {
		s.pendingNav = s.loginRoute
	}
	s.mu.Unlock()
	if !busy {
		s.navigate(ctx, s.loginRoute)
	}
}

func (s *SessionService) flushPendingNavigation(ctx context.Context) {
	s.mu.Lock()
	target := s.pendingNav
	if s.inflight > 0 {
		target = ""
	}
	if target != "" {
		s.pendingNav = ""
	}
	s.mu.Unlock()
	if target != "" {
		s.navigate(ctx, target)
	}
}

func (s *SessionService) navigate(ctx context.Context, target string) {
	s.mu.RLock()
	nav := s.nav
	s.mu.RUnlock()
	if nav == nil {
		return
	}
	if _, err := nav.Navigate(ctx, target); err != nil {
		s.logger.WarnContext(ctx, "navigation failed", "to", target, "error", err)
	}
}

func (s *SessionService) purge(ctx context.Context) {
	if err := s.creds.Clear(ctx); err != nil {
		s.logger.ErrorContext(ctx, "clear credential failed", "error", err)
	}
	s.setToken("")
}

func (s *SessionService) setToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *SessionService) setLoggedInFlag(v bool) {
	s.mu.Lock()
	s.loggedIn = v
	s.mu.Unlock()
}

func (s *SessionService) setError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
}

func (s *SessionService) begin() {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()
}

func (s *SessionService) end() {
	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
}

// transition moves the state machine when the edge is allowed. Disallowed
// edges (for example re-initializing a live session) leave the state as is.
func (s *SessionService) transition(to domainauth.State) {
	s.mu.Lock()
	from := s.state
	if from == to || !from.CanTransition(to) {
		s.mu.Unlock()
		return
	}
	s.state = to
	s.mu.Unlock()
	metrics.EmitTransition(s.metrics, string(from), string(to))
	s.logger.Debug("session transition", "from", from, "to", to)
}
