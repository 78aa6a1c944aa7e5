// Package engine orchestrates token acquisition: capability-gated
// provider selection, silent acquisition with expiry-aware refresh,
// interactive escalation, and auth state broadcasting.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tasksuite/addin-auth/internal/authstate"
	"github.com/tasksuite/addin-auth/internal/autherr"
	"github.com/tasksuite/addin-auth/internal/identity"
	"github.com/tasksuite/addin-auth/internal/models"
)

// expiryBuffer is the window before expiry inside which a token is
// treated as unusable. A token expiring this soon is refreshed once
// before being handed out.
const expiryBuffer = 300 * time.Second

type phase int

const (
	phaseUninitialized phase = iota
	phaseReady
)

// CapabilityDetector reports whether the nested-auth path is usable in
// the current host. *capability.Detector satisfies it.
type CapabilityDetector interface {
	DetectNestedAuthSupport(ctx context.Context) bool
}

// ProviderFactory constructs the two acquisition paths. Kept as a
// factory so the engine owns exactly when (and how often) a client is
// built.
type ProviderFactory interface {
	NewNestedProvider(ctx context.Context) (identity.TokenProvider, error)
	NewDialogProvider(ctx context.Context) (identity.TokenProvider, error)
}

// Engine is the token acquisition orchestrator. Construct with New,
// call Initialize once, then GetAccessToken is the primary contract.
type Engine struct {
	detector CapabilityDetector
	factory  ProviderFactory
	store    *authstate.Store
	logger   *slog.Logger

	// initMu serializes Initialize; mu guards the fields below.
	initMu sync.Mutex
	mu     sync.Mutex

	phase    phase
	provider identity.TokenProvider
	account  *models.Account
}

func New(detector CapabilityDetector, factory ProviderFactory, store *authstate.Store, logger *slog.Logger) *Engine {
	return &Engine{
		detector: detector,
		factory:  factory,
		store:    store,
		logger:   logger,
	}
}

// Initialize selects the acquisition path, constructs its provider,
// resumes any in-flight flow, and recovers a cached account. Calls
// after the first success are no-ops. Every call, success or failure,
// ends with a state broadcast.
func (e *Engine) Initialize(ctx context.Context) error {
	e.initMu.Lock()
	defer e.initMu.Unlock()

	if e.ready() {
		e.logger.Debug("engine already initialized, ignoring")
		return nil
	}

	if err := e.initialize(ctx); err != nil {
		mapped := autherr.Map(err)
		e.store.Set(models.AuthState{Error: mapped})

		return mapped
	}

	e.mu.Lock()
	account := e.account
	e.mu.Unlock()

	e.store.Set(models.AuthState{
		IsAuthenticated: account != nil,
		Account:         account,
	})

	return nil
}

func (e *Engine) initialize(ctx context.Context) error {
	nested := e.detector.DetectNestedAuthSupport(ctx)

	var (
		provider identity.TokenProvider
		err      error
	)

	if nested {
		provider, err = e.factory.NewNestedProvider(ctx)
	} else {
		provider, err = e.factory.NewDialogProvider(ctx)
	}

	if err != nil {
		return fmt.Errorf("constructing token provider: %w", err)
	}

	if err := provider.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing token provider: %w", err)
	}

	account, err := provider.CachedAccount(ctx)
	if err != nil {
		// Recovery is best effort; the user signs in again.
		e.logger.Warn("cached account recovery failed", slog.Any("error", err))
		account = nil
	}

	e.logger.Info("token acquisition engine initialized",
		slog.Bool("nested_auth", nested),
		slog.Bool("account_recovered", account != nil),
	)

	e.mu.Lock()
	e.provider = provider
	e.account = account
	e.phase = phaseReady
	e.mu.Unlock()

	return nil
}

// GetAccessToken acquires a token for the configured API. Silent first;
// a token expiring within the buffer triggers exactly one forced
// refresh; an interaction-required signal escalates to interactive
// acquisition.
func (e *Engine) GetAccessToken(ctx context.Context) (models.TokenResult, error) {
	provider, account, err := e.snapshot()
	if err != nil {
		return models.TokenResult{}, err
	}

	token, acct, err := e.acquire(ctx, provider, account)
	if err != nil {
		mapped := autherr.Map(err)
		e.setError(mapped)

		return models.TokenResult{}, mapped
	}

	e.setAccount(acct)

	return token, nil
}

// acquire runs the silent-then-interactive sequence shared by
// GetAccessToken and SignIn.
func (e *Engine) acquire(ctx context.Context, provider identity.TokenProvider, account *models.Account) (models.TokenResult, models.Account, error) {
	token, acct, err := provider.AcquireSilent(ctx, account, false)
	if err == nil && token.ExpiresWithin(expiryBuffer) {
		e.logger.Debug("token near expiry, forcing refresh",
			slog.Time("expires_on", token.ExpiresOn))
		token, acct, err = provider.AcquireSilent(ctx, account, true)
	}

	if err == nil {
		return token, acct, nil
	}

	if !autherr.IsInteractionRequired(err) {
		return models.TokenResult{}, models.Account{}, err
	}

	loginHint := ""
	if account != nil {
		loginHint = account.Username
	}

	e.logger.Info("silent acquisition requires interaction, escalating",
		slog.Bool("login_hint", loginHint != ""))

	return provider.AcquireInteractive(ctx, loginHint)
}

// SignIn runs the acquisition sequence as an explicit user action,
// holding isAuthenticating for its duration.
func (e *Engine) SignIn(ctx context.Context) (models.Account, error) {
	provider, account, err := e.snapshot()
	if err != nil {
		return models.Account{}, err
	}

	e.store.Set(models.AuthState{
		IsAuthenticating: true,
		IsAuthenticated:  account != nil,
		Account:          account,
	})

	_, acct, err := e.acquire(ctx, provider, account)
	if err != nil {
		mapped := autherr.Map(err)
		e.setError(mapped)

		return models.Account{}, mapped
	}

	e.setAccount(acct)

	return acct, nil
}

// SignOut clears the session. Provider logout failures are logged but
// never block local sign-out.
func (e *Engine) SignOut(ctx context.Context) error {
	provider, account, err := e.snapshot()
	if err != nil {
		return err
	}

	if account == nil {
		return nil
	}

	if err := provider.SignOut(ctx, *account); err != nil {
		e.logger.Warn("provider logout failed, clearing local state anyway",
			slog.Any("error", err))
	}

	e.mu.Lock()
	e.account = nil
	e.mu.Unlock()

	e.store.Set(models.AuthState{})

	return nil
}

// AuthState returns the current snapshot.
func (e *Engine) AuthState() models.AuthState {
	return e.store.Current()
}

// OnAuthStateChange subscribes; the callback fires once immediately and
// then on every transition. The returned unsubscribe is idempotent.
func (e *Engine) OnAuthStateChange(cb func(models.AuthState)) func() {
	return e.store.Subscribe(cb)
}

func (e *Engine) ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.phase == phaseReady
}

// snapshot returns the provider and account, failing fast before
// initialization.
func (e *Engine) snapshot() (identity.TokenProvider, *models.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != phaseReady {
		return nil, nil, autherr.New(autherr.CodeNotInitialized, nil)
	}

	var account *models.Account
	if e.account != nil {
		acct := *e.account
		account = &acct
	}

	return e.provider, account, nil
}

func (e *Engine) setAccount(acct models.Account) {
	e.mu.Lock()
	e.account = &acct
	e.mu.Unlock()

	e.store.Set(models.AuthState{
		IsAuthenticated: true,
		Account:         &acct,
	})
}

func (e *Engine) setError(err error) {
	e.mu.Lock()
	account := e.account
	e.mu.Unlock()

	e.store.Set(models.AuthState{
		IsAuthenticated: account != nil,
		Account:         account,
		Error:           err,
	})
}
