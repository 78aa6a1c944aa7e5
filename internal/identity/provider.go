// Package identity abstracts token acquisition behind a strategy
// interface with two implementations: a nested-auth client brokered by
// the identity library, and a dialog-path client for legacy hosts. The
// engine picks one at initialization and never branches again.
package identity

import (
	"context"
	"fmt"

	"github.com/tasksuite/addin-auth/internal/models"
)

// UserImpersonationScope returns the fixed scope requested on the
// interactive and nested paths. The format is not configurable.
func UserImpersonationScope(apiClientID string) string {
	return fmt.Sprintf("api://%s/user_impersonation", apiClientID)
}

// TokenProvider is the strategy interface the engine drives. All
// methods are safe for sequential use from the engine's call sites;
// implementations do not serialize concurrent callers themselves.
type TokenProvider interface {
	// Initialize completes any post-construction setup, such as
	// resuming an in-flight redirect-based flow. Idempotent.
	Initialize(ctx context.Context) error

	// AcquireSilent obtains a token without user interaction for the
	// given account (nil means the first cached account). force
	// bypasses the provider's token cache. When interaction is needed
	// the returned error wraps autherr.ErrInteractionRequired.
	AcquireSilent(ctx context.Context, account *models.Account, force bool) (models.TokenResult, models.Account, error)

	// AcquireInteractive obtains a token with user interaction,
	// pre-filling loginHint when non-empty and prompting for account
	// selection otherwise.
	AcquireInteractive(ctx context.Context, loginHint string) (models.TokenResult, models.Account, error)

	// CachedAccount returns the provider's cached account, or nil when
	// no session survives.
	CachedAccount(ctx context.Context) (*models.Account, error)

	// SignOut removes the account from the provider's session.
	SignOut(ctx context.Context, account models.Account) error
}
