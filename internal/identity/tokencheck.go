package identity

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/tasksuite/addin-auth/internal/autherr"
	"github.com/tasksuite/addin-auth/internal/models"
)

// expiryClaimSlack is the allowed disagreement between the expiry the
// provider reported and the exp claim inside the token itself. Clock
// skew between provider and client stays well under this.
const expiryClaimSlack = 5 * time.Minute

// validateTokenResult sanity-checks an acquired token before the engine
// hands it out. Opaque (non-JWT) tokens are accepted as-is; for JWTs the
// reported expiry must not overstate the exp claim. Signature
// verification belongs to the resource server, not this client, so the
// parse is deliberately unverified.
func validateTokenResult(res models.TokenResult, now time.Time) error {
	if res.AccessToken == "" {
		return autherr.New(autherr.CodeTokenInvalid, fmt.Errorf("empty access token"))
	}

	if !res.ExpiresOn.After(now) {
		return autherr.New(autherr.CodeTokenInvalid, fmt.Errorf("token already expired at %s", res.ExpiresOn.Format(time.RFC3339)))
	}

	tok, err := jwt.ParseInsecure([]byte(res.AccessToken))
	if err != nil {
		// Not a JWT. Some providers issue opaque tokens; the wire
		// expiry is all we have.
		return nil
	}

	if exp := tok.Expiration(); !exp.IsZero() && res.ExpiresOn.After(exp.Add(expiryClaimSlack)) {
		return autherr.New(autherr.CodeTokenInvalid, fmt.Errorf(
			"reported expiry %s overstates exp claim %s",
			res.ExpiresOn.Format(time.RFC3339), exp.Format(time.RFC3339),
		))
	}

	return nil
}
