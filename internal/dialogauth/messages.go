package dialogauth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/tasksuite/addin-auth/internal/models"
)

// Message type tags posted by the dialog page.
const (
	typeAuthComplete = "auth-complete"
	typeAuthError    = "auth-error"
	typeReady        = "ready"
	typeCancelled    = "cancelled"
)

// accountPayload is the account shape inside an auth-complete message.
type accountPayload struct {
	HomeAccountID  string `json:"homeAccountId"`
	Environment    string `json:"environment"`
	TenantID       string `json:"tenantId"`
	Username       string `json:"username"`
	LocalAccountID string `json:"localAccountId"`
	Name           string `json:"name,omitempty"`
}

// completeMessage carries the token handed back by the dialog page.
type completeMessage struct {
	Type        string         `json:"type"`
	AccessToken string         `json:"accessToken"`
	ExpiresOn   string         `json:"expiresOn"`
	Scopes      []string       `json:"scopes"`
	Account     accountPayload `json:"account"`
}

// errorMessage reports a provider failure from inside the dialog.
type errorMessage struct {
	Type         string `json:"type"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// readyMessage and cancelledMessage carry no payload beyond the tag.
type readyMessage struct{}
type cancelledMessage struct{}

// parseMessage decodes one raw dialog payload into its tagged variant.
// Unknown tags, missing tags, and malformed JSON are all rejected; the
// caller maps the error to INVALID_MESSAGE.
func parseMessage(raw string) (any, error) {
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}

	tag := gjson.Get(raw, "type")
	if !tag.Exists() {
		return nil, fmt.Errorf("payload has no type tag")
	}

	switch tag.String() {
	case typeAuthComplete:
		var msg completeMessage
		if err := strictUnmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("decoding auth-complete: %w", err)
		}

		if err := msg.validate(); err != nil {
			return nil, fmt.Errorf("invalid auth-complete: %w", err)
		}

		return msg, nil

	case typeAuthError:
		var msg errorMessage
		if err := strictUnmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("decoding auth-error: %w", err)
		}

		return msg, nil

	case typeReady:
		return readyMessage{}, nil

	case typeCancelled:
		return cancelledMessage{}, nil
	}

	return nil, fmt.Errorf("unrecognized message type %q", tag.String())
}

// strictUnmarshal rejects fields the schema does not declare, so a
// dialog page speaking a different protocol version fails loudly
// instead of being half-understood.
func strictUnmarshal(raw string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()

	return dec.Decode(v)
}

func (m completeMessage) validate() error {
	if m.AccessToken == "" {
		return fmt.Errorf("accessToken is empty")
	}

	if _, err := time.Parse(time.RFC3339, m.ExpiresOn); err != nil {
		return fmt.Errorf("expiresOn is not an RFC 3339 timestamp: %w", err)
	}

	if m.Account.HomeAccountID == "" || m.Account.Username == "" {
		return fmt.Errorf("account is missing required identifiers")
	}

	return nil
}

// toResult maps a validated auth-complete message into the engine's
// token and account types. The mapping is lossless: every message field
// lands in the corresponding result field.
func (m completeMessage) toResult() Result {
	expiresOn, _ := time.Parse(time.RFC3339, m.ExpiresOn)

	return Result{
		Token: models.TokenResult{
			AccessToken: m.AccessToken,
			ExpiresOn:   expiresOn,
			Scopes:      m.Scopes,
			FromCache:   false,
		},
		Account: models.Account{
			HomeAccountID:  m.Account.HomeAccountID,
			Environment:    m.Account.Environment,
			TenantID:       m.Account.TenantID,
			Username:       m.Account.Username,
			LocalAccountID: m.Account.LocalAccountID,
			Name:           m.Account.Name,
		},
	}
}
