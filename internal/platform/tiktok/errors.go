package tiktok

import (
	"encoding/json"
	"fmt"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/transfer"
)

// decodeError reads both error shapes: the API envelope {"error":{"code":..}}
// and the OAuth form {"error":"invalid_grant"}.
func decodeError(op string, status int, body []byte) error {
	var raw struct {
		Error            json.RawMessage `json:"error"`
		ErrorDescription string          `json:"error_description"`
	}
	if err := json.Unmarshal(body, &raw); err != nil || len(raw.Error) == 0 {
		return nil
	}

	var code string
	if err := json.Unmarshal(raw.Error, &code); err == nil {
		return tokenError(op, code, raw.ErrorDescription)
	}

	var envelope transfer.TiktokError
	if err := json.Unmarshal(raw.Error, &envelope); err != nil {
		return nil
	}
	return classify(op, envelope)
}

// envelopeError checks the error object of a 2xx response. Any code other
// than "ok" fails the call.
func envelopeError(op string, e transfer.TiktokError) error {
	if e.Code == "" || e.Code == "ok" {
		return nil
	}
	if err := classify(op, e); err != nil {
		return err
	}
	return platform.Permanent(models.PlatformTiktok, op, describe(e))
}

// classify returns nil for codes it does not know so the HTTP status decides.
func classify(op string, e transfer.TiktokError) error {
	switch e.Code {
	case "rate_limit_exceeded", "internal_error":
		return platform.Transient(models.PlatformTiktok, op, describe(e))
	case "access_token_invalid", "token_not_authorized_for_specified_purpose":
		return platform.CredentialExpired(models.PlatformTiktok, op, describe(e))
	case "invalid_params", "spam_risk_too_many_posts", "unaudited_client_can_only_post_to_private_accounts":
		return platform.Permanent(models.PlatformTiktok, op, describe(e))
	}
	return nil
}

func describe(e transfer.TiktokError) error {
	return fmt.Errorf("%s: %s (log id %s)", e.Code, e.Message, e.LogID)
}

func tokenError(op, code, description string) error {
	err := fmt.Errorf("%s: %s", code, description)
	switch code {
	case "invalid_grant":
		return platform.CredentialExpired(models.PlatformTiktok, op, err)
	case "temporarily_unavailable", "server_error":
		return platform.Transient(models.PlatformTiktok, op, err)
	default:
		return nil
	}
}
