package instagram

import (
	"encoding/json"
	"fmt"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/transfer"
)

// Graph API error codes.
const (
	codeUnknown          = 1
	codeService          = 2
	codeAppRateLimit     = 4
	codeUserRateLimit    = 17
	codePageRateLimit    = 32
	codeInvalidParameter = 100
	codeAccessToken      = 190
	codeCallRateLimit    = 613
)

func decodeError(op string, status int, body []byte) error {
	var resp transfer.InstagramErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Error.Code == 0 {
		return nil
	}

	e := resp.Error
	err := fmt.Errorf("code %d/%d %s: %s (trace %s)", e.Code, e.ErrorSubcode, e.Type, e.Message, e.FbtraceID)

	switch {
	case e.Code == codeAccessToken:
		return &platform.APIError{Kind: platform.ErrCredentialExpired, Platform: models.PlatformInstagram, Op: op, StatusCode: status, Err: err}
	case e.IsTransient, e.Code == codeUnknown, e.Code == codeService, e.Code == codeAppRateLimit,
		e.Code == codeUserRateLimit, e.Code == codePageRateLimit, e.Code == codeCallRateLimit:
		return &platform.APIError{Kind: platform.ErrTransient, Platform: models.PlatformInstagram, Op: op, StatusCode: status, Err: err}
	case e.Code == codeInvalidParameter:
		return &platform.APIError{Kind: platform.ErrPermanent, Platform: models.PlatformInstagram, Op: op, StatusCode: status, Err: err}
	}
	return platform.FromStatus(models.PlatformInstagram, op, status, err)
}
