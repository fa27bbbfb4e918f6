package youtube

import (
	"context"
	"errors"
	"net/url"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// Reasons YouTube reports with 403 that clear up on their own.
var quotaReasons = map[string]bool{
	"quotaExceeded":         true,
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
}

func classify(op string, err error) error {
	var apiErr *platform.APIError
	if errors.As(err, &apiErr) {
		return err
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		for _, item := range gErr.Errors {
			if quotaReasons[item.Reason] {
				return &platform.APIError{Kind: platform.ErrTransient, Platform: models.PlatformYoutube, Op: op, StatusCode: gErr.Code, Err: err}
			}
		}
		return platform.FromStatus(models.PlatformYoutube, op, gErr.Code, err)
	}

	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		if rErr.ErrorCode == "invalid_grant" {
			return platform.CredentialExpired(models.PlatformYoutube, op, err)
		}
		if rErr.Response != nil {
			return platform.FromStatus(models.PlatformYoutube, op, rErr.Response.StatusCode, err)
		}
		return platform.Transient(models.PlatformYoutube, op, err)
	}

	var uErr *url.Error
	if errors.As(err, &uErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return platform.FromTransport(models.PlatformYoutube, op, err)
	}

	return platform.Permanent(models.PlatformYoutube, op, err)
}
