package distribution

import (
	"errors"
	"fmt"

	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/smithy-go"
)

var (
	ErrFetch     = errors.New("fetching distribution config failed")
	ErrStage     = errors.New("staging distribution config failed")
	ErrSubmit    = errors.New("updating distribution failed")
	ErrStaleETag = errors.New("distribution changed since it was fetched")
)

// Err joins a typed sentinel with the underlying error and an optional
// message, so callers can match on either with errors.Is / errors.As.
func Err(typedErr error, innerErr error, msgTemplate string, args ...any) error {
	if msgTemplate == "" {
		return errors.Join(typedErr, innerErr)
	}
	return errors.Join(typedErr, innerErr, fmt.Errorf(msgTemplate, args...))
}

// describe renders the service error code when there is one.
func describe(err error) string {
	var stale *cftypes.PreconditionFailed
	if errors.As(err, &stale) {
		return "ETag no longer matches the live configuration"
	}
	var missing *cftypes.NoSuchDistribution
	if errors.As(err, &missing) {
		return "no such distribution"
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return "request failed"
}
