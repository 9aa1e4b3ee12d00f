package aws

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-canteen-orderflow/internal/apperr"
)

// transientCodes are API error codes a caller can fix by retrying later.
var transientCodes = map[string]bool{
	"ProvisionedThroughputExceededException": true,
	"RequestLimitExceeded":                   true,
	"ThrottlingException":                    true,
	"InternalServerError":                    true,
	"ServiceUnavailable":                     true,
}

// WrapAPIError annotates err with op. Throttling and service-side failures become
// apperr.ErrUnavailable so callers answer 503 instead of 500.
func WrapAPIError(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && transientCodes[apiErr.ErrorCode()] {
		return apperr.Unavailable(err, "%s (%s)", op, apiErr.ErrorCode())
	}
	return fmt.Errorf("%s: %w", op, err)
}
