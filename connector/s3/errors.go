package s3

import (
	"errors"
	"fmt"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	scanerrors "github.com/driftlake/metascan/errors"
)

// convertError normalizes an AWS SDK failure onto the scan error sentinels
// so the engine can classify it. Unrecognized failures pass through
// unchanged.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var noBucket *types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return fmt.Errorf("%w: %v", scanerrors.ErrRootNotFound, err)
	}
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return fmt.Errorf("%w: %v", scanerrors.ErrNodeNotFound, err)
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", scanerrors.ErrNodeNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket":
			return fmt.Errorf("%w: %v", scanerrors.ErrRootNotFound, err)
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %v", scanerrors.ErrNodeNotFound, err)
		case "AccessDenied", "AllAccessDisabled", "AccountProblem":
			return fmt.Errorf("%w: %v", scanerrors.ErrPermissionDenied, err)
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "InvalidClientTokenId", "TokenRefreshRequired":
			return fmt.Errorf("%w: %v", scanerrors.ErrInvalidCredentials, err)
		case "SlowDown", "Throttling", "ThrottlingException", "RequestLimitExceeded", "TooManyRequestsException":
			return fmt.Errorf("%w: %v", scanerrors.ErrThrottled, err)
		case "RequestTimeout", "RequestTimeoutException":
			return fmt.Errorf("%w: %v", scanerrors.ErrTimeout, err)
		case "ServiceUnavailable", "InternalError":
			return fmt.Errorf("%w: %v", scanerrors.ErrUnreachable, err)
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch code := respErr.HTTPStatusCode(); {
		case code == http.StatusForbidden:
			return fmt.Errorf("%w: %v", scanerrors.ErrPermissionDenied, err)
		case code == http.StatusNotFound:
			return fmt.Errorf("%w: %v", scanerrors.ErrNodeNotFound, err)
		case code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", scanerrors.ErrThrottled, err)
		case code >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %v", scanerrors.ErrUnreachable, err)
		}
	}

	return err
}

// isNoSuchTagSet reports whether the error is the tagging API's way of
// saying a bucket or object simply has no tags.
func isNoSuchTagSet(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchTagSet"
}

// fetchOwnerRejected reports whether a listing with FetchOwner was refused
// outright. Some S3-compatible stores reject the parameter, and restricted
// credentials can be allowed to list but not to see owners.
func fetchOwnerRejected(err error) bool {
	if scanerrors.IsPermissionDenied(err) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotImplemented", "InvalidArgument", "InvalidRequest":
			return true
		}
	}
	return false
}
