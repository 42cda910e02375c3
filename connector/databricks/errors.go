package databricks

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/databricks/databricks-sdk-go/apierr"

	scanerrors "github.com/driftlake/metascan/errors"
)

// convertError normalizes a Databricks SDK failure onto the scan error
// sentinels. Unrecognized failures pass through unchanged.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *apierr.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.ErrorCode {
	case "PERMISSION_DENIED":
		return fmt.Errorf("%w: %v", scanerrors.ErrPermissionDenied, err)
	case "RESOURCE_DOES_NOT_EXIST", "NOT_FOUND", "CATALOG_DOES_NOT_EXIST", "SCHEMA_DOES_NOT_EXIST", "VOLUME_DOES_NOT_EXIST":
		return fmt.Errorf("%w: %v", scanerrors.ErrNodeNotFound, err)
	case "RESOURCE_EXHAUSTED", "REQUEST_LIMIT_EXCEEDED":
		return fmt.Errorf("%w: %v", scanerrors.ErrThrottled, err)
	case "UNAUTHENTICATED", "INVALID_TOKEN":
		return fmt.Errorf("%w: %v", scanerrors.ErrInvalidCredentials, err)
	}

	switch code := apiErr.StatusCode; {
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", scanerrors.ErrInvalidCredentials, err)
	case code == http.StatusForbidden:
		return fmt.Errorf("%w: %v", scanerrors.ErrPermissionDenied, err)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %v", scanerrors.ErrNodeNotFound, err)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", scanerrors.ErrThrottled, err)
	case code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %v", scanerrors.ErrUnreachable, err)
	}
	return err
}
