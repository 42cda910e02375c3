package azure

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	scanerrors "github.com/driftlake/metascan/errors"
)

// convertError normalizes an Azure SDK failure onto the scan error
// sentinels. Service error codes take priority over raw HTTP status.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return err
	}

	switch respErr.ErrorCode {
	case "ContainerNotFound", "FilesystemNotFound":
		return fmt.Errorf("%w: %v", scanerrors.ErrRootNotFound, err)
	case "BlobNotFound", "PathNotFound", "ResourceNotFound":
		return fmt.Errorf("%w: %v", scanerrors.ErrNodeNotFound, err)
	case "AuthorizationFailure", "AuthorizationPermissionMismatch", "InsufficientAccountPermissions", "AuthorizationSourceIPMismatch":
		return fmt.Errorf("%w: %v", scanerrors.ErrPermissionDenied, err)
	case "AuthenticationFailed", "InvalidAuthenticationInfo", "NoAuthenticationInformation":
		return fmt.Errorf("%w: %v", scanerrors.ErrInvalidCredentials, err)
	case "ServerBusy":
		return fmt.Errorf("%w: %v", scanerrors.ErrThrottled, err)
	case "OperationTimedOut":
		return fmt.Errorf("%w: %v", scanerrors.ErrTimeout, err)
	case "InternalError":
		return fmt.Errorf("%w: %v", scanerrors.ErrUnreachable, err)
	}

	switch code := respErr.StatusCode; {
	case code == http.StatusForbidden:
		return fmt.Errorf("%w: %v", scanerrors.ErrPermissionDenied, err)
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", scanerrors.ErrInvalidCredentials, err)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %v", scanerrors.ErrNodeNotFound, err)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", scanerrors.ErrThrottled, err)
	case code == http.StatusBadRequest:
		return fmt.Errorf("%w: %v", scanerrors.ErrInvalidInput, err)
	case code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %v", scanerrors.ErrUnreachable, err)
	}
	return err
}

// hnsUnavailable reports whether a datalake-plane failure means the account
// cannot serve access control at all, either because the namespace is not
// hierarchical or because the principal lacks the data permissions. Such
// failures latch the HNS probes off for the rest of the walk.
func hnsUnavailable(err error) bool {
	return scanerrors.IsPermissionDenied(err) ||
		errors.Is(err, scanerrors.ErrInvalidInput) ||
		errors.Is(err, scanerrors.ErrInvalidCredentials) ||
		errors.Is(err, scanerrors.ErrUnsupported)
}
