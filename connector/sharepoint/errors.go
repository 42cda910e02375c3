package sharepoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	scanerrors "github.com/driftlake/metascan/errors"
)

// convertGraphError normalizes a non-2xx Graph response onto the scan
// error sentinels. The Graph error code wins over the HTTP status when both
// carry a classification.
func convertGraphError(status int, body []byte) error {
	code, message := parseGraphError(body)
	detail := message
	if detail == "" {
		detail = http.StatusText(status)
	}

	switch strings.ToLower(code) {
	case "accessdenied", "notallowed", "unauthenticated":
		return fmt.Errorf("%w: graph %s: %s", scanerrors.ErrPermissionDenied, code, detail)
	case "itemnotfound", "resourcenotfound":
		return fmt.Errorf("%w: graph %s: %s", scanerrors.ErrNodeNotFound, code, detail)
	case "activitylimitreached", "toomanyrequests":
		return fmt.Errorf("%w: graph %s: %s", scanerrors.ErrThrottled, code, detail)
	case "serviceunavailable", "generalexception":
		return fmt.Errorf("%w: graph %s: %s", scanerrors.ErrUnreachable, code, detail)
	case "invalidauthenticationtoken":
		return fmt.Errorf("%w: graph %s: %s", scanerrors.ErrInvalidCredentials, code, detail)
	}

	switch {
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: graph status %d: %s", scanerrors.ErrInvalidCredentials, status, detail)
	case status == http.StatusForbidden:
		return fmt.Errorf("%w: graph status %d: %s", scanerrors.ErrPermissionDenied, status, detail)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: graph status %d: %s", scanerrors.ErrNodeNotFound, status, detail)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: graph status %d: %s", scanerrors.ErrThrottled, status, detail)
	case status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: graph status %d: %s", scanerrors.ErrUnreachable, status, detail)
	}
	return fmt.Errorf("graph status %d: %s", status, detail)
}

// convertTransportError classifies request-level failures: timeouts and
// connection errors are transient.
func convertTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", scanerrors.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", scanerrors.ErrUnreachable, err)
}

// parseGraphError extracts the code and message of the standard Graph
// error envelope. Unparseable bodies yield empty values.
func parseGraphError(body []byte) (code, message string) {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", ""
	}
	return envelope.Error.Code, envelope.Error.Message
}
