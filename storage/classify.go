package storage

import (
	"errors"
	"net/http"
	"strings"

	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// isNotFound checks typed errors first, then the API error code, then the
// HTTP status, and finally the message for backends with odd error shapes.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}

	var notFound *awstypes.NotFound
	var noSuchKey *awstypes.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "NotFound") || strings.Contains(msg, "NoSuchKey")
}

// isChecksumTransport matches failures raised by response checksum
// validation rather than by the backend itself.
func isChecksumTransport(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		// A backend-reported error is never a local validation failure.
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "checksum")
}
