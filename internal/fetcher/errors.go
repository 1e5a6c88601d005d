package fetcher

import (
	"context"
	"crypto/x509"
	"errors"
	"net"
	"strings"

	"screenscrapehub/pkg/types"
)

// ErrBodyTooLarge is returned when a response exceeds the configured body cap.
var ErrBodyTooLarge = errors.New("response body too large")

// tlsMarkers match handshake and verification errors that reach us untyped
// from the fingerprinting client.
var tlsMarkers = []string{"tls:", "x509:", "remote error: tls", "certificate"}

// Classify maps a transport error onto a failure kind. Timeouts win over TLS,
// so a handshake that ran out of time is reported as a timeout.
func Classify(err error) types.ErrorKind {
	if err == nil {
		return types.ErrorKindConnection
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.ErrorKindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.ErrorKindTimeout
	}

	var (
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidErr  x509.CertificateInvalidError
	)
	switch {
	case errors.As(err, &unknownAuth),
		errors.As(err, &hostErr),
		errors.As(err, &invalidErr):
		return types.ErrorKindTLS
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range tlsMarkers {
		if strings.Contains(msg, marker) {
			return types.ErrorKindTLS
		}
	}
	return types.ErrorKindConnection
}

func newFailure(rawURL string, err error) *types.FetchFailure {
	return &types.FetchFailure{URL: rawURL, Kind: Classify(err), Err: err}
}

func statusFailure(rawURL string, code int, status string) *types.FetchFailure {
	var err error
	if status != "" {
		err = errors.New(status)
	}
	return &types.FetchFailure{URL: rawURL, Kind: types.ErrorKindHTTPStatus, StatusCode: code, Err: err}
}
