package services

import "github.com/pkg/errors"

// Sentinel errors for the dispatcher's error policy. Everything wrapping
// ErrUpstreamFetch or ErrStorage is recoverable: the webhook delivery is
// still acknowledged with 200 and the action abandoned, so the sender's
// retry policy cannot amplify a downstream outage.
var (
	ErrUpstreamFetch = errors.New("upstream fetch failed")
	ErrStorage       = errors.New("storage operation failed")
	ErrDelivery      = errors.New("notification delivery failed")
)
