package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Header names used by the collaboration backend's webhook deliveries
const (
	HeaderID        = "webhook-id"
	HeaderTimestamp = "webhook-timestamp"
	HeaderSignature = "webhook-signature"
)

// secretPrefix marks a base64-encoded signing secret
const secretPrefix = "whsec_"

// defaultTolerance bounds how far a delivery timestamp may drift from the
// local clock before the delivery is considered a replay.
const defaultTolerance = 5 * time.Minute

// VerificationError reports a webhook delivery that could not be
// authenticated. It is terminal: the dispatcher answers 400 and the
// delivery is never retried here.
type VerificationError struct {
	Reason string
}

func (e *VerificationError) Error() string {
	return "webhook verification failed: " + e.Reason
}

// Verifier authenticates webhook deliveries against the shared signing
// secret. The signature covers the exact raw request bytes; callers must
// capture the body before any JSON parsing, since re-serialized JSON can
// reorder keys and invalidate the signature.
type Verifier struct {
	secret    []byte
	tolerance time.Duration

	// now is replaced in tests
	now func() time.Time
}

// NewVerifier creates a verifier from a whsec_-prefixed base64 secret
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("webhook signing secret is empty")
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, secretPrefix))
	if err != nil {
		return nil, errors.Wrap(err, "webhook signing secret is not valid base64")
	}

	return &Verifier{
		secret:    key,
		tolerance: defaultTolerance,
		now:       time.Now,
	}, nil
}

// Verify authenticates rawBody against the delivery headers and returns the
// classified event. The signed content is "{id}.{timestamp}.{body}" and the
// signature header carries space-separated "v1,<base64>" candidates; any one
// matching candidate authenticates the delivery.
func (v *Verifier) Verify(rawBody []byte, headers http.Header) (*Event, error) {
	msgID := headers.Get(HeaderID)
	msgTimestamp := headers.Get(HeaderTimestamp)
	msgSignature := headers.Get(HeaderSignature)
	if msgID == "" || msgTimestamp == "" || msgSignature == "" {
		return nil, &VerificationError{Reason: "missing signing headers"}
	}

	if err := v.checkTimestamp(msgTimestamp); err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%s.%s.", msgID, msgTimestamp)
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	for _, candidate := range strings.Split(msgSignature, " ") {
		version, sig, found := strings.Cut(candidate, ",")
		if !found || version != "v1" {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		// Constant-time compare
		if hmac.Equal(expected, decoded) {
			return Classify(rawBody)
		}
	}

	return nil, &VerificationError{Reason: "no matching signature"}
}

func (v *Verifier) checkTimestamp(value string) error {
	ts, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return &VerificationError{Reason: "malformed timestamp header"}
	}

	drift := v.now().Sub(time.Unix(ts, 0))
	if drift > v.tolerance || drift < -v.tolerance {
		return &VerificationError{Reason: "timestamp outside tolerance"}
	}
	return nil
}
