package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ynterhq/gateway/internal/billing/domain"
)

// DefaultTolerance bounds how stale a signed timestamp may be before the
// payload is rejected as a possible replay.
const DefaultTolerance = 5 * time.Minute

// SignatureVerifier checks the provider's signature header against the raw
// request body before any of the payload is trusted.
type SignatureVerifier struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{
		secret:    secret,
		tolerance: DefaultTolerance,
		now:       time.Now,
	}
}

// Verify validates the v1 signature scheme: the header carries a unix
// timestamp and one or more HMAC-SHA256 digests of "<timestamp>.<body>".
func (v *SignatureVerifier) Verify(payload []byte, header string) error {
	header = strings.TrimSpace(header)
	if header == "" || v.secret == "" {
		return domain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return domain.ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return domain.ErrInvalidSignature
	}
	age := v.now().Sub(time.Unix(ts, 0))
	if age > v.tolerance || age < -v.tolerance {
		return domain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(v.secret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return domain.ErrInvalidSignature
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		switch key {
		case "t":
			timestamp = value
		case "v1":
			if value != "" {
				signatures = append(signatures, value)
			}
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, domain.ErrInvalidSignature
	}
	return timestamp, signatures, nil
}
