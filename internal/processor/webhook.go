package processor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrBadSignature covers every verification failure: malformed header,
// mismatched digest, or a timestamp outside the tolerance window. Callers
// reject the delivery without parsing the body.
var ErrBadSignature = errors.New("webhook signature verification failed")

// SignatureTolerance bounds how old a signed timestamp may be, limiting
// replay of captured deliveries.
const SignatureTolerance = 5 * time.Minute

// VerifySignature checks the processor's signature header against the raw
// payload. The header carries a unix timestamp and one or more HMAC-SHA256
// digests of "{timestamp}.{payload}": `t=1716400000,v1=5257a8...`.
func VerifySignature(payload []byte, header, secret string) error {
	return verifySignatureAt(payload, header, secret, time.Now())
}

func verifySignatureAt(payload []byte, header, secret string, now time.Time) error {
	var timestamp string
	var candidates []string

	for part := range strings.SplitSeq(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			candidates = append(candidates, value)
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return ErrBadSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > SignatureTolerance || age < -SignatureTolerance {
		return ErrBadSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range candidates {
		digest, err := hex.DecodeString(candidate)
		if err != nil {
			continue
		}
		if hmac.Equal(digest, expected) {
			return nil
		}
	}
	return ErrBadSignature
}

// Sign produces a signature header for payload, used by the load generator
// and tests to fabricate verifiable deliveries.
func Sign(payload []byte, secret string, at time.Time) string {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return "t=" + timestamp + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}
