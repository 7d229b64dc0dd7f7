package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	webhookdomain "github.com/Arnzyy/AIFANS-sub001/internal/webhook/domain"
)

// SignatureHeader is the header the processor signs requests with.
const SignatureHeader = "X-Processor-Signature"

// verifySignature checks a header of the form "t=<unix-ts>,v1=<hex>" where
// the hex digest is HMAC-SHA256 over "<unix-ts>.<payload>". Binding the
// timestamp into the signed message is what lets the tolerance window reject
// replays without trusting the header's own claim.
func verifySignature(secret string, payload []byte, header string, now time.Time, tolerance time.Duration) error {
	var ts int64
	var sig string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return webhookdomain.ErrInvalidSignature
			}
			ts = parsed
		case "v1":
			sig = value
		}
	}
	if ts == 0 || sig == "" {
		return webhookdomain.ErrInvalidSignature
	}

	signedAt := time.Unix(ts, 0)
	if now.Sub(signedAt) > tolerance || signedAt.Sub(now) > tolerance {
		return webhookdomain.ErrInvalidSignature
	}

	expected, err := hex.DecodeString(sig)
	if err != nil {
		return webhookdomain.ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	if !hmac.Equal(mac.Sum(nil), expected) {
		return webhookdomain.ErrInvalidSignature
	}
	return nil
}

// SignPayload produces a valid signature header for payload at ts. Used by
// tests and by the local event replayer.
func SignPayload(secret string, payload []byte, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
