package webhook

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	signaturePrefix = "sha256="
	secretPrefix    = "whsec_"
)

// ErrBadSignature is returned by Verify when the signature header does not
// match the delivery body.
var ErrBadSignature = errors.New("webhook signature mismatch")

// Sign encodes event as a delivery body and returns it together with the
// X-Triagem-Signature value for secret.
func Sign(event Event, secret string) (body []byte, signature string, err error) {
	body, err = json.Marshal(event)
	if err != nil {
		return nil, "", fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	return body, signBody(body, secret), nil
}

// Verify authenticates a received delivery and decodes its event. Receivers
// pass the raw body and the X-Triagem-Signature header.
func Verify(body []byte, signature, secret string) (Event, error) {
	if !strings.HasPrefix(signature, signaturePrefix) ||
		!hmac.Equal([]byte(signature), []byte(signBody(body, secret))) {
		return Event{}, ErrBadSignature
	}
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("decode delivery: %w", err)
	}
	switch ev.Type {
	case EventDemandaCreated, EventDemandaUpdated, EventAnaliseCreated:
		return ev, nil
	}
	return Event{}, fmt.Errorf("unknown event type %q", ev.Type)
}

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// GenerateSecret returns a random signing secret for WEBHOOK_SECRET.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate webhook secret: %w", err)
	}
	return secretPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}
