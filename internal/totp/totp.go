// Package totp wraps time-based one-time-password generation and
// verification for the second login factor: 160-bit base32 shared secrets,
// 6-digit codes over 30-second steps, and provisioning URIs (plus their QR
// rendering) for authenticator-app enrollment.
package totp

import (
	"bytes"
	"encoding/base32"
	"fmt"
	"image/png"
	"net/url"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"sentinelkey/internal/common"
)

const (
	// Period is the TOTP time step in seconds.
	Period = 30

	// CodeLength is the number of decimal digits in a code.
	CodeLength = 6

	// secretSize is the shared-secret entropy in bytes (160 bits).
	secretSize = 20
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateSecret returns a new cryptographically random base32 shared
// secret with 160 bits of entropy.
func GenerateSecret() string {
	return b32.EncodeToString(common.GenerateRandByteArray(secretSize))
}

// ProvisioningURI builds the otpauth:// URI an authenticator app consumes
// during enrollment:
//
//	otpauth://totp/{issuer}:{username}?secret={secret}&issuer={issuer}
//
// This is a pure string-format function, not a security boundary.
func ProvisioningURI(username, secret, issuer string) string {
	u := url.URL{
		Scheme: "otpauth",
		Host:   "totp",
		Path:   "/" + issuer + ":" + username,
	}
	// built by hand: url.Values sorts keys, but the conventional parameter
	// order puts secret before issuer
	u.RawQuery = "secret=" + secret + "&issuer=" + url.QueryEscape(issuer)
	return u.String()
}

// QRCodePNG renders a provisioning URI as a PNG image of the given pixel
// size. It is a pure function URI → image bytes.
func QRCodePNG(provisioningURI string, size int) ([]byte, error) {
	key, err := otp.NewKeyFromURL(provisioningURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	img, err := key.Image(size, size)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ValidFormat reports whether code looks like a TOTP code: exactly six
// decimal digits. Malformed input is rejected before any code computation.
func ValidFormat(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// VerifyAt checks code against secret at the given instant, accepting codes
// up to window steps before or after for clock drift.
func VerifyAt(secret, code string, window uint, at time.Time) bool {
	if secret == "" || !ValidFormat(code) {
		return false
	}

	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    Period,
		Skew:      window,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return ok
}

// CodeAt computes the code for secret at the given instant. Used by the
// enrollment flow and tests.
func CodeAt(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    Period,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
}
