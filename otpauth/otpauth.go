// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package otpauth defines the account records produced by decoding
// authenticator QR payloads, and decodes the standard textual form
//
//	otpauth://{type}/{label}?{query}
//
// used to provision a single account. The companion package migration
// handles the binary batch export format; both produce *Account values.
package otpauth

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	"github.com/pquerna/otp/totp"
)

// An Algorithm names the HMAC hash used to generate codes for an account.
type Algorithm string

// The algorithms supported by authenticator apps.
const (
	SHA1   Algorithm = "SHA1"
	SHA256 Algorithm = "SHA256"
	SHA512 Algorithm = "SHA512"
)

// A Type describes how an account derives its codes: time-based (TOTP) or
// counter-based (HOTP).
type Type string

// The standard account types. Decoders preserve unknown type strings rather
// than rejecting them, so values other than these may occur in records.
const (
	TOTP Type = "TOTP"
	HOTP Type = "HOTP"
)

// Default parameter values, applied whenever the corresponding field is
// absent from the wire data.
const (
	DefaultDigits = 6
	DefaultPeriod = 30 // seconds
)

// An Account is a single OTP credential decoded from a QR payload.
// Records are constructed fresh per decode and never mutated thereafter.
type Account struct {
	Name      string    `yaml:"name"`
	Issuer    string    `yaml:"issuer,omitempty"`
	Secret    string    `yaml:"secret"` // RFC 4648 base32, padded
	Algorithm Algorithm `yaml:"algorithm"`
	Digits    int       `yaml:"digits"`
	Type      Type      `yaml:"type"`
	Period    int       `yaml:"period"`  // seconds; meaningful for TOTP
	Counter   uint64    `yaml:"counter"` // meaningful for HOTP
}

// New returns an empty Account with the default algorithm, digit count,
// type, and period populated.
func New() *Account {
	return &Account{
		Algorithm: SHA1,
		Digits:    DefaultDigits,
		Type:      TOTP,
		Period:    DefaultPeriod,
	}
}

// ParseURI decodes an otpauth:// URI into an account record.
//
// The label is split into issuer and account name on the first ":" or "/",
// whichever occurs; an explicit issuer query parameter takes precedence over
// the label. Unknown type strings are preserved, uppercased, rather than
// rejected. If a numeric query field does not parse, ParseURI reports an
// error but still returns the record with the remaining fields populated,
// so the caller can report the account alongside its error.
func ParseURI(s string) (*Account, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	} else if u.Scheme != "otpauth" {
		return nil, fmt.Errorf("invalid scheme %q", u.Scheme)
	}

	acct := New()
	if t := strings.ToUpper(u.Host); t != "" {
		acct.Type = Type(t)
	}
	acct.Issuer, acct.Name = splitLabel(strings.TrimPrefix(u.Path, "/"))

	// Repeated query keys follow typical URI semantics: last one wins.
	q := u.Query()
	get := func(key string) string {
		vs := q[key]
		if len(vs) == 0 {
			return ""
		}
		return vs[len(vs)-1]
	}

	acct.Secret = get("secret")
	if v := get("issuer"); v != "" {
		acct.Issuer = v
	}
	if v := get("algorithm"); v != "" {
		acct.Algorithm = Algorithm(strings.ToUpper(v))
	}

	var derr error
	setInt := func(key string, put func(uint64)) {
		v := get(key)
		if v == "" {
			return
		}
		n, err := strconv.ParseUint(v, 10, 63)
		if err != nil {
			derr = errors.Join(derr, fmt.Errorf("invalid %s %q", key, v))
			return
		}
		put(n)
	}
	setInt("digits", func(n uint64) { acct.Digits = int(n) })
	setInt("period", func(n uint64) { acct.Period = int(n) })
	setInt("counter", func(n uint64) { acct.Counter = n })
	return acct, derr
}

// splitLabel decomposes a URI label into issuer and account name. Labels
// written as "issuer:name" or "issuer/name" carry both; a bare label is the
// account name alone.
func splitLabel(label string) (issuer, name string) {
	if i, n, ok := strings.Cut(label, ":"); ok {
		return i, strings.TrimPrefix(n, " ")
	}
	if i, n, ok := strings.Cut(label, "/"); ok {
		return i, n
	}
	return "", label
}

// URI renders a in the standard otpauth:// textual form, suitable for
// provisioning the account into an authenticator app. Defaulted parameters
// are written out explicitly; the counter is included only for HOTP.
func (a *Account) URI() string {
	label := url.PathEscape(a.Name)
	if a.Issuer != "" {
		label = url.PathEscape(a.Issuer) + ":" + label
	}
	q := url.Values{"secret": {a.Secret}}
	if a.Issuer != "" {
		q.Set("issuer", a.Issuer)
	}
	q.Set("algorithm", string(a.Algorithm))
	q.Set("digits", strconv.Itoa(a.digits()))
	t := a.Type
	if t == "" {
		t = TOTP
	}
	if t == HOTP {
		q.Set("counter", strconv.FormatUint(a.Counter, 10))
	} else {
		q.Set("period", strconv.Itoa(a.period()))
	}
	return "otpauth://" + strings.ToLower(string(t)) + "/" + label + "?" + q.Encode()
}

// CleanKey normalizes a manually-entered base32 key by removing whitespace
// and mapping it to uppercase, the format authenticator setup pages use.
func CleanKey(key string) string {
	return strings.ToUpper(strings.Join(strings.Fields(key), ""))
}

// Code generates the account's code at the given time. Time-based accounts
// use at; counter-based accounts use the stored counter value. It is the
// caller's responsibility to advance the counter after a successful HOTP
// generation.
func (a *Account) Code(at time.Time) (string, error) {
	if a.Secret == "" {
		return "", errors.New("account has no secret")
	}
	switch a.Type {
	case HOTP:
		return hotp.GenerateCodeCustom(a.Secret, a.Counter, hotp.ValidateOpts{
			Digits:    otp.Digits(a.digits()),
			Algorithm: a.hash(),
		})
	case TOTP, "":
		return totp.GenerateCodeCustom(a.Secret, at, totp.ValidateOpts{
			Period:    uint(a.period()),
			Digits:    otp.Digits(a.digits()),
			Algorithm: a.hash(),
		})
	}
	return "", fmt.Errorf("unknown account type %q", a.Type)
}

func (a *Account) digits() int {
	if a.Digits <= 0 {
		return DefaultDigits
	}
	return a.Digits
}

func (a *Account) period() int {
	if a.Period <= 0 {
		return DefaultPeriod
	}
	return a.Period
}

func (a *Account) hash() otp.Algorithm {
	switch a.Algorithm {
	case SHA256:
		return otp.AlgorithmSHA256
	case SHA512:
		return otp.AlgorithmSHA512
	}
	return otp.AlgorithmSHA1
}
