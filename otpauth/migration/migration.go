// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package migration decodes Google Authenticator migration payloads, the
// batch export format embedded in otpauth-migration QR codes.
//
// A payload is a protobuf wire-format message of a fixed shape: a repeated
// length-delimited account sub-message (field 1) followed by varint batch
// metadata (fields 2 through 5). The schema is not published, so decoding
// is hand-rolled over the wire primitives rather than generated; only the
// two message shapes used by the export format are understood.
//
// Decoding is best-effort by design: a payload malformed partway through
// yields the records decoded before the malformed point together with an
// error describing it, never a hard failure. Real-world QR captures are
// occasionally corrupted, and a partial batch is still useful.
package migration

import (
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/creachadair/otptools/otpauth"
)

// Scheme is the URL scheme identifying migration payloads.
const Scheme = "otpauth-migration"

// ErrTruncated is reported when the input ends in the middle of a varint or
// a length-delimited field.
var ErrTruncated = errors.New("truncated input")

// Wire types used by the format. The fixed-width types (1 and 5) do not
// occur in valid payloads and terminate decoding.
const (
	wireVarint = 0
	wireBytes  = 2
)

// readVarint decodes a base-128 varint beginning at pos: seven value bits
// per byte in little-endian group order, with the high bit set on every
// byte except the last.
func readVarint(data []byte, pos int) (uint64, int, error) {
	var v uint64
	var shift uint
	for i := pos; i < len(data); i++ {
		b := data[i]
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
		shift += 7
	}
	return 0, len(data), fmt.Errorf("offset %d: %w", pos, ErrTruncated)
}

// readBytes decodes a length-delimited field beginning at pos: a varint
// byte count followed by exactly that many bytes.
func readBytes(data []byte, pos int) ([]byte, int, error) {
	n, next, err := readVarint(data, pos)
	if err != nil {
		return nil, next, err
	} else if n > uint64(len(data)-next) {
		return nil, len(data), fmt.Errorf("offset %d: length %d exceeds input: %w", pos, n, ErrTruncated)
	}
	end := next + int(n)
	return data[next:end], end, nil
}

// skipField consumes the payload of an unrecognized field according to its
// wire type. Fixed-width wire types are not implemented and report an error.
func skipField(data []byte, pos int, wtype uint64) (int, error) {
	switch wtype {
	case wireVarint:
		_, next, err := readVarint(data, pos)
		return next, err
	case wireBytes:
		_, next, err := readBytes(data, pos)
		return next, err
	}
	return pos, fmt.Errorf("offset %d: unsupported wire type %d", pos, wtype)
}

// fieldAccount is the field number of the repeated account sub-message in
// the top-level payload. The remaining top-level fields (version, batch
// size, batch index, batch ID) are varints, consumed and discarded.
const fieldAccount = 1

// Decode decodes a migration payload (after base64 decoding) into its
// account records, in the order they appear in the input. An empty input
// yields an empty record set without error.
//
// If decoding fails partway through, Decode returns the records accumulated
// so far along with a non-nil error; callers should treat the error as a
// per-payload report, not a reason to discard the records.
func Decode(data []byte) ([]*otpauth.Account, error) {
	var accts []*otpauth.Account
	pos := 0
	for pos < len(data) {
		tag, next, err := readVarint(data, pos)
		if err != nil {
			return accts, err
		}
		num, wtype := tag>>3, tag&0x7
		if num == fieldAccount && wtype == wireBytes {
			sub, end, err := readBytes(data, next)
			if err != nil {
				return accts, err
			}
			accts = append(accts, decodeAccount(sub))
			pos = end
			continue
		}
		end, err := skipField(data, next, wtype)
		if err != nil {
			return accts, fmt.Errorf("field %d: %w", num, err)
		}
		pos = end
	}
	return accts, nil
}

// fieldValue carries the decoded payload of one field to its handler.
// Exactly one member is populated, according to the field's wire type.
type fieldValue struct {
	varint uint64
	bytes  []byte
}

// accountFields maps the field numbers of the account sub-message to their
// expected wire types and setters. A known field number carrying the wrong
// wire type is treated as unknown and skipped.
var accountFields = map[uint64]struct {
	wire uint64
	set  func(*otpauth.Account, fieldValue)
}{
	1: {wireBytes, func(a *otpauth.Account, v fieldValue) {
		a.Secret = base32.StdEncoding.EncodeToString(v.bytes)
	}},
	2: {wireBytes, func(a *otpauth.Account, v fieldValue) { a.Name = cleanUTF8(v.bytes) }},
	3: {wireBytes, func(a *otpauth.Account, v fieldValue) { a.Issuer = cleanUTF8(v.bytes) }},
	4: {wireVarint, func(a *otpauth.Account, v fieldValue) { a.Algorithm = algCode(v.varint) }},
	5: {wireVarint, func(a *otpauth.Account, v fieldValue) { a.Digits = int(v.varint) }},
	6: {wireVarint, func(a *otpauth.Account, v fieldValue) { a.Type = typeCode(v.varint) }},
	7: {wireVarint, func(a *otpauth.Account, v fieldValue) { a.Counter = v.varint }},
}

// decodeAccount decodes one account sub-message. It does not fail: a
// malformed tail yields the fields decoded up to that point, and fields
// never present keep the record defaults. The export format does not carry
// a period, so time-based records always get the default.
func decodeAccount(data []byte) *otpauth.Account {
	acct := otpauth.New()
	pos := 0
	for pos < len(data) {
		tag, next, err := readVarint(data, pos)
		if err != nil {
			break
		}
		num, wtype := tag>>3, tag&0x7
		fd, ok := accountFields[num]
		if !ok || fd.wire != wtype {
			if next, err = skipField(data, next, wtype); err != nil {
				break
			}
			pos = next
			continue
		}
		var v fieldValue
		switch wtype {
		case wireVarint:
			v.varint, next, err = readVarint(data, next)
		case wireBytes:
			v.bytes, next, err = readBytes(data, next)
		}
		if err != nil {
			break
		}
		fd.set(acct, v)
		pos = next
	}
	return acct
}

// Algorithm and type code tables from the export format. Out-of-range
// codes take the default.
var (
	algCodes  = [...]otpauth.Algorithm{otpauth.SHA1, otpauth.SHA1, otpauth.SHA256, otpauth.SHA512}
	typeCodes = [...]otpauth.Type{otpauth.HOTP, otpauth.TOTP, otpauth.TOTP}
)

func algCode(code uint64) otpauth.Algorithm {
	if code < uint64(len(algCodes)) {
		return algCodes[code]
	}
	return otpauth.SHA1
}

func typeCode(code uint64) otpauth.Type {
	if code < uint64(len(typeCodes)) {
		return typeCodes[code]
	}
	return otpauth.TOTP
}

// cleanUTF8 decodes text field bytes permissively, substituting the Unicode
// replacement character for invalid sequences rather than failing.
func cleanUTF8(b []byte) string { return strings.ToValidUTF8(string(b), "�") }

// ParseURL extracts and decodes the payload of an otpauth-migration URL.
// The data query parameter is standard base64; padding stripped by the
// exporting app is restored before decoding. Partial results follow the
// contract of Decode.
func ParseURL(s string) ([]*otpauth.Account, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	} else if u.Scheme != Scheme {
		return nil, fmt.Errorf("invalid scheme %q", u.Scheme)
	}
	data := u.Query().Get("data")
	if data == "" {
		return nil, errors.New("missing data parameter")
	}
	if n := len(data) % 4; n != 0 {
		data += strings.Repeat("=", 4-n)
	}
	bits, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	return Decode(bits)
}
