// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package report normalizes decoded QR payloads into a flat, ordered record
// list and renders it as a YAML document. Payload failures are attached to
// their own entries so that one corrupted payload never disturbs the
// records decoded from its siblings.
package report

import (
	"strings"
	"time"

	"github.com/creachadair/atomicfile"
	"github.com/creachadair/otptools/otpauth"
	"github.com/creachadair/otptools/otpauth/migration"
	"gopkg.in/yaml.v3"
)

// Source labels attached to entries, identifying the payload form each
// record was decoded from.
const (
	SourceMigration = "migration" // otpauth-migration:// batch export
	SourceURI       = "uri"       // otpauth:// provisioning URI
	SourceText      = "text"      // anything else: plain content, not an error
)

// An Entry is one decoded QR payload record.
type Entry struct {
	Source  string           `yaml:"source"`
	Account *otpauth.Account `yaml:"account,omitempty"`
	Content string           `yaml:"content,omitempty"` // plain-text payloads only
	Error   string           `yaml:"error,omitempty"`
	Text    string           `yaml:"original_text"`
	Image   string           `yaml:"source_image,omitempty"`
}

// FromText classifies a single QR payload string and decodes it into report
// entries. A migration payload may produce any number of entries, one per
// account, in encounter order; other payloads produce exactly one. Text
// matching neither OTP scheme is classified as plain content.
func FromText(text string) []Entry {
	switch {
	case strings.HasPrefix(text, migration.Scheme+"://"):
		accts, err := migration.ParseURL(text)
		es := make([]Entry, 0, len(accts))
		for _, a := range accts {
			es = append(es, Entry{Source: SourceMigration, Account: a, Text: text})
		}
		if err != nil {
			// Partial decode: report what we got, plus the failure.
			es = append(es, Entry{Source: SourceMigration, Error: err.Error(), Text: text})
		}
		return es

	case strings.HasPrefix(text, "otpauth://"):
		acct, err := otpauth.ParseURI(text)
		e := Entry{Source: SourceURI, Account: acct, Text: text}
		if err != nil {
			e.Error = err.Error()
		}
		return []Entry{e}
	}
	return []Entry{{Source: SourceText, Content: text, Text: text}}
}

// A Report is an ordered collection of decoded payload entries.
type Report struct {
	Entries []Entry
}

// Add classifies and appends the given payload texts in order, attributing
// their entries to the named source image (which may be empty).
func (r *Report) Add(image string, texts ...string) {
	for _, text := range texts {
		es := FromText(text)
		for i := range es {
			es[i].Image = image
		}
		r.Entries = append(r.Entries, es...)
	}
}

// Accounts returns the account records of r in order, omitting entries that
// did not decode to an account.
func (r *Report) Accounts() []*otpauth.Account {
	var accts []*otpauth.Account
	for _, e := range r.Entries {
		if e.Account != nil {
			accts = append(accts, e.Account)
		}
	}
	return accts
}

// document is the YAML file shape.
type document struct {
	Codes    []Entry `yaml:"qr_codes"`
	Metadata struct {
		Total     int    `yaml:"total_codes"`
		Extracted string `yaml:"extraction_date"`
	} `yaml:"metadata"`
}

// Marshal renders r as a YAML document.
func (r *Report) Marshal() ([]byte, error) {
	doc := document{Codes: r.Entries}
	doc.Metadata.Total = len(r.Entries)
	doc.Metadata.Extracted = time.Now().Format(time.RFC3339)
	return yaml.Marshal(doc)
}

// WriteFile writes r as a YAML document to path, replacing the file
// atomically if it already exists.
func (r *Report) WriteFile(path string) error {
	data, err := r.Marshal()
	if err != nil {
		return err
	}
	return atomicfile.WriteData(path, data, 0600)
}
