// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package report_test

import (
	"encoding/base64"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/creachadair/otptools/internal/report"
	"github.com/creachadair/otptools/otpauth/migration"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/encoding/protowire"
	"gopkg.in/yaml.v3"
)

// migrationURL encodes the given account names into a migration payload URL.
func migrationURL(t *testing.T, names ...string) string {
	t.Helper()
	var payload []byte
	for _, name := range names {
		var sub []byte
		sub = protowire.AppendTag(sub, 1, protowire.BytesType)
		sub = protowire.AppendBytes(sub, []byte("key-"+name))
		sub = protowire.AppendTag(sub, 2, protowire.BytesType)
		sub = protowire.AppendString(sub, name)
		payload = protowire.AppendTag(payload, 1, protowire.BytesType)
		payload = protowire.AppendBytes(payload, sub)
	}
	data := base64.StdEncoding.EncodeToString(payload)
	return migration.Scheme + "://offline?" + url.Values{"data": {data}}.Encode()
}

func TestFromText(t *testing.T) {
	t.Run("PlainText", func(t *testing.T) {
		got := report.FromText("hello, world")
		want := []report.Entry{{
			Source: report.SourceText, Content: "hello, world", Text: "hello, world",
		}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("FromText: (-want, +got)\n%s", diff)
		}
	})

	t.Run("URI", func(t *testing.T) {
		const text = "otpauth://totp/Example:alice@example.com?secret=JBSWY3DPEHPK3PXP&issuer=Example"
		got := report.FromText(text)
		if len(got) != 1 {
			t.Fatalf("FromText: got %d entries, want 1", len(got))
		}
		e := got[0]
		if e.Source != report.SourceURI || e.Error != "" || e.Text != text {
			t.Errorf("Entry: got %+v, want uri entry without error", e)
		}
		if e.Account == nil || e.Account.Name != "alice@example.com" || e.Account.Issuer != "Example" {
			t.Errorf("Account: got %+v, want alice@example.com at Example", e.Account)
		}
	})

	t.Run("URIBadNumeric", func(t *testing.T) {
		got := report.FromText("otpauth://totp/x?secret=ABCDEFGH&digits=six")
		if len(got) != 1 {
			t.Fatalf("FromText: got %d entries, want 1", len(got))
		}
		if got[0].Error == "" {
			t.Error("Entry: missing expected error")
		}
		if got[0].Account == nil || got[0].Account.Secret != "ABCDEFGH" {
			t.Errorf("Account: got %+v, want partial record with secret", got[0].Account)
		}
	})

	t.Run("Migration", func(t *testing.T) {
		got := report.FromText(migrationURL(t, "first", "second"))
		if len(got) != 2 {
			t.Fatalf("FromText: got %d entries, want 2", len(got))
		}
		var names []string
		for _, e := range got {
			if e.Source != report.SourceMigration {
				t.Errorf("Entry source: got %q, want %q", e.Source, report.SourceMigration)
			}
			names = append(names, e.Account.Name)
		}
		if diff := cmp.Diff([]string{"first", "second"}, names); diff != "" {
			t.Errorf("Order: (-want, +got)\n%s", diff)
		}
	})

	t.Run("MigrationCorrupt", func(t *testing.T) {
		// A data parameter that is valid base64 but not a valid payload.
		bad := base64.StdEncoding.EncodeToString([]byte{0x92})
		got := report.FromText(migration.Scheme + "://offline?data=" + bad)
		if len(got) != 1 || got[0].Error == "" {
			t.Errorf("FromText: got %+v, want a single error entry", got)
		}
	})
}

func TestReport(t *testing.T) {
	var rpt report.Report
	rpt.Add("a.png", "otpauth://totp/x?secret=ABCDEFGH")
	rpt.Add("b.png", migrationURL(t, "one", "two"), "plain text")

	if len(rpt.Entries) != 4 {
		t.Fatalf("Entries: got %d, want 4", len(rpt.Entries))
	}
	wantImages := []string{"a.png", "b.png", "b.png", "b.png"}
	for i, e := range rpt.Entries {
		if e.Image != wantImages[i] {
			t.Errorf("Entry %d image: got %q, want %q", i, e.Image, wantImages[i])
		}
	}

	accts := rpt.Accounts()
	if len(accts) != 3 {
		t.Errorf("Accounts: got %d, want 3", len(accts))
	}

	t.Run("WriteFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.yaml")
		if err := rpt.WriteFile(path); err != nil {
			t.Fatalf("WriteFile: unexpected error: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}

		var doc struct {
			Codes    []report.Entry `yaml:"qr_codes"`
			Metadata struct {
				Total     int    `yaml:"total_codes"`
				Extracted string `yaml:"extraction_date"`
			} `yaml:"metadata"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			t.Fatalf("Unmarshal report: %v", err)
		}
		if doc.Metadata.Total != 4 || len(doc.Codes) != 4 {
			t.Errorf("Report: got %d codes, total %d, want 4, 4", len(doc.Codes), doc.Metadata.Total)
		}
		if doc.Metadata.Extracted == "" {
			t.Error("Report: missing extraction date")
		}
		if !strings.Contains(string(data), "source_image") {
			t.Error("Report: missing source_image attribution")
		}
	})
}
