package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/creachadair/otptools/otpauth"
	"gopkg.in/yaml.v3"
)

// A Secret is one entry of the secrets file.
type Secret struct {
	Name   string `yaml:"name" json:"name"`
	Secret string `yaml:"secret" json:"secret"`
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Suffix string `yaml:"suffix,omitempty" json:"suffix,omitempty"`

	// Optional code parameters; zero values take the standard defaults.
	Type      otpauth.Type      `yaml:"type,omitempty" json:"type,omitempty"`
	Algorithm otpauth.Algorithm `yaml:"algorithm,omitempty" json:"algorithm,omitempty"`
	Digits    int               `yaml:"digits,omitempty" json:"digits,omitempty"`
	Period    int               `yaml:"period,omitempty" json:"period,omitempty"`
	Counter   uint64            `yaml:"counter,omitempty" json:"counter,omitempty"`
}

// Account converts s to an account record for code generation.
func (s *Secret) Account() *otpauth.Account {
	acct := otpauth.New()
	acct.Name = s.Name
	acct.Secret = otpauth.CleanKey(s.Secret)
	acct.Counter = s.Counter
	if s.Type != "" {
		acct.Type = otpauth.Type(strings.ToUpper(string(s.Type)))
	}
	if s.Algorithm != "" {
		acct.Algorithm = otpauth.Algorithm(strings.ToUpper(string(s.Algorithm)))
	}
	if s.Digits > 0 {
		acct.Digits = s.Digits
	}
	if s.Period > 0 {
		acct.Period = s.Period
	}
	return acct
}

// loadSecrets reads the secrets file at path, decoding as JSON when the
// file has a .json extension and as YAML otherwise.
func loadSecrets(path string) ([]*Secret, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Secrets []*Secret `yaml:"secrets" json:"secrets"`
	}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, err
	}
	for i, s := range doc.Secrets {
		if s.Name == "" {
			return nil, fmt.Errorf("entry %d: missing name", i+1)
		} else if s.Secret == "" {
			return nil, fmt.Errorf("entry %d (%q): missing secret", i+1, s.Name)
		}
	}
	return doc.Secrets, nil
}

func findSecret(secrets []*Secret, name string) *Secret {
	for _, s := range secrets {
		if s.Name == name {
			return s
		}
	}
	return nil
}
