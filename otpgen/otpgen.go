// Program otpgen generates one-time passwords from a file of stored
// secrets. It is the command-line engine behind the menu-bar token app:
// each named secret yields a code, optionally wrapped in a fixed prefix and
// suffix, printed to stdout or copied to the clipboard.
package main

import (
	"cmp"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/atotto/clipboard"
	"github.com/creachadair/ctrl"
)

var (
	secretsPath = flag.String("secrets", "", `Secrets file, YAML or JSON (default $OTPGEN_SECRETS)`)
	doList      = flag.Bool("list", false, "List the names of stored secrets")
	doCopy      = flag.Bool("copy", false, "Copy each generated code to the clipboard")
	atTime      = flag.String("time", "", "Generate codes at this RFC 3339 time instead of now")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: %[1]s [flags] <name>...

Generate one-time password codes for the named secrets.

Secrets are read from a YAML or JSON file (chosen by extension) given by
-secrets or the OTPGEN_SECRETS environment variable, with the layout:

   secrets:
     - name: example
       secret: JBSWY3DPEHPK3PXP
       prefix: ""     # optional, prepended to the code
       suffix: ""     # optional, appended to the code

Entries may also set type (TOTP or HOTP), algorithm (SHA1, SHA256, SHA512),
digits, period, and counter; omitted values take the standard defaults
(TOTP, SHA1, 6 digits, 30 seconds).

Each argument names one entry, and its code is printed to stdout one per
line. With -copy the codes are sent to the system clipboard instead.

Options:
`, filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	ctrl.Run(func() error {
		path := cmp.Or(*secretsPath, os.Getenv("OTPGEN_SECRETS"))
		if path == "" {
			ctrl.Exitf(2, "You must specify a -secrets file")
		}
		secrets, err := loadSecrets(path)
		if err != nil {
			return fmt.Errorf("load secrets: %w", err)
		}

		if *doList {
			for _, s := range secrets {
				fmt.Println(s.Name)
			}
			return nil
		}
		if flag.NArg() == 0 {
			ctrl.Exitf(2, "You must name at least one secret (or use -list)")
		}

		when := time.Now()
		if *atTime != "" {
			t, err := time.Parse(time.RFC3339, *atTime)
			if err != nil {
				return fmt.Errorf("invalid -time: %w", err)
			}
			when = t
		}

		for _, name := range flag.Args() {
			s := findSecret(secrets, name)
			if s == nil {
				return fmt.Errorf("no secret named %q", name)
			}
			code, err := s.Account().Code(when)
			if err != nil {
				return fmt.Errorf("generate %q: %w", name, err)
			}
			token := s.Prefix + code + s.Suffix
			if *doCopy {
				if err := clipboard.WriteAll(token); err != nil {
					return fmt.Errorf("copy to clipboard: %w", err)
				}
				log.Printf("Copied code for %q to the clipboard", name)
			} else {
				fmt.Println(token)
			}
		}
		return nil
	})
}
