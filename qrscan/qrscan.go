// Program qrscan locates QR codes in images and decodes their payloads.
// Payloads carrying otpauth:// provisioning URIs or Google Authenticator
// otpauth-migration:// batch exports are decoded into structured account
// records; other payloads are reported as plain text.
package main

import (
	"os"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
)

var flags struct {
	Output    string `flag:"o,Write extracted payload text to this file"`
	YAML      string `flag:"yaml,Write decoded records to this YAML file"`
	Recursive bool   `flag:"r,Recur into subdirectories of scanned directories"`
	Jobs      int    `flag:"jobs,Number of images to scan concurrently"`
	Verbose   bool   `flag:"v,Enable verbose logging"`
}

func init() { flags.Jobs = 4 }

func main() {
	root := &command.C{
		Name:  command.ProgramName(),
		Usage: "command [args]\nhelp [command]",
		Help: `Extract and decode QR code payloads from images.

The scan command locates QR codes in image files and prints their payload
text, one per line. Arguments naming directories are scanned as a batch over
every supported image they contain (-r to recur into subdirectories).

The decode command skips image handling and decodes payload text given on
the command line or on stdin, for payloads extracted by other tools.

With --yaml, decoded account records are also written as a YAML report.
Decoding is best-effort: a corrupted payload is reported alongside whatever
records were recovered, and never aborts the rest of a batch.`,

		SetFlags: command.Flags(flax.MustBind, &flags),

		Commands: []*command.C{
			{
				Name:  "scan",
				Usage: "<image-or-directory>...",
				Help:  "Scan images for QR codes and decode their payloads.",
				Run:   command.Adapt(runScan),
			},
			{
				Name:  "decode",
				Usage: "[payload...]",
				Help: `Decode QR payload text without scanning an image.

With no arguments, payloads are read from stdin, one per line.`,
				Run: command.Adapt(runDecode),
			},
			command.HelpCommand(nil),
			command.VersionCommand(),
		},
	}
	command.RunOrFail(root.NewEnv(nil).MergeFlags(true), os.Args[1:])
}
