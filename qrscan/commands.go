package main

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/creachadair/atomicfile"
	"github.com/creachadair/command"
	"github.com/creachadair/mds/mstr"
	"github.com/creachadair/otptools/internal/qrimage"
	"github.com/creachadair/otptools/internal/report"
	"github.com/creachadair/taskgroup"
	"gopkg.in/yaml.v3"
)

func runScan(env *command.Env, paths ...string) error {
	if len(paths) == 0 {
		return env.Usagef("at least one image or directory is required")
	}
	files, err := listImages(paths)
	if err != nil {
		return err
	} else if len(files) == 0 {
		return errors.New("no image files found")
	}
	vlog("Scanning %d image file(s)", len(files))

	// Scan images in parallel; order of results follows the file list.
	texts := make([][]string, len(files))
	g, start := taskgroup.New(taskgroup.Listen(env.Cancel)).Limit(flags.Jobs)
	for i, path := range files {
		start(func() error {
			ts, err := qrimage.File(path)
			if err != nil {
				log.Printf("WARNING: %s: %v", path, err)
				return nil
			}
			texts[i] = ts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var rpt report.Report
	var all []string
	for i, path := range files {
		if len(texts[i]) == 0 {
			log.Printf("%s: no QR codes found", filepath.Base(path))
			continue
		}
		log.Printf("%s: %d QR code(s)", filepath.Base(path), len(texts[i]))
		for _, text := range texts[i] {
			vlog("  payload: %s", mstr.Trunc(text, 80))
			fmt.Println(text)
		}
		all = append(all, texts[i]...)
		rpt.Add(path, texts[i]...)
	}
	log.Printf("Scanned %d images, found %d QR codes", len(files), len(all))

	if flags.Output != "" && len(all) != 0 {
		data := []byte(strings.Join(all, "\n") + "\n")
		if err := atomicfile.WriteData(flags.Output, data, 0600); err != nil {
			return fmt.Errorf("write %q: %w", flags.Output, err)
		}
		log.Printf("Payload text written to %q", flags.Output)
	}
	return writeYAML(&rpt)
}

func runDecode(env *command.Env, payloads ...string) error {
	if len(payloads) == 0 {
		s := bufio.NewScanner(os.Stdin)
		for s.Scan() {
			if t := strings.TrimSpace(s.Text()); t != "" {
				payloads = append(payloads, t)
			}
		}
		if err := s.Err(); err != nil {
			return err
		}
	}

	var rpt report.Report
	rpt.Add("", payloads...)
	if flags.YAML != "" {
		return writeYAML(&rpt)
	}
	data, err := yaml.Marshal(rpt.Entries)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

// writeYAML writes the YAML report if one was requested.
func writeYAML(rpt *report.Report) error {
	if flags.YAML == "" {
		return nil
	}
	if err := rpt.WriteFile(flags.YAML); err != nil {
		return fmt.Errorf("write %q: %w", flags.YAML, err)
	}
	log.Printf("YAML report written to %q", flags.YAML)
	return nil
}

// listImages expands the argument paths into a list of image files to scan.
// A path naming a directory contributes every supported image below it, in
// sorted order; other paths are taken as given.
func listImages(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		fi, err := os.Stat(path)
		if err != nil {
			return nil, err
		} else if !fi.IsDir() {
			files = append(files, path)
			continue
		}

		var sub []string
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != path && !flags.Recursive {
					return fs.SkipDir
				}
				return nil
			}
			if qrimage.IsImage(p) {
				sub = append(sub, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		slices.Sort(sub)
		files = append(files, sub...)
	}
	return files, nil
}

func vlog(msg string, args ...any) {
	if flags.Verbose {
		log.Printf(msg, args...)
	}
}
