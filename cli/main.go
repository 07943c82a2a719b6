package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"image/png"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ankit-chaubey/exif-surgery/core"
	"github.com/ankit-chaubey/exif-surgery/core/exif"
	"github.com/ankit-chaubey/exif-surgery/core/image"
	"github.com/ankit-chaubey/exif-surgery/core/interop"
)

const usage = `Usage: surgery <command> [flags] <file> [args]

Commands:
  view      [--json] [--ranges] <file>            list every tag and container block
  set       [--out path] [--dry-run] <file> K=V...  set tags; an empty value removes the tag
  strip     [--out path] [--keep-orientation] <file>
  rotate    [--out path] <file> <degrees>          rotate the Orientation tag by a multiple of 90
  thumbnail <file> <out>                           extract the embedded preview (JPEG, or PNG for strips)
  verify    [--json] <file>                        cross-check the EXIF block with goexif
  formats   [--json]                               list supported containers

Every command accepts --verbose.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches one command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	cmd, rest := args[0], args[1:]
	c, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("verbose", false, "log parser diagnostics to stderr")
	o := c.flags(fs)
	if err := fs.Parse(rest); err != nil {
		return 2
	}
	if fs.NArg() < c.minArgs {
		fmt.Fprintf(stderr, "%s: missing arguments\n\n%s", cmd, usage)
		return 2
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: stderr, NoColor: true}).
		Level(level).With().Timestamp().Str("cmd", cmd).Logger()

	e := &env{
		args:   fs.Args(),
		stdout: stdout,
		log:    log,
		opts:   o,
	}
	if err := c.run(e); err != nil {
		var fail *verifyFailed
		if errors.As(err, &fail) {
			return 1
		}
		log.Debug().Err(err).Msg("command failed")
		fmt.Fprintln(stderr, "✗ Error: "+err.Error())
		return 1
	}
	return 0
}

type flags struct {
	json            *bool
	ranges          *bool
	out             *string
	dryRun          *bool
	keepOrientation *bool
}

type env struct {
	args   []string
	stdout io.Writer
	log    zerolog.Logger
	opts   flags
}

func (e *env) printer() *core.Printer {
	p := &core.Printer{Writer: e.stdout}
	if e.opts.json != nil {
		p.JSON = *e.opts.json
	}
	if e.opts.ranges != nil {
		p.Ranges = *e.opts.ranges
	}
	return p
}

func (e *env) storeOptions() []exif.Option {
	opts := []exif.Option{exif.WithLogger(e.log)}
	if e.opts.ranges != nil && *e.opts.ranges {
		opts = append(opts, exif.TrackRanges())
	}
	return opts
}

type command struct {
	minArgs int
	flags   func(fs *flag.FlagSet) flags
	run     func(e *env) error
}

var commands = map[string]command{
	"view": {
		minArgs: 1,
		flags: func(fs *flag.FlagSet) flags {
			return flags{
				json:   fs.Bool("json", false, "print JSON"),
				ranges: fs.Bool("ranges", false, "show the source byte range of each value"),
			}
		},
		run: runView,
	},
	"set": {
		minArgs: 2,
		flags: func(fs *flag.FlagSet) flags {
			return flags{
				out:    fs.String("out", "", "write to this path instead of editing in place"),
				dryRun: fs.Bool("dry-run", false, "validate without writing"),
			}
		},
		run: runSet,
	},
	"strip": {
		minArgs: 1,
		flags: func(fs *flag.FlagSet) flags {
			return flags{
				out:             fs.String("out", "", "write to this path instead of stripping in place"),
				keepOrientation: fs.Bool("keep-orientation", false, "keep the Orientation tag"),
			}
		},
		run: runStrip,
	},
	"rotate": {
		minArgs: 2,
		flags: func(fs *flag.FlagSet) flags {
			return flags{out: fs.String("out", "", "write to this path instead of editing in place")}
		},
		run: runRotate,
	},
	"thumbnail": {
		minArgs: 2,
		flags:   func(fs *flag.FlagSet) flags { return flags{} },
		run:     runThumbnail,
	},
	"verify": {
		minArgs: 1,
		flags: func(fs *flag.FlagSet) flags {
			return flags{json: fs.Bool("json", false, "print JSON")}
		},
		run: runVerify,
	},
	"formats": {
		flags: func(fs *flag.FlagSet) flags {
			return flags{json: fs.Bool("json", false, "print JSON")}
		},
		run: runFormats,
	},
}

// ─── Commands ────────────────────────────────────────────────────────────────

func runView(e *env) error {
	path := e.args[0]
	h, err := image.ForFile(path, e.storeOptions()...)
	if err != nil {
		return err
	}
	m, err := h.View(path)
	if err != nil {
		return err
	}
	e.log.Debug().Str("path", path).Int("fields", len(m.Fields)).Msg("viewed")
	e.printer().PrintMetadata(m)
	return nil
}

func runSet(e *env) error {
	path := e.args[0]
	set := make(map[string]string, len(e.args)-1)
	for _, kv := range e.args[1:] {
		k, v, ok := core.ParseKV(kv)
		if !ok {
			return errors.Wrapf(core.ErrInvalidArgument, "expected Key=Value, got %q", kv)
		}
		set[k] = v
	}
	h, err := image.ForFile(path, e.storeOptions()...)
	if err != nil {
		return err
	}
	opts := core.EditOptions{Set: set, DryRun: *e.opts.dryRun}
	if err := h.Edit(path, *e.opts.out, opts); err != nil {
		return err
	}
	if opts.DryRun {
		e.printer().PrintInfo(fmt.Sprintf("%d tag(s) valid, nothing written", len(set)))
		return nil
	}
	e.printer().PrintSuccess(fmt.Sprintf("updated %d tag(s) in %s", len(set), core.ResolveOutPath(path, *e.opts.out)))
	return nil
}

func runStrip(e *env) error {
	path := e.args[0]
	h, err := image.ForFile(path, e.storeOptions()...)
	if err != nil {
		return err
	}
	out := core.ResolveOutPath(path, *e.opts.out)
	if err := h.Strip(path, out, core.StripOptions{KeepOrientation: *e.opts.keepOrientation}); err != nil {
		return err
	}
	e.printer().PrintSuccess("metadata removed: " + out)
	return nil
}

func runRotate(e *env) error {
	path := e.args[0]
	deg, err := strconv.Atoi(e.args[1])
	if err != nil {
		return errors.Wrapf(core.ErrInvalidArgument, "degrees %q", e.args[1])
	}
	s, err := exif.Open(path, e.storeOptions()...)
	if err != nil {
		return err
	}
	if err := s.Rotate(deg); err != nil {
		return err
	}
	out := core.ResolveOutPath(path, *e.opts.out)
	if out == path {
		err = s.SaveAttributes()
	} else {
		err = saveTo(s, out)
	}
	if err != nil {
		return err
	}
	o := s.Orientation()
	e.printer().PrintSuccess(fmt.Sprintf("orientation is now %s (%d)", o, int(o)))
	return nil
}

func saveTo(s *exif.Store, path string) error {
	var buf bytes.Buffer
	if err := s.SaveTo(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(core.ErrIO, "write %s: %v", path, err)
	}
	return nil
}

func runThumbnail(e *env) error {
	path, out := e.args[0], e.args[1]
	s, err := exif.Open(path, e.storeOptions()...)
	if err != nil {
		return err
	}
	if !s.HasThumbnail() {
		return errors.Wrapf(core.ErrInvalidArgument, "%s has no thumbnail", path)
	}

	data := s.Thumbnail()
	if data == nil {
		img, err := s.ThumbnailBitmap()
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return errors.Wrapf(core.ErrIO, "encode thumbnail: %v", err)
		}
		data = buf.Bytes()
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return errors.Wrapf(core.ErrIO, "write %s: %v", out, err)
	}
	e.printer().PrintSuccess(fmt.Sprintf("thumbnail written to %s (%d bytes)", out, len(data)))
	return nil
}

// verifyFailed reports mismatches that were already printed.
type verifyFailed struct{ n int }

func (v *verifyFailed) Error() string { return fmt.Sprintf("%d mismatch(es)", v.n) }

func runVerify(e *env) error {
	path := e.args[0]
	s, err := exif.Open(path, e.storeOptions()...)
	if err != nil {
		return err
	}
	rep, err := interop.CrossCheck(s)
	if err != nil {
		return err
	}

	if *e.opts.json {
		b, _ := json.MarshalIndent(rep, "", "  ")
		fmt.Fprintln(e.stdout, string(b))
	} else {
		fmt.Fprintf(e.stdout, "checked %d, skipped %d\n", rep.Checked, rep.Skipped)
		for _, m := range rep.Mismatches {
			fmt.Fprintf(e.stdout, "  %-30s ours=%q goexif=%q\n", m.Name+":", m.Ours, m.Theirs)
		}
	}
	if !rep.OK() {
		return &verifyFailed{n: len(rep.Mismatches)}
	}
	e.printer().PrintSuccess("goexif agrees")
	return nil
}

func runFormats(e *env) error {
	e.printer().PrintFormats(image.Formats())
	return nil
}
