package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rzadesk/rzadesk/client/internal/batch"
	"github.com/rzadesk/rzadesk/client/internal/config"
	"github.com/rzadesk/rzadesk/client/internal/remote"
	"github.com/rzadesk/rzadesk/pkg/rza"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type commandOptions struct {
	config  string
	remote  bool
	json    bool
	verbose bool
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "kinds":
		err = runKinds(os.Args[2:])
	case "calc":
		err = runCalc(os.Args[2:])
	case "batch":
		err = runBatch(os.Args[2:])
	case "version":
		fmt.Println(version)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fail(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "rzacalc - relay protection and automation calculator")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  rzacalc kinds   [-remote] [-json]")
	fmt.Fprintln(os.Stderr, "  rzacalc calc    -kind mtz -set in=100 -set ks=1.3 -set t=0.5 [-strict] [-remote] [-json]")
	fmt.Fprintln(os.Stderr, "  rzacalc batch   -f batch.yaml [-remote] [-keep] [-json]")
	fmt.Fprintln(os.Stderr, "  rzacalc version")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Remote commands read -config (client: section) for the server endpoint and auth.")
}

func baseFlags(cmd string) (*flag.FlagSet, *commandOptions) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := &commandOptions{}
	fs.StringVar(&opts.config, "config", "", "path to client config file (defaults apply when empty)")
	fs.BoolVar(&opts.remote, "remote", false, "run against rzadesk-server instead of locally")
	fs.BoolVar(&opts.json, "json", false, "print JSON instead of text")
	fs.BoolVar(&opts.verbose, "verbose", false, "log requests and retries to stderr")
	return fs, opts
}

// setFlag collects repeated -set name=value pairs into an input map.
type setFlag rza.Input

func (s setFlag) String() string {
	parts := make([]string, 0, len(s))
	for k, v := range s {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (s setFlag) Set(pair string) error {
	name, value, ok := strings.Cut(pair, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("invalid -set %q, want name=value", pair)
	}
	s[name] = value
	return nil
}

// newClient loads the client config and builds a remote client.
func newClient(opts *commandOptions) (*remote.Client, error) {
	if opts.verbose {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	cfg := config.Defaults()
	if opts.config != "" {
		var err error
		if cfg, err = config.Load(opts.config); err != nil {
			return nil, err
		}
	}
	return remote.New(cfg.Client), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runKinds(args []string) error {
	fs, opts := baseFlags("kinds")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !opts.remote {
		return renderKinds(os.Stdout, localKinds(), opts.json)
	}

	client, err := newClient(opts)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	kinds, err := client.Kinds(ctx)
	if err != nil {
		return err
	}
	return renderKinds(os.Stdout, kinds, opts.json)
}

func runCalc(args []string) error {
	fs, opts := baseFlags("calc")
	kind := fs.String("kind", string(rza.KindOvercurrent), "calculation kind, see rzacalc kinds")
	strict := fs.Bool("strict", false, "reject missing or non-numeric input instead of printing NaN (local only)")
	in := setFlag{}
	fs.Var(in, "set", "input field as name=value; repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}

	k := rza.ParseKind(*kind)
	if !k.Known() {
		return exitError{code: 2, err: fmt.Errorf("unknown kind %q", *kind)}
	}

	if !opts.remote {
		if *strict {
			if err := rza.Validate(k, rza.Input(in)); err != nil {
				return exitError{code: 2, err: err}
			}
		}
		return renderCalculation(os.Stdout, localCalculation(k, rza.Input(in)), opts.json)
	}

	client, err := newClient(opts)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	resp, err := client.Calculate(ctx, k, rza.Input(in))
	if err != nil {
		return apiExit(err)
	}
	return renderCalculation(os.Stdout, resp, opts.json)
}

func runBatch(args []string) error {
	fs, opts := baseFlags("batch")
	file := fs.String("f", "", "path to batch file")
	keep := fs.Bool("keep", false, "keep the remote session open and print its id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*file) == "" {
		return errors.New("-f is required")
	}
	b, err := batch.Load(*file)
	if err != nil {
		return err
	}

	if !opts.remote {
		fd := b.Run()
		return renderFeed(os.Stdout, string(fd.Selected()), fd.Results(), opts.json)
	}

	client, err := newClient(opts)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	created, err := client.CreateSession(ctx)
	if err != nil {
		return apiExit(err)
	}
	id := created.ID
	if *keep {
		fmt.Fprintf(os.Stderr, "session %s\n", id)
	} else {
		defer func() {
			if err := client.DeleteSession(context.Background(), id); err != nil {
				slog.Warn("rzacalc: delete session failed", "session", id, "err", err)
			}
		}()
	}

	sess, err := b.RunSession(ctx, client, id)
	if err != nil {
		return apiExit(err)
	}
	return renderFeed(os.Stdout, sess.SelectedKind, sess.Feed, opts.json)
}

// apiExit maps rejected input to exit code 2 so scripts can tell it apart
// from connectivity failures.
func apiExit(err error) error {
	var apiErr *remote.APIError
	if errors.As(err, &apiErr) && apiErr.Status < 500 {
		return exitError{code: 2, err: err}
	}
	return err
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	var ie *rza.InputError
	if errors.As(err, &ie) {
		for _, f := range ie.Fields {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", f.Field, f.Reason)
		}
	}
	var apiErr *remote.APIError
	if errors.As(err, &apiErr) {
		for _, f := range apiErr.Fields {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", f.Field, f.Reason)
		}
	}
	type exitCoder interface {
		ExitCode() int
	}
	var coded exitCoder
	if errors.As(err, &coded) {
		os.Exit(coded.ExitCode())
	}
	os.Exit(1)
}
