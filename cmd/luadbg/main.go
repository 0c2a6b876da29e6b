// Package main is the entry point for the luadbg debug host.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dshills/luadbg/internal/luart"
	"github.com/dshills/luadbg/internal/remote"
	"github.com/dshills/luadbg/internal/session"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

type options struct {
	Addr        string
	EvalTimeout time.Duration
	WaitClient  bool
	Script      string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	source, err := os.ReadFile(opts.Script)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: read script: %v\n", err)
		return 1
	}

	rt, err := luart.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: create runtime: %v\n", err)
		return 1
	}
	defer rt.Close()

	prog, err := rt.Load(opts.Script, string(source))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load script: %v\n", err)
		return 1
	}

	hub := remote.NewHub()
	sess := session.New(rt, hub, session.WithEvalTimeout(opts.EvalTimeout))
	hub.Bind(sess)
	rt.AttachSession(sess)
	sess.OnAttach()
	defer sess.OnDetach()

	mux := http.NewServeMux()
	mux.HandleFunc("/debug", hub.HandleWebSocket)
	server := &http.Server{Addr: opts.Addr, Handler: mux}

	errs := make(chan error, 2)
	go func() {
		errs <- server.ListenAndServe()
	}()

	if opts.WaitClient {
		// Park at the first statement until a client resumes execution.
		sess.RequestBreak()
	}

	done := make(chan error, 1)
	go func() {
		done <- rt.Run(prog)
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-done:
		server.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: script: %v\n", err)
			return 1
		}
		return 0
	case err := <-errs:
		fmt.Fprintf(os.Stderr, "Error: serve: %v\n", err)
		return 1
	case <-signals:
		sess.OnDetach()
		server.Close()
		return 0
	}
}

func parseFlags() options {
	var opts options
	var showVersion bool

	flag.StringVar(&opts.Addr, "addr", "localhost:9229", "Debug server listen address")
	flag.StringVar(&opts.Addr, "a", "localhost:9229", "Debug server listen address (shorthand)")
	flag.DurationVar(&opts.EvalTimeout, "eval-timeout", session.DefaultEvalTimeout, "Watch evaluation deadline")
	flag.BoolVar(&opts.WaitClient, "wait", false, "Break at the first statement until a client attaches")
	flag.BoolVar(&opts.WaitClient, "w", false, "Break at the first statement until a client attaches (shorthand)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "luadbg - remote debug host for Lua scripts\n\n")
		fmt.Fprintf(os.Stderr, "Usage: luadbg [options] script.lua\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  luadbg script.lua             Run with the debug server on :9229\n")
		fmt.Fprintf(os.Stderr, "  luadbg -w script.lua          Wait for a client before running\n")
		fmt.Fprintf(os.Stderr, "  luadbg -a :4000 script.lua    Serve on another port\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("luadbg %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	opts.Script = flag.Arg(0)
	return opts
}
