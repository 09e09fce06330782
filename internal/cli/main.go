package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"

	"github.com/dmitrijs2005/transfercache/internal/common"
	"github.com/dmitrijs2005/transfercache/internal/config"
)

// Exit codes returned by Main.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// Main parses args (without the program name), runs one command and returns
// the process exit code.
func Main(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, rest, err := config.Load(args)
	if errors.Is(err, flag.ErrHelp) {
		usage(stderr)
		return ExitOK
	}
	if err != nil {
		fmt.Fprintln(stderr, "cachectl:", err)
		usage(stderr)
		return ExitUsage
	}

	app, err := NewApp(ctx, cfg, stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "cachectl:", err)
		return ExitError
	}
	defer app.Close()

	if err := app.Run(ctx, rest); err != nil {
		fmt.Fprintln(stderr, "cachectl:", err)
		if errors.Is(err, common.ErrInvalidArgument) {
			return ExitUsage
		}
		return ExitError
	}
	return ExitOK
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: cachectl [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(w, "  "+commands[name].usage)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "flags:")
	config.PrintDefaults(w)
}
