// Package flagx holds helpers for pre-scanning command-line arguments before
// the full flag set is parsed.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// FilterArgs returns the subset of args made of allowedFlags and their
// values. Scanning stops at "--" or at the first positional argument, so
// flags that belong to a subcommand are never picked up.
//
// Both "-c conf.json" and "-c=conf.json" forms are recognised. The argument
// after an allowed flag is taken as its value unless it looks like a flag.
// valueFlags names other flags (without dashes) that consume the next
// argument; they are skipped together with their value.
func FilterArgs(args []string, allowedFlags []string, valueFlags ...string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}
	takesValue := make(map[string]struct{}, len(valueFlags))
	for _, f := range valueFlags {
		takesValue[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" || !isFlag(arg) {
			break
		}

		if name, _, ok := strings.Cut(arg, "="); ok {
			if _, keep := allowed[name]; keep {
				filtered = append(filtered, arg)
			}
			continue
		}

		hasValue := i+1 < len(args) && !isFlag(args[i+1])

		if _, keep := allowed[arg]; keep {
			filtered = append(filtered, arg)
			if hasValue {
				filtered = append(filtered, args[i+1])
				i++
			}
			continue
		}

		if _, ok := takesValue[strings.TrimLeft(arg, "-")]; ok && hasValue {
			i++
		}
	}

	return filtered
}

func isFlag(arg string) bool {
	return len(arg) > 1 && arg[0] == '-'
}

// ConfigPath extracts the config file path given via -c or -config (single
// or double dash) ahead of the first positional argument. It returns "" when
// neither is present.
func ConfigPath(args []string, valueFlags ...string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config", "--c", "--config"}, valueFlags...))

	return path
}
