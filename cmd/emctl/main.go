package main

import (
	"os"
	"strings"

	"emctl/internal/allocation"
	"emctl/internal/cli"
)

func rewriteRelationShortcutArgs(argv []string) []string {
	// Convenience: `emctl user-project` opens the editor on that relation, like
	// `emctl edit --relation user-project`.
	//
	// Persistent flags may come first (e.g. `emctl --company acme user-project`),
	// so the first positional token is what counts, not argv[1].
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--base-url":  true,
		"--company":   true,
		"--format":    true,
		"--log-level": true,
		"--timeout":   true,
	}

	rewrite := func(i int) []string {
		out := make([]string, 0, len(argv)+2)
		out = append(out, argv[:i]...)
		out = append(out, "edit", "--relation", argv[i])
		out = append(out, argv[i+1:]...)
		return out
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if !strings.Contains(a, "=") && valueFlags[a] {
				i++
			}
			continue
		}
		if _, ok := allocation.RelationByName(a); ok {
			return rewrite(i)
		}
		return argv
	}
	return argv
}

func main() {
	os.Args = rewriteRelationShortcutArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
