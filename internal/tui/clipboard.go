package tui

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"emctl/internal/model"
)

// clipboardWriter is swapped out in tests.
var clipboardWriter = copyToClipboard

type clipboardTool struct {
	name string
	args []string
}

// clipboardTools lists the copy commands tried for goos, first hit wins.
func clipboardTools(goos string) []clipboardTool {
	switch goos {
	case "darwin":
		return []clipboardTool{{name: "pbcopy"}}
	case "windows":
		return []clipboardTool{
			{name: "cmd", args: []string{"/c", "clip"}},
			{name: "powershell", args: []string{"-NoProfile", "-Command", "Set-Clipboard"}},
		}
	}
	return []clipboardTool{
		{name: "wl-copy"},
		{name: "xclip", args: []string{"-selection", "clipboard"}},
		{name: "xsel", args: []string{"--clipboard", "--input"}},
	}
}

func copyToClipboard(s string) error {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var errs []error
	for _, tool := range clipboardTools(runtime.GOOS) {
		err := runClipboardCmd(tool, s)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return fmt.Errorf("no clipboard tool worked: %w", errors.Join(errs...))
}

func runClipboardCmd(tool clipboardTool, stdin string) error {
	path, err := exec.LookPath(tool.name)
	if err != nil {
		return err
	}
	cmd := exec.Command(path, tool.args...)
	cmd.Stdin = strings.NewReader(stdin)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", tool.name, err)
	}
	return nil
}

// membersClipboardText is one "name<TAB>id" line per member, ready to paste into a sheet.
func membersClipboardText(ents []model.Entity) string {
	var b strings.Builder
	for _, e := range ents {
		b.WriteString(e.Name)
		b.WriteString("\t")
		b.WriteString(e.ID)
		b.WriteString("\n")
	}
	return b.String()
}
