// Package integration provides embedded shell integration snippets.
package integration

import (
	"bytes"
	_ "embed"
	"fmt"
	"os/exec"
	"path/filepath"
	"text/template"
)

// ZshFzf contains the zsh shell integration script with fzf support.
//
//go:embed zsh-fzf.sh
var ZshFzf string

// Render renders the integration script for the zsh found in PATH.
func Render() (string, error) {
	zsh, err := exec.LookPath("zsh")
	if err != nil {
		return "", fmt.Errorf("locating zsh: %w", err)
	}

	return RenderFor(zsh)
}

// RenderFor renders the integration script for the given zsh binary.
func RenderFor(zsh string) (string, error) {
	tmpl, err := template.New("zsh-fzf").Option("missingkey=error").Parse(ZshFzf)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]any{
		"ZSH": filepath.ToSlash(zsh),
	}); err != nil {
		return "", err
	}

	return buf.String(), nil
}
