package config

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// Prompter asks the operator for a missing value.
type Prompter interface {
	Input(title string, secret bool) (string, error)
}

// Resolve makes sure the inventory URL and credentials are present,
// prompting for them when a Prompter is given. Pass a nil Prompter in
// non-interactive contexts; missing values then yield ErrMissingConfig.
func Resolve(cfg *Config, p Prompter) error {
	fields := []struct {
		name   string
		title  string
		secret bool
		value  *string
	}{
		{"inventory.url", "Inventory URL", false, &cfg.Inventory.URL},
		{"inventory.username", "Inventory user", false, &cfg.Inventory.Username},
		{"inventory.password", "Inventory password", true, &cfg.Inventory.Password},
	}

	for _, f := range fields {
		if *f.value != "" {
			continue
		}
		if p == nil {
			return fmt.Errorf("%w: %s is not set (config file or environment)", ErrMissingConfig, f.name)
		}
		v, err := p.Input(f.title, f.secret)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", f.name, err)
		}
		if v == "" {
			return fmt.Errorf("%w: %s", ErrMissingConfig, f.name)
		}
		*f.value = v
	}

	return cfg.Validate()
}

// IsInteractive reports whether both stdin and stdout are terminals.
func IsInteractive() bool {
	in, out := os.Stdin.Fd(), os.Stdout.Fd()
	return (isatty.IsTerminal(in) || isatty.IsCygwinTerminal(in)) &&
		(isatty.IsTerminal(out) || isatty.IsCygwinTerminal(out))
}

// TerminalPrompter prompts on the terminal.
type TerminalPrompter struct{}

// Input implements Prompter.
func (TerminalPrompter) Input(title string, secret bool) (string, error) {
	var value string
	input := huh.NewInput().Title(title).Value(&value)
	if secret {
		input = input.EchoMode(huh.EchoModePassword)
	}
	if err := huh.NewForm(huh.NewGroup(input)).Run(); err != nil {
		return "", err
	}
	return value, nil
}

// Confirm asks a yes/no question on the terminal.
func (TerminalPrompter) Confirm(title string) (bool, error) {
	var ok bool
	confirm := huh.NewConfirm().Title(title).Affirmative("Yes").Negative("No").Value(&ok)
	if err := huh.NewForm(huh.NewGroup(confirm)).Run(); err != nil {
		return false, err
	}
	return ok, nil
}
