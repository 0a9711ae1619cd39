package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrompter struct {
	answers map[string]string
	asked   []string
	secrets []string
	err     error
}

func (p *fakePrompter) Input(title string, secret bool) (string, error) {
	p.asked = append(p.asked, title)
	if secret {
		p.secrets = append(p.secrets, title)
	}
	if p.err != nil {
		return "", p.err
	}
	return p.answers[title], nil
}

func TestResolve_Complete(t *testing.T) {
	cfg := Default()
	cfg.Inventory.URL = "https://inventory.example.com"
	cfg.Inventory.Username = "ops"
	cfg.Inventory.Password = "secret"

	p := &fakePrompter{}
	require.NoError(t, Resolve(cfg, p))
	assert.Empty(t, p.asked)
}

func TestResolve_NonInteractiveMissing(t *testing.T) {
	cfg := Default()
	cfg.Inventory.URL = "https://inventory.example.com"
	cfg.Inventory.Username = "ops"

	err := Resolve(cfg, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingConfig)
	assert.Contains(t, err.Error(), "inventory.password")
}

func TestResolve_PromptsForMissing(t *testing.T) {
	cfg := Default()
	cfg.Inventory.URL = "https://inventory.example.com"

	p := &fakePrompter{answers: map[string]string{
		"Inventory user":     "ops",
		"Inventory password": "secret",
	}}
	require.NoError(t, Resolve(cfg, p))

	assert.Equal(t, "ops", cfg.Inventory.Username)
	assert.Equal(t, "secret", cfg.Inventory.Password)
	assert.Equal(t, []string{"Inventory user", "Inventory password"}, p.asked)
	assert.Equal(t, []string{"Inventory password"}, p.secrets)
}

func TestResolve_EmptyAnswer(t *testing.T) {
	cfg := Default()
	cfg.Inventory.URL = "https://inventory.example.com"
	cfg.Inventory.Username = "ops"

	err := Resolve(cfg, &fakePrompter{answers: map[string]string{}})
	assert.ErrorIs(t, err, ErrMissingConfig)
}

func TestResolve_PromptError(t *testing.T) {
	cfg := Default()
	boom := errors.New("user aborted")

	err := Resolve(cfg, &fakePrompter{err: boom})
	assert.ErrorIs(t, err, boom)
}
