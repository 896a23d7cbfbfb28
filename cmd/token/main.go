// Command token prints a signed bearer token for driving the API locally.
// In production tokens come from the identity provider that shares
// JWT_SECRET with the API.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v10"

	"github.com/romariotrain/holograma/internal/auth"
	"github.com/romariotrain/holograma/internal/config"
	"github.com/romariotrain/holograma/internal/media/models"
)

type tokenConfig struct {
	UID   string `env:"TOKEN_UID" envDefault:"dev-admin"`
	Email string `env:"TOKEN_EMAIL"`
	Role  string `env:"TOKEN_ROLE" envDefault:"admin"`
}

func main() {
	if err := run(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireAuth(); err != nil {
		return err
	}

	var tc tokenConfig
	if err := env.Parse(&tc); err != nil {
		return fmt.Errorf("parse token env: %w", err)
	}

	token, err := auth.New(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL).Issue(models.Principal{
		UID:   tc.UID,
		Email: tc.Email,
		Role:  models.Role(tc.Role),
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}
