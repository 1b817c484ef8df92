package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dukerupert/whathappened/internal/auth"
	"github.com/dukerupert/whathappened/internal/config"
)

func token(args []string, stdout io.Writer) error {
	fs, configPath := newFlagSet("token")
	user := fs.String("user", "", "subject of the token")
	role := fs.String("role", auth.RoleUser, "user, gatherer or admin")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errors.New("-user is required")
	}
	switch *role {
	case auth.RoleUser, auth.RoleGatherer, auth.RoleAdmin:
	default:
		return fmt.Errorf("unknown role %q", *role)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	signed, err := auth.IssueToken(cfg.Auth.JWTSecret, *user, *role, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, signed)
	return nil
}
