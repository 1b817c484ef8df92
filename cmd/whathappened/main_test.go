package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dukerupert/whathappened/internal/auth"
)

func TestRunUnknownCommand(t *testing.T) {
	if err := run([]string{"frobnicate"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestRunHelp(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"help"}, &out); err != nil {
		t.Fatalf("help: %v", err)
	}
	if !strings.Contains(out.String(), "serve") {
		t.Errorf("usage = %q", out.String())
	}
}

func TestRunToken(t *testing.T) {
	t.Setenv("WHATHAPPENED_AUTH_JWT_SECRET", "s3cret")
	var out bytes.Buffer

	if err := run([]string{"token", "-user", "alice", "-role", "gatherer"}, &out); err != nil {
		t.Fatalf("token: %v", err)
	}
	id, err := auth.ParseToken("s3cret", strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id.User != "alice" || id.Role != auth.RoleGatherer {
		t.Errorf("identity = %+v", id)
	}
}

func TestRunTokenRejects(t *testing.T) {
	t.Setenv("WHATHAPPENED_AUTH_JWT_SECRET", "s3cret")

	for name, args := range map[string][]string{
		"missing user": {"token"},
		"unknown role": {"token", "-user", "alice", "-role", "root"},
	} {
		t.Run(name, func(t *testing.T) {
			if err := run(args, &bytes.Buffer{}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRunTokenWithoutSecret(t *testing.T) {
	t.Setenv("WHATHAPPENED_AUTH_JWT_SECRET", "")

	if err := run([]string{"token", "-user", "alice"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error without a signing secret")
	}
}

func TestRunClean(t *testing.T) {
	t.Setenv("WHATHAPPENED_STORAGE_DIRECTORY", t.TempDir())
	t.Setenv("WHATHAPPENED_LOG_LEVEL", "error")
	var out bytes.Buffer

	if err := run([]string{"clean"}, &out); err != nil {
		t.Fatalf("clean: %v", err)
	}
	if strings.TrimSpace(out.String()) != "cleaned 0 stores" {
		t.Errorf("output = %q", out.String())
	}
}
