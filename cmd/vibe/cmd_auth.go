package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/sakif/vibecoding/internal/auth"
	"github.com/sakif/vibecoding/internal/config"
)

var (
	tokenHwd = &TokenRunner{stdout: os.Stdout, stderr: os.Stderr}
	hashHwd  = &HashRunner{stdin: os.Stdin, stdout: os.Stdout}
)

type TokenRunner struct {
	stdout io.Writer
	stderr io.Writer
}

func (r *TokenRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue an API token signed with the configured JWT secret",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "Token lifetime (defaults to the configured token_ttl)",
			},
		},
		Action: r.run,
	}
}

func (r *TokenRunner) run(_ context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.AuthEnabled() {
		return errors.New("JWT_SECRET is not configured")
	}
	ttl := cfg.Auth.TokenTTL
	if d := cmd.Duration("ttl"); d > 0 {
		ttl = d
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, ttl)
	if err != nil {
		return err
	}
	token, expiresAt, err := tokens.Issue(auth.OwnerSubject)
	if err != nil {
		return err
	}

	fmt.Fprintln(r.stdout, token)
	cDim.Fprintf(r.stderr, "expires %s\n", expiresAt.Local().Format("2006-01-02 15:04:05"))
	return nil
}

type HashRunner struct {
	stdin  io.Reader
	stdout io.Writer
}

func (r *HashRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:  "hash-password",
		Usage: "Print a bcrypt hash to use as PASSWORD_HASH (reads the password from stdin)",
		Action: r.run,
	}
}

func (r *HashRunner) run(_ context.Context, _ *cli.Command) error {
	line, err := bufio.NewReader(r.stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")

	hash, err := auth.NewPasswordService().Hash(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.stdout, hash)
	return nil
}
