// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// PasswordEnv is checked before prompting for a feed password
const PasswordEnv = "DSLINK_PASSWORD"

// feedPassword resolves the feed password for username. A configured
// password wins, then PasswordEnv, then an interactive prompt. Without a
// username the feed is open and nothing is asked.
func feedPassword(username, configured string) (string, error) {
	if username == "" {
		return "", nil
	}
	if configured != "" {
		return configured, nil
	}
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return pw, nil
	}
	return promptPassword(os.Stdin, os.Stderr, fmt.Sprintf("Password for %s: ", username))
}

// promptPassword reads a password from in without echo. When in is not a
// terminal a plain line is read instead.
func promptPassword(in *os.File, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	defer fmt.Fprintln(out)

	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
