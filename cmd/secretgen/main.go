// Command secretgen creates the shared secret file for AUTH_MODE=shared-secret:
// it prompts for the secret twice and writes its bcrypt hash.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"audioserve/internal/auth"
)

const minSecretLength = 8

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <secret-file>\n", os.Args[0])
		os.Exit(2)
	}
	path := os.Args[1]

	secret, err := readSecret()
	if err != nil {
		fmt.Fprintf(os.Stderr, "secretgen: %v\n", err)
		os.Exit(1)
	}

	hash, err := auth.HashSecret(secret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "secretgen: failed to hash secret: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(path, append(hash, '\n'), 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "secretgen: failed to write %s: %v\n", path, err)
		os.Exit(1)
	}
	fmt.Printf("Shared secret hash written to %s\n", path)
}

func readSecret() (string, error) {
	stdin := bufio.NewReader(os.Stdin)

	first, err := prompt(stdin, "Shared secret: ")
	if err != nil {
		return "", err
	}
	if len(first) < minSecretLength {
		return "", fmt.Errorf("secret must be at least %d characters", minSecretLength)
	}

	second, err := prompt(stdin, "Repeat secret: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("secrets do not match")
	}
	return first, nil
}

// prompt reads a secret without echo when stdin is a terminal, and as a
// plain line otherwise so the tool stays scriptable.
func prompt(stdin *bufio.Reader, label string) (string, error) {
	fmt.Fprint(os.Stderr, label)

	if term.IsTerminal(int(syscall.Stdin)) {
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
