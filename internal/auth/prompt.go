package auth

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// promptSecret reads a line with terminal echo disabled. Prompts go to
// stderr so hook adapters capturing stdout never see them.
func promptSecret(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	defer fmt.Fprintln(os.Stderr)

	if term.IsTerminal(int(os.Stdin.Fd())) {
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	return readLine()
}

func promptLine(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	return readLine()
}

// promptYesNo asks for confirmation; anything but y/yes is no.
func promptYesNo(label string) (bool, error) {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", label)
	line, err := readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func readLine() (string, error) {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
