package helpers

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/term"
)

var stdin = bufio.NewReader(os.Stdin)

func PromptLineWithDefault(label, def string) string {
	return promptLine(stdin, os.Stdout, label, def)
}

func promptLine(r *bufio.Reader, w io.Writer, label, def string) string {
	if def != "" {
		_, _ = fmt.Fprintf(w, "%s [%s]: ", label, def)
	} else {
		_, _ = fmt.Fprintf(w, "%s: ", label)
	}

	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return def
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

// Confirm asks a yes/no question; anything but y/yes is no.
func Confirm(label string) bool {
	answer := strings.ToLower(PromptLineWithDefault(label+" (y/N)", ""))
	return answer == "y" || answer == "yes"
}

// PromptSecret reads a line without echo. Callers should ZeroBytes the
// result when done.
func PromptSecret(prompt string) ([]byte, error) {
	_, _ = fmt.Fprint(os.Stderr, prompt)

	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	_, _ = fmt.Fprintln(os.Stderr)

	if err != nil {
		ZeroBytes(b)
		return nil, errors.Wrap(err, "secret input failed")
	}
	return b, nil
}

// PromptPIN reads a PIN without echo. Format is checked by the PIN gate.
func PromptPIN(prompt string) (string, error) {
	b, err := PromptSecret(prompt)
	if err != nil {
		return "", err
	}
	defer ZeroBytes(b)
	return strings.TrimSpace(string(b)), nil
}

// PromptNewPIN asks twice and fails if the entries differ.
func PromptNewPIN() (string, error) {
	first, err := PromptPIN("New 6-digit PIN: ")
	if err != nil {
		return "", err
	}
	second, err := PromptPIN("Repeat PIN: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("PINs do not match")
	}
	return first, nil
}

func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
