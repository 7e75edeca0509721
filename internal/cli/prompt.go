package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// confirm asks a yes/no question and reports whether the answer was "yes" or "y".
func confirm(r *bufio.Reader, w io.Writer, question string) (bool, error) {
	fmt.Fprintf(w, "%s (yes/no): ", question)
	input, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "yes", "y":
		return true, nil
	}
	return false, nil
}

// promptString reads one line and returns def when the line is empty.
func promptString(r *bufio.Reader, w io.Writer, label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(w, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(w, "%s: ", label)
	}
	input, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	if input = strings.TrimSpace(input); input == "" {
		return def, nil
	}
	return input, nil
}

// promptSecret reads a line without echo when in is a terminal.
func promptSecret(r *bufio.Reader, in io.Reader, w io.Writer, label string) (string, error) {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return promptString(r, w, label, "")
	}
	fmt.Fprintf(w, "%s: ", label)
	secret, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}
