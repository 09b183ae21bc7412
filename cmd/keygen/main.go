// Command keygen prints random secrets suitable for JWT_SECRET.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"expense-tracker/internal/auth"
	"expense-tracker/internal/config"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	hexBytes := fs.Int("hex-bytes", 32, "Random bytes in the hex secret")
	urlBytes := fs.Int("url-bytes", 64, "Random bytes in the URL-safe secret")
	envLine := fs.Bool("env", false, "Print a single JWT_SECRET=<url-safe secret> line for a .env file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	for _, n := range []int{*hexBytes, *urlBytes} {
		if n < config.MinSecretLength {
			return fmt.Errorf("secrets need at least %d random bytes, got %d", config.MinSecretLength, n)
		}
	}

	urlSafe, err := auth.GenerateSecret(*urlBytes, true)
	if err != nil {
		return err
	}
	if *envLine {
		fmt.Fprintf(stdout, "JWT_SECRET=%s\n", urlSafe)
		return nil
	}

	hexSecret, err := auth.GenerateSecret(*hexBytes, false)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, "Generating keys...")
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "Secret (hex, %d bytes): %s\n", *hexBytes, hexSecret)
	fmt.Fprintf(stdout, "  Length: %d characters\n\n", len(hexSecret))
	fmt.Fprintf(stdout, "JWT_SECRET (url-safe, %d bytes): %s\n", *urlBytes, urlSafe)
	fmt.Fprintf(stdout, "  Length: %d characters\n", len(urlSafe))
	return nil
}
