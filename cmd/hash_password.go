package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/smazurov/photostation/internal/settings"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// CreateHashPasswordCmd creates the hash-password command.
func CreateHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for settings.toml",
		Long: `Hashes the settings password for the password_hash key in settings.toml. ` +
			`Without an argument the password is read from the terminal (not echoed) or from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				var err error
				if password, err = readPassword(c); err != nil {
					return err
				}
			}

			hash, err := settings.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), hash)
			return nil
		},
	}
}

func readPassword(c *cobra.Command) (string, error) {
	if f, ok := c.InOrStdin().(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		fd := f.Fd()
		fmt.Fprint(c.ErrOrStderr(), "Password: ")
		first, err := term.ReadPassword(int(fd))
		fmt.Fprintln(c.ErrOrStderr())
		if err != nil {
			return "", err
		}
		fmt.Fprint(c.ErrOrStderr(), "Repeat: ")
		second, err := term.ReadPassword(int(fd))
		fmt.Fprintln(c.ErrOrStderr())
		if err != nil {
			return "", err
		}
		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(c.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
