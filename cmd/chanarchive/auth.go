package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"chanarchive/pkg/auth"
	"chanarchive/pkg/discord"
	"chanarchive/pkg/ui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored account tokens",
	Long: `Manage stored account tokens.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - CHANARCHIVE_TOKEN environment variable (read only)

Never share your token or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store an account token securely",
	Long: `Store an account token in the system keychain or encrypted file.

The token is read without echo. When stdin is not a terminal it is read
from the first line of stdin instead.`,
	Example: `  # Interactive login as the default account
  chanarchive auth login

  # Store a second account
  chanarchive auth login archive-bot

  # Non-interactive
  echo "$TOKEN" | chanarchive auth login`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Long:  `List stored accounts with masked tokens.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

// removeCmd represents the auth remove command
var removeCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"logout"},
	Short:   "Remove a stored account",
	Args:    cobra.ExactArgs(1),
	RunE:    runRemove,
}

var loginUserAgent string

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(removeCmd)

	loginCmd.Flags().StringVar(&loginUserAgent, "user-agent", "", "browser user agent sent with this token")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := auth.DefaultAccount
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}

	token, err := readToken(cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if token == "" {
		return errors.New("token is required")
	}

	account := &auth.Account{
		Name:      name,
		Token:     token,
		UserAgent: strings.TrimSpace(loginUserAgent),
	}
	if err := manager.Store(account); err != nil {
		return err
	}

	ui.PrintSuccess("Account saved: " + name)
	ui.PrintInfo("Token", discord.MaskToken(token))
	return nil
}

// readToken reads a hidden line from a terminal, or a plain line otherwise
func readToken(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Token (hidden): ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'chanarchive auth login' to add one")
		return nil
	}

	ui.Default().Table("Stored Accounts", []string{"Name", "Token", "User Agent", "Last Modified"}, accountRows(accounts))
	return nil
}

func accountRows(accounts []*auth.Account) [][]string {
	rows := make([][]string, 0, len(accounts))
	for _, account := range accounts {
		a := auth.SanitizeAccount(account)
		modified := "-"
		if !a.LastModified.IsZero() {
			modified = a.LastModified.Format(time.DateTime)
		}
		ua := a.UserAgent
		if ua == "" {
			ua = "(default)"
		}
		rows = append(rows, []string{a.Name, a.Token, ua, modified})
	}
	return rows
}

func runRemove(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := strings.TrimSpace(args[0])
	if err := manager.Delete(name); err != nil {
		return err
	}
	ui.PrintSuccess("Account removed: " + name)
	return nil
}
