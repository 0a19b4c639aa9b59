package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/moasq/swiftsmith/internal/config"
	"github.com/moasq/swiftsmith/internal/secrets"
	"github.com/moasq/swiftsmith/internal/terminal"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage provider API keys",
	Long:  "Store LLM provider API keys in the OS keychain (or a private file when no keychain is available). Environment variables take priority over stored keys.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return keysListRun()
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show which providers have a key",
	RunE: func(cmd *cobra.Command, args []string) error {
		return keysListRun()
	},
}

var keysSetCmd = &cobra.Command{
	Use:   "set [provider]",
	Short: "Store an API key",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, err := pickProvider(args, "Set key for")
		if err != nil || provider == "" {
			return err
		}
		key, err := readSecret(cmd.InOrStdin(), fmt.Sprintf("  %s API key: ", provider))
		if err != nil {
			return err
		}
		if key == "" {
			return fmt.Errorf("empty key")
		}
		store, err := keyStore()
		if err != nil {
			return err
		}
		if err := store.Set(secrets.APIKey(provider), key); err != nil {
			return fmt.Errorf("store key: %w", err)
		}
		terminal.Success(fmt.Sprintf("Saved %s key %s", provider, secrets.Mask(key)))
		return nil
	},
}

var keysDeleteCmd = &cobra.Command{
	Use:     "delete [provider]",
	Aliases: []string{"rm"},
	Short:   "Remove a stored API key",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, err := pickProvider(args, "Delete key for")
		if err != nil || provider == "" {
			return err
		}
		store, err := keyStore()
		if err != nil {
			return err
		}
		if err := store.Delete(secrets.APIKey(provider)); err != nil {
			return fmt.Errorf("delete key: %w", err)
		}
		terminal.Success(fmt.Sprintf("Removed %s key", provider))
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysSetCmd)
	keysCmd.AddCommand(keysDeleteCmd)
}

func keyStore() (secrets.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return secrets.New(cfg.Root), nil
}

func keysListRun() error {
	store, err := keyStore()
	if err != nil {
		return err
	}
	fmt.Println()
	terminal.Header("API keys")
	for _, p := range providerChoices() {
		stored, err := secrets.Lookup(store, p)
		if err != nil {
			return err
		}
		status := fmt.Sprintf("%s✗ not set%s", terminal.Dim, terminal.Reset)
		switch key := config.APIKey(p, nil); {
		case key != "":
			status = fmt.Sprintf("%s✓ %s%s %s(environment)%s", terminal.Green, secrets.Mask(key), terminal.Reset, terminal.Dim, terminal.Reset)
		case stored != "":
			status = fmt.Sprintf("%s✓ %s%s", terminal.Green, secrets.Mask(stored), terminal.Reset)
		}
		fmt.Printf("  %s%-12s%s %s\n", terminal.Bold, p, terminal.Reset, status)
	}
	fmt.Println()
	return nil
}

// pickProvider validates args[0] or shows a picker when no provider was
// given. It returns "" when the picker was cancelled.
func pickProvider(args []string, title string) (string, error) {
	choices := providerChoices()
	if len(args) == 1 {
		p := strings.ToLower(args[0])
		if !slices.Contains(choices, p) {
			return "", fmt.Errorf("unknown provider %q (choose from %s)", args[0], strings.Join(choices, ", "))
		}
		return p, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("provider is required")
	}
	opts := make([]terminal.PickerOption, len(choices))
	for i, c := range choices {
		opts[i] = terminal.PickerOption{Label: c}
	}
	return terminal.Pick(title, opts, ""), nil
}

// readSecret reads one line without echo on a terminal.
func readSecret(in io.Reader, prompt string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Print(prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
