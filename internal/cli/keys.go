package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Credentials stores API keys per upstream verification provider
type Credentials struct {
	Providers map[string]ProviderCredential `yaml:"providers"`
}

// ProviderCredential stores the key for a single provider
type ProviderCredential struct {
	APIKey string `yaml:"api_key"`
}

// knownProviders are the upstream sources that accept an API key
var knownProviders = map[string]bool{
	"etherscan": true,
}

func createKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage upstream provider API keys",
	}

	cmd.AddCommand(createKeysSetCmd())
	cmd.AddCommand(createKeysShowCmd())
	cmd.AddCommand(createKeysRemoveCmd())

	return cmd
}

func createKeysSetCmd() *cobra.Command {
	var keyFlag string

	cmd := &cobra.Command{
		Use:   "set [provider]",
		Short: "Store an API key for a provider",
		Long: `Save an API key for an upstream verification provider.

Keys are used by 'verimeta fetch --direct' when querying explorer APIs.
They are stored in ~/.verimeta/credentials with secure file permissions.

EXAMPLES:
  # Interactive (prompts for the key)
  verimeta keys set etherscan

  # Non-interactive (for CI)
  verimeta keys set etherscan --key $ETHERSCAN_API_KEY
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := "etherscan"
			if len(args) > 0 {
				provider = args[0]
			}
			return runKeysSet(provider, keyFlag)
		},
	}

	cmd.Flags().StringVar(&keyFlag, "key", "", "API key (prompts if not provided)")

	return cmd
}

func createKeysShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List stored provider keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysShow()
		},
	}
}

func createKeysRemoveCmd() *cobra.Command {
	var allFlag bool

	cmd := &cobra.Command{
		Use:   "remove [provider]",
		Short: "Remove a stored provider key",
		Long: `Remove a saved provider key.

EXAMPLES:
  # Remove the etherscan key
  verimeta keys remove etherscan

  # Remove all stored keys
  verimeta keys remove --all
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := ""
			if len(args) > 0 {
				provider = args[0]
			}
			return runKeysRemove(provider, allFlag)
		},
	}

	cmd.Flags().BoolVar(&allFlag, "all", false, "remove all stored keys")

	return cmd
}

func runKeysSet(provider, keyInput string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !knownProviders[provider] {
		return fmt.Errorf("unknown provider %q (supported: etherscan)", provider)
	}

	apiKey := keyInput
	if apiKey == "" {
		fmt.Printf("Enter API key for %s: ", provider)

		// Read without echo when attached to a terminal
		stdinFd := int(os.Stdin.Fd())
		if term.IsTerminal(stdinFd) {
			byteKey, err := term.ReadPassword(stdinFd)
			fmt.Println()
			if err != nil {
				return fmt.Errorf("failed to read API key: %w", err)
			}
			apiKey = string(byteKey)
		} else {
			reader := bufio.NewReader(os.Stdin)
			key, err := reader.ReadString('\n')
			if err != nil && err != io.EOF {
				return fmt.Errorf("failed to read API key: %w", err)
			}
			apiKey = strings.TrimSpace(key)
		}
	}

	if apiKey == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	if err := saveProviderKey(provider, apiKey); err != nil {
		return fmt.Errorf("failed to save key: %w", err)
	}

	fmt.Printf("✅ Key stored for %s (key: %s)\n", provider, maskAPIKey(apiKey))
	fmt.Printf("   Saved to %s\n", credentialsFilePath())

	return nil
}

func runKeysShow() error {
	creds, err := loadCredentials()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No provider keys stored")
			fmt.Println("\nRun 'verimeta keys set etherscan' to store one")
			return nil
		}
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	if len(creds.Providers) == 0 {
		fmt.Println("No provider keys stored")
		fmt.Println("\nRun 'verimeta keys set etherscan' to store one")
		return nil
	}

	providers := make([]string, 0, len(creds.Providers))
	for p := range creds.Providers {
		providers = append(providers, p)
	}
	sort.Strings(providers)

	fmt.Println("Stored provider keys:")
	for _, p := range providers {
		fmt.Printf("  • %s (key: %s)\n", p, maskAPIKey(creds.Providers[p].APIKey))
	}

	return nil
}

func runKeysRemove(provider string, all bool) error {
	if all {
		path := credentialsFilePath()
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove credentials: %w", err)
		}
		fmt.Println("✅ All provider keys removed")
		return nil
	}

	if provider == "" {
		return fmt.Errorf("provider required (or use --all)")
	}
	provider = strings.ToLower(strings.TrimSpace(provider))

	creds, err := loadCredentials()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("No key stored for %s\n", provider)
			return nil
		}
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	if _, exists := creds.Providers[provider]; !exists {
		fmt.Printf("No key stored for %s\n", provider)
		return nil
	}

	delete(creds.Providers, provider)

	if err := writeCredentials(creds); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Printf("✅ Key removed for %s\n", provider)
	return nil
}

// Credential file helpers

func credentialsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".verimeta"
	}
	return filepath.Join(home, ".verimeta")
}

func credentialsFilePath() string {
	return filepath.Join(credentialsDir(), "credentials")
}

func loadCredentials() (*Credentials, error) {
	path := credentialsFilePath()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, err
	}

	if creds.Providers == nil {
		creds.Providers = make(map[string]ProviderCredential)
	}

	return &creds, nil
}

func writeCredentials(creds *Credentials) error {
	dir := credentialsDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(creds)
	if err != nil {
		return err
	}

	path := credentialsFilePath()
	return os.WriteFile(path, data, 0600) // Secure permissions
}

func saveProviderKey(provider, apiKey string) error {
	creds, err := loadCredentials()
	if err != nil {
		if os.IsNotExist(err) {
			creds = &Credentials{Providers: make(map[string]ProviderCredential)}
		} else {
			return err
		}
	}

	creds.Providers[provider] = ProviderCredential{APIKey: apiKey}
	return writeCredentials(creds)
}

func getProviderKey(provider string) string {
	creds, err := loadCredentials()
	if err != nil {
		return ""
	}
	if cred, ok := creds.Providers[provider]; ok {
		return cred.APIKey
	}
	return ""
}

// getEtherscanKey returns the Etherscan API key from env or the credentials file
func getEtherscanKey() string {
	if env := os.Getenv("ETHERSCAN_API_KEY"); env != "" {
		return env
	}
	return getProviderKey("etherscan")
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}
