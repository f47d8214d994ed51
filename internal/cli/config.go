package cli

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

// projectConfigFiles is the search order for project config files
var projectConfigFiles = []string{"verimeta.toml", ".verimeta.toml"}

// ProjectConfig is the project-level TOML configuration
type ProjectConfig struct {
	Server    string `toml:"server"`
	Chain     string `toml:"chain,omitempty"`
	OutputDir string `toml:"output_dir,omitempty"`
}

func createConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(createConfigInitCmd())
	cmd.AddCommand(createConfigShowCmd())

	return cmd
}

func createConfigInitCmd() *cobra.Command {
	var serverURL string
	var chainName string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create config file",
		Long: `Create a verimeta.toml configuration file in the current directory.

This file stores project settings like the server URL and the default chain.

EXAMPLES:
  # Create config with default server
  verimeta config init

  # Create config for a specific server and chain
  verimeta config init --server https://verimeta.example.com --chain gnosis

  # Overwrite existing config
  verimeta config init --force
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(serverURL, chainName, force)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "server URL")
	cmd.Flags().StringVar(&chainName, "chain", "mainnet", "default chain id or network name")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")

	return cmd
}

func createConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current config",
		Long: `Display the current configuration.

Shows configuration sources in order of precedence and the effective values.

EXAMPLES:
  verimeta config show
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow()
		},
	}

	return cmd
}

func runConfigInit(serverURL, chainName string, force bool) error {
	configPath := "verimeta.toml"

	// Check if any config file already exists
	for _, cfgFile := range projectConfigFiles {
		if _, err := os.Stat(cfgFile); err == nil && !force {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", cfgFile)
		}
	}

	// Reject bogus chain selectors early
	if _, err := resolveChainID(chainName); err != nil {
		return err
	}

	content := fmt.Sprintf(`# Verimeta project configuration

server = "%s"
chain = "%s"

# Directory fetched artifacts are written to (default: current directory)
# output_dir = "./artifacts"
`, serverURL, chainName)

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("  Server: %s\n", serverURL)
	fmt.Printf("  Chain:  %s\n", chainName)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  1. Edit %s to customize settings\n", configPath)
	fmt.Println("  2. Run 'verimeta fetch <address>' to fetch contract metadata")

	return nil
}

func runConfigShow() error {
	fmt.Println("Configuration sources (in order of precedence):")
	fmt.Println()

	// 1. Command line flags
	fmt.Println("1. Command line flags")
	fmt.Println("   --server, --chain, --config")
	fmt.Println()

	// 2. Environment variables
	fmt.Println("2. Environment variables")
	serverEnv := os.Getenv("VERIMETA_SERVER")
	chainEnv := os.Getenv("VERIMETA_CHAIN")
	if serverEnv != "" {
		fmt.Printf("   VERIMETA_SERVER=%s\n", serverEnv)
	} else {
		fmt.Println("   VERIMETA_SERVER=(not set)")
	}
	if chainEnv != "" {
		fmt.Printf("   VERIMETA_CHAIN=%s\n", chainEnv)
	} else {
		fmt.Println("   VERIMETA_CHAIN=(not set)")
	}
	fmt.Println()

	// 3. Local project config
	fmt.Println("3. Local project config (verimeta.toml)")
	projectConfig, configPath, err := loadProjectConfig()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("   (not found)")
		} else {
			fmt.Printf("   Error: %v\n", err)
		}
	} else {
		fmt.Printf("   Loaded from: %s\n", configPath)
		if projectConfig.Server != "" {
			fmt.Printf("   server: %s\n", projectConfig.Server)
		}
		if projectConfig.Chain != "" {
			fmt.Printf("   chain: %s\n", projectConfig.Chain)
		}
		if projectConfig.OutputDir != "" {
			fmt.Printf("   output_dir: %s\n", projectConfig.OutputDir)
		}
	}
	fmt.Println()

	// 4. Stored provider keys
	fmt.Println("4. Provider keys (~/.verimeta/credentials)")
	creds, err := loadCredentials()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("   (not found)")
		} else {
			fmt.Printf("   Error: %v\n", err)
		}
	} else {
		if len(creds.Providers) == 0 {
			fmt.Println("   (no keys stored)")
		} else {
			for provider, cred := range creds.Providers {
				fmt.Printf("   %s: %s\n", provider, maskAPIKey(cred.APIKey))
			}
		}
	}
	fmt.Println()

	// Effective config
	fmt.Println("Effective configuration:")
	fmt.Printf("   Server: %s\n", getServer())
	fmt.Printf("   Chain:  %s\n", getChain())

	return nil
}

// loadProjectConfig loads the project config from the first matching config file.
// Returns the config, the path it was loaded from, and an error.
func loadProjectConfig() (*ProjectConfig, string, error) {
	// If --config flag was provided, use that directly
	if cfgFile != "" {
		config, err := loadProjectConfigFromPath(cfgFile)
		if err != nil {
			return nil, cfgFile, err
		}
		return config, cfgFile, nil
	}

	// Search for config files in order
	for _, name := range projectConfigFiles {
		if _, err := os.Stat(name); err == nil {
			config, err := loadProjectConfigFromPath(name)
			if err != nil {
				return nil, name, err
			}
			return config, name, nil
		}
	}
	return nil, "", os.ErrNotExist
}

// loadProjectConfigFromPath loads a project config from a specific path
func loadProjectConfigFromPath(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config ProjectConfig
	if _, err := toml.Decode(string(data), &config); err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}

	return &config, nil
}

// loadProjectConfigSilent loads the project config without returning errors for missing files.
// Returns nil if the file doesn't exist, but reports parse failures.
func loadProjectConfigSilent() *ProjectConfig {
	config, _, err := loadProjectConfig()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		fmt.Fprintf(os.Stderr, "Warning: failed to load project config: %v\n", err)
		return nil
	}
	return config
}
