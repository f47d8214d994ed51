package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestKeysSetWithFlag tests storing a provider key non-interactively
func TestKeysSetWithFlag(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	defer os.Setenv("HOME", origHome)
	os.Setenv("HOME", tmpDir)

	t.Run("stores key for known provider", func(t *testing.T) {
		err := runKeysSet("etherscan", "my-secret-key")
		require.NoError(t, err)

		assert.Equal(t, "my-secret-key", getProviderKey("etherscan"))
	})

	t.Run("provider name is normalized", func(t *testing.T) {
		err := runKeysSet("  Etherscan  ", "normalized-key")
		require.NoError(t, err)

		assert.Equal(t, "normalized-key", getProviderKey("etherscan"))
	})

	t.Run("unknown provider rejected", func(t *testing.T) {
		err := runKeysSet("notaprovider", "some-key")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown provider")
	})

	t.Run("empty key rejected", func(t *testing.T) {
		origStdin := os.Stdin
		defer func() { os.Stdin = origStdin }()

		// Closed pipe simulates empty input on the prompt path
		r, w, _ := os.Pipe()
		w.Close()
		os.Stdin = r

		err := runKeysSet("etherscan", "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "API key cannot be empty")
	})
}

// TestKeysSetFromStdin tests reading the key from piped stdin (non-terminal)
func TestKeysSetFromStdin(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	defer os.Setenv("HOME", origHome)
	os.Setenv("HOME", tmpDir)

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple key", "piped-key\n", "piped-key"},
		{"key with spaces", "  spaced-key  \n", "spaced-key"},
		{"key without newline", "no-newline-key", "no-newline-key"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			origStdin := os.Stdin
			defer func() { os.Stdin = origStdin }()

			r, w, err := os.Pipe()
			require.NoError(t, err)

			go func() {
				defer w.Close()
				io.WriteString(w, tc.input)
			}()

			os.Stdin = r

			err = runKeysSet("etherscan", "")
			require.NoError(t, err)

			assert.Equal(t, tc.expected, getProviderKey("etherscan"))
		})
	}
}

// TestKeysRemove tests removing stored keys
func TestKeysRemove(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	defer os.Setenv("HOME", origHome)
	os.Setenv("HOME", tmpDir)

	t.Run("remove specific provider", func(t *testing.T) {
		err := saveProviderKey("etherscan", "key-to-remove")
		require.NoError(t, err)

		err = runKeysRemove("etherscan", false)
		require.NoError(t, err)

		assert.Equal(t, "", getProviderKey("etherscan"))
	})

	t.Run("remove non-existent provider", func(t *testing.T) {
		// Should not error, just print a message
		err := runKeysRemove("etherscan", false)
		require.NoError(t, err)
	})

	t.Run("remove without provider or --all", func(t *testing.T) {
		err := runKeysRemove("", false)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "provider required")
	})

	t.Run("remove all deletes the file", func(t *testing.T) {
		err := saveProviderKey("etherscan", "key1")
		require.NoError(t, err)

		err = runKeysRemove("", true)
		require.NoError(t, err)

		_, err = os.Stat(credentialsFilePath())
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("remove all with no file", func(t *testing.T) {
		err := runKeysRemove("", true)
		require.NoError(t, err)
	})
}

// TestKeysShow tests the keys show output
func TestKeysShow(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	defer os.Setenv("HOME", origHome)
	os.Setenv("HOME", tmpDir)

	t.Run("no keys stored", func(t *testing.T) {
		oldStdout := os.Stdout
		r, w, _ := os.Pipe()
		os.Stdout = w

		err := runKeysShow()
		require.NoError(t, err)

		w.Close()
		os.Stdout = oldStdout

		var buf bytes.Buffer
		io.Copy(&buf, r)
		output := buf.String()

		assert.Contains(t, output, "No provider keys stored")
	})

	t.Run("with stored keys", func(t *testing.T) {
		err := saveProviderKey("etherscan", "test-api-key-12345678901234")
		require.NoError(t, err)

		oldStdout := os.Stdout
		r, w, _ := os.Pipe()
		os.Stdout = w

		err = runKeysShow()
		require.NoError(t, err)

		w.Close()
		os.Stdout = oldStdout

		var buf bytes.Buffer
		io.Copy(&buf, r)
		output := buf.String()

		assert.Contains(t, output, "etherscan")
		// Key must be masked, never printed in full
		assert.Contains(t, output, "test-api...")
		assert.NotContains(t, output, "test-api-key-12345678901234")
	})
}

// TestCredentialFilePermissions verifies keys are saved with secure permissions
func TestCredentialFilePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	defer os.Setenv("HOME", origHome)
	os.Setenv("HOME", tmpDir)

	err := saveProviderKey("etherscan", "test-key")
	require.NoError(t, err)

	credPath := filepath.Join(tmpDir, ".verimeta", "credentials")
	info, err := os.Stat(credPath)
	require.NoError(t, err)

	mode := info.Mode().Perm()
	assert.Equal(t, os.FileMode(0600), mode, "credentials file should have 0600 permissions")
}

// TestCredentialDirPermissions verifies the credentials directory is owner-only
func TestCredentialDirPermissions(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	defer os.Setenv("HOME", origHome)
	os.Setenv("HOME", tmpDir)

	err := saveProviderKey("etherscan", "test-key")
	require.NoError(t, err)

	credDir := filepath.Join(tmpDir, ".verimeta")
	info, err := os.Stat(credDir)
	require.NoError(t, err)

	mode := info.Mode().Perm()
	assert.Equal(t, os.FileMode(0700), mode, "credentials directory should have 0700 permissions")
}

// TestProviderKeyOverwrite tests that saving a new key replaces the old one
func TestProviderKeyOverwrite(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	defer os.Setenv("HOME", origHome)
	os.Setenv("HOME", tmpDir)

	err := saveProviderKey("etherscan", "old-key")
	require.NoError(t, err)
	assert.Equal(t, "old-key", getProviderKey("etherscan"))

	err = saveProviderKey("etherscan", "new-key")
	require.NoError(t, err)
	assert.Equal(t, "new-key", getProviderKey("etherscan"))
}

// TestGetEtherscanKey tests env variable precedence over the credentials file
func TestGetEtherscanKey(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	defer os.Setenv("HOME", origHome)
	os.Setenv("HOME", tmpDir)

	origEnv := os.Getenv("ETHERSCAN_API_KEY")
	defer os.Setenv("ETHERSCAN_API_KEY", origEnv)

	t.Run("nothing configured", func(t *testing.T) {
		os.Unsetenv("ETHERSCAN_API_KEY")
		assert.Equal(t, "", getEtherscanKey())
	})

	t.Run("credentials file only", func(t *testing.T) {
		os.Unsetenv("ETHERSCAN_API_KEY")
		err := saveProviderKey("etherscan", "file-key")
		require.NoError(t, err)

		assert.Equal(t, "file-key", getEtherscanKey())
	})

	t.Run("env overrides credentials file", func(t *testing.T) {
		os.Setenv("ETHERSCAN_API_KEY", "env-key")
		assert.Equal(t, "env-key", getEtherscanKey())
	})
}

// TestLoadCredentialsMissing verifies the missing-file error is detectable
func TestLoadCredentialsMissing(t *testing.T) {
	tmpDir := t.TempDir()
	origHome := os.Getenv("HOME")
	defer os.Setenv("HOME", origHome)
	os.Setenv("HOME", tmpDir)

	_, err := loadCredentials()
	assert.True(t, os.IsNotExist(err))
}

// TestMaskAPIKey tests key masking for display
func TestMaskAPIKey(t *testing.T) {
	testCases := []struct {
		key      string
		expected string
	}{
		{"", "****"},
		{"short", "****"},
		{"12345678", "****"},
		{"123456789", "12345678...6789"},
		{"test-api-key-12345678901234", "test-api...1234"},
	}

	for _, tc := range testCases {
		t.Run(tc.key, func(t *testing.T) {
			assert.Equal(t, tc.expected, maskAPIKey(tc.key))
		})
	}
}

// TestKeysCommandStructure verifies the keys command and subcommands
func TestKeysCommandStructure(t *testing.T) {
	cmd := createKeysCmd()

	assert.Equal(t, "keys", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	subCmds := cmd.Commands()
	subCmdNames := make([]string, len(subCmds))
	for i, c := range subCmds {
		subCmdNames[i] = c.Name()
	}

	assert.Contains(t, subCmdNames, "set")
	assert.Contains(t, subCmdNames, "show")
	assert.Contains(t, subCmdNames, "remove")
}

// TestKeysSetCmdFlags verifies the set command flags
func TestKeysSetCmdFlags(t *testing.T) {
	cmd := createKeysSetCmd()

	keyFlag := cmd.Flags().Lookup("key")
	assert.NotNil(t, keyFlag)
	assert.Equal(t, "", keyFlag.DefValue)
}

// TestKeysRemoveCmdFlags verifies the remove command flags
func TestKeysRemoveCmdFlags(t *testing.T) {
	cmd := createKeysRemoveCmd()

	allFlag := cmd.Flags().Lookup("all")
	assert.NotNil(t, allFlag)
	assert.Equal(t, "false", allFlag.DefValue)
}
