package cli

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verimeta/verimeta/internal/metadata/domain"
	"github.com/verimeta/verimeta/pkg/client"
)

func TestResolveChainID(t *testing.T) {
	tests := []struct {
		name     string
		selector string
		want     uint64
		wantErr  bool
	}{
		{
			name:     "decimal id",
			selector: "1",
			want:     1,
		},
		{
			name:     "decimal id without builtin network",
			selector: "424242",
			want:     424242,
		},
		{
			name:     "network name",
			selector: "mainnet",
			want:     1,
		},
		{
			name:     "network name ignores case",
			selector: "Gnosis",
			want:     100,
		},
		{
			name:     "surrounding whitespace",
			selector: " sepolia ",
			want:     11155111,
		},
		{
			name:     "zero id",
			selector: "0",
			wantErr:  true,
		},
		{
			name:     "empty",
			selector: "",
			wantErr:  true,
		},
		{
			name:     "unknown name",
			selector: "notachain",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveChainID(tt.selector)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetServer(t *testing.T) {
	// Save original values
	origServer := server
	origEnv := os.Getenv("VERIMETA_SERVER")
	defer func() {
		server = origServer
		os.Setenv("VERIMETA_SERVER", origEnv)
	}()

	t.Run("flag takes precedence", func(t *testing.T) {
		server = "http://flag-server:8080"
		os.Setenv("VERIMETA_SERVER", "http://env-server:8080")
		assert.Equal(t, "http://flag-server:8080", getServer())
	})

	t.Run("env var when no flag", func(t *testing.T) {
		server = ""
		os.Setenv("VERIMETA_SERVER", "http://env-server:8080")
		assert.Equal(t, "http://env-server:8080", getServer())
	})

	t.Run("default when nothing set", func(t *testing.T) {
		server = ""
		os.Unsetenv("VERIMETA_SERVER")
		assert.Equal(t, "http://localhost:8080", getServer())
	})
}

func TestGetChain(t *testing.T) {
	origChain := chain
	origEnv := os.Getenv("VERIMETA_CHAIN")
	defer func() {
		chain = origChain
		os.Setenv("VERIMETA_CHAIN", origEnv)
	}()

	t.Run("flag takes precedence", func(t *testing.T) {
		chain = "gnosis"
		os.Setenv("VERIMETA_CHAIN", "base")
		assert.Equal(t, "gnosis", getChain())
	})

	t.Run("env var when no flag", func(t *testing.T) {
		chain = ""
		os.Setenv("VERIMETA_CHAIN", "base")
		assert.Equal(t, "base", getChain())
	})

	t.Run("default when nothing set", func(t *testing.T) {
		chain = ""
		os.Unsetenv("VERIMETA_CHAIN")
		assert.Equal(t, "mainnet", getChain())
	})
}

func TestChainLabel(t *testing.T) {
	assert.Equal(t, "mainnet (chain 1)", chainLabel(1))
	assert.Equal(t, "chain 424242", chainLabel(424242))
}

func TestMatchLabel(t *testing.T) {
	assert.Equal(t, "full match", matchLabel(false))
	assert.Equal(t, "partial match", matchLabel(true))
}

func TestLoadProjectConfig(t *testing.T) {
	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)
	os.Chdir(tmpDir)

	t.Run("no config file", func(t *testing.T) {
		_, _, err := loadProjectConfig()
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("valid config file", func(t *testing.T) {
		content := `server = "http://test:8080"
chain = "gnosis"
output_dir = "./artifacts"
`
		require.NoError(t, os.WriteFile("verimeta.toml", []byte(content), 0644))

		loaded, path, err := loadProjectConfig()
		require.NoError(t, err)
		assert.Equal(t, "verimeta.toml", path)
		assert.Equal(t, "http://test:8080", loaded.Server)
		assert.Equal(t, "gnosis", loaded.Chain)
		assert.Equal(t, "./artifacts", loaded.OutputDir)
	})

	t.Run("parse failure", func(t *testing.T) {
		require.NoError(t, os.WriteFile("verimeta.toml", []byte("server = [broken"), 0644))

		_, _, err := loadProjectConfig()
		assert.Error(t, err)
		assert.False(t, os.IsNotExist(err))
	})
}

func TestOutputDir(t *testing.T) {
	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)
	os.Chdir(tmpDir)

	t.Run("flag wins", func(t *testing.T) {
		assert.Equal(t, "./out", outputDir("./out"))
	})

	t.Run("config fallback", func(t *testing.T) {
		require.NoError(t, os.WriteFile("verimeta.toml", []byte(`output_dir = "./artifacts"`+"\n"), 0644))
		defer os.Remove("verimeta.toml")
		assert.Equal(t, "./artifacts", outputDir(""))
	})

	t.Run("default", func(t *testing.T) {
		assert.Equal(t, ".", outputDir(""))
	})
}

const erc20ABI = `[
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`

func TestSelectorsTable(t *testing.T) {
	table, err := selectorsTable([]byte(erc20ABI))
	require.NoError(t, err)

	// Known selectors for the canonical ERC-20 signatures
	assert.Contains(t, table, "transfer(address,uint256)")
	assert.Contains(t, table, "0xa9059cbb")
	assert.Contains(t, table, "balanceOf(address)")
	assert.Contains(t, table, "0x70a08231")
	assert.Contains(t, table, "Transfer(address,address,uint256)")
	assert.Contains(t, table, "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
}

func TestSelectorsTable_Empty(t *testing.T) {
	table, err := selectorsTable([]byte(`[]`))
	require.NoError(t, err)
	assert.Contains(t, table, "no functions or events")
}

func TestSelectorsTable_Invalid(t *testing.T) {
	_, err := selectorsTable([]byte(`{"not":"an abi"}`))
	assert.Error(t, err)
}

func TestDescribeFetchError(t *testing.T) {
	const addr = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

	t.Run("domain not found", func(t *testing.T) {
		err := describeFetchError(domain.ErrNotFound, 1, addr)
		assert.Contains(t, err.Error(), "not verified on any known source")
		assert.Contains(t, err.Error(), "mainnet")
	})

	t.Run("api not found", func(t *testing.T) {
		apiErr := &client.APIError{Code: "NOT_FOUND", Message: "Contract is not verified on any known source"}
		err := describeFetchError(apiErr, 100, addr)
		assert.Contains(t, err.Error(), "not verified on any known source")
		assert.Contains(t, err.Error(), "gnosis")
	})

	t.Run("other errors pass through", func(t *testing.T) {
		err := describeFetchError(errors.New("connection refused"), 1, addr)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestTableHasHeader(t *testing.T) {
	table, err := selectorsTable([]byte(erc20ABI))
	require.NoError(t, err)

	lines := strings.Split(table, "\n")
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "FUNCTION")
	assert.Contains(t, lines[0], "SELECTOR")
}
