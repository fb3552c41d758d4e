// Package tests holds helpers for integration tests that need a local chain.
package tests

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
)

// AnvilFundedKey is the first pre-funded account of a default anvil chain.
const AnvilFundedKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type AnvilConfig struct {
	PortNumber string `json:"portNumber"`
	// BlockTime in seconds. Empty mines a block per transaction.
	BlockTime string `json:"blockTime"`
	ChainId   string `json:"chainId"`
}

func (c *AnvilConfig) RpcUrl() string {
	return fmt.Sprintf("http://localhost:%s", c.PortNumber)
}

// SkipWithoutAnvil skips integration tests in -short mode or when anvil is not installed.
func SkipWithoutAnvil(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping anvil integration test in short mode")
	}
	if _, err := exec.LookPath("anvil"); err != nil {
		t.Skip("anvil not found in PATH")
	}
}

// StartAnvil launches a fresh local chain and blocks until it answers JSON-RPC.
func StartAnvil(ctx context.Context, cfg *AnvilConfig) (*exec.Cmd, error) {
	args := []string{
		"--port", cfg.PortNumber,
		"--chain-id", cfg.ChainId,
	}
	if cfg.BlockTime != "" {
		args = append(args, "--block-time", cfg.BlockTime)
	}
	cmd := exec.CommandContext(ctx, "anvil", args...)
	cmd.Stderr = os.Stderr
	if os.Getenv("JOIN_ANVIL_OUTPUT") == "true" {
		cmd.Stdout = os.Stdout
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start anvil: %w", err)
	}

	body := `{"jsonrpc":"2.0","id":1,"method":"eth_chainId","params":[]}`
	for i := 1; i < 10; i++ {
		res, err := http.Post(cfg.RpcUrl(), "application/json", strings.NewReader(body))
		if err == nil {
			_ = res.Body.Close()
			if res.StatusCode == http.StatusOK {
				return cmd, nil
			}
		}
		time.Sleep(time.Duration(i) * 200 * time.Millisecond)
	}
	_ = KillAnvil(cmd)
	return nil, fmt.Errorf("anvil did not become ready on %s", cfg.RpcUrl())
}

// WaitForAnvil polls the chain client until it reports a block or ctx ends.
func WaitForAnvil(ctx context.Context, t *testing.T, client *ethereum.EthereumClient) error {
	for {
		block, err := client.GetLatestBlock(ctx)
		if err == nil {
			t.Logf("Anvil is up and running, latest block: %v", block)
			return nil
		}
		t.Logf("Failed to get latest block, will retry: %v", err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to reach anvil: %w", ctx.Err())
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func KillAnvil(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return fmt.Errorf("anvil command is not running")
	}
	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("failed to kill anvil process: %w", err)
	}
	_ = cmd.Wait()
	return nil
}
