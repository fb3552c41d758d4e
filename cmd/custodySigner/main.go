package main

import (
	"fmt"
	"log"
	"os"

	"github.com/Layr-Labs/eigenx-custody-signer/pkg/config"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "custody-signer",
		Usage: "EIP-712 signing and transaction monitoring through a custody vault",
		Description: `Signs EIP-712 structured data with a key held by an institutional custody service
and tracks custody transactions through to on-chain confirmation.

Key material never leaves the custody vault. Every signing job is subject to the
vault's approval policy and is recorded in the local audit journal.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "environment",
				Aliases: []string{"env"},
				Usage:   fmt.Sprintf("Custody environment (%s|%s), ignored when --base-url is set", config.CustodyEnvironment_Production, config.CustodyEnvironment_Sandbox),
				Value:   string(config.CustodyEnvironment_Production),
			},
			&cli.StringFlag{
				Name:    "base-url",
				Usage:   "Custody API base URL",
				EnvVars: []string{config.EnvCustodyBaseUrl},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Custody API key",
				EnvVars: []string{config.EnvCustodyApiKey},
			},
			&cli.StringFlag{
				Name:    "secret-key-path",
				Usage:   "Path to the PEM encoded RSA key used to sign custody API requests",
				EnvVars: []string{config.EnvCustodySecretKeyPath},
			},
			&cli.Float64Flag{
				Name:  "rate-limit",
				Usage: "Maximum custody API requests per second (0 disables)",
				Value: config.DefaultRateLimit,
			},
			&cli.StringFlag{
				Name:    "persistence-type",
				Usage:   "Audit journal backend (memory|badger|redis)",
				Value:   string(config.PersistenceType_Badger),
				EnvVars: []string{config.EnvPersistenceType},
			},
			&cli.StringFlag{
				Name:  "data-path",
				Usage: "Badger journal directory",
				Value: "./custody-journal",
			},
			&cli.StringFlag{
				Name:  "redis-address",
				Usage: "Redis journal address (host:port)",
				Value: "localhost:6379",
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis journal password",
				EnvVars: []string{"CUSTODY_REDIS_PASSWORD"},
			},
			&cli.IntFlag{
				Name:  "redis-db",
				Usage: "Redis journal database number",
			},
			&cli.StringFlag{
				Name:  "redis-key-prefix",
				Usage: "Prefix for every Redis journal key",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address, e.g. :9090",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"verbose"},
				Usage:   "Enable debug logging",
				EnvVars: []string{config.EnvDebug},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "address",
				Usage:  "Resolve the chain address of a vault account",
				Flags:  vaultFlags(),
				Action: addressCommand,
			},
			{
				Name:  "sign-typed-data",
				Usage: "Sign an EIP-712 request read from a JSON file",
				Flags: append(vaultFlags(),
					&cli.StringFlag{
						Name:     "request",
						Aliases:  []string{"r"},
						Usage:    "Path to a JSON file with domain, types, message and optional primaryType ('-' for stdin)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "note",
						Usage: "Prefix for the note attached to the custody signing job",
					},
					&cli.BoolFlag{
						Name:  "verify",
						Usage: "Verify the returned signature against the vault address",
					},
				),
				Action: signTypedDataCommand,
			},
			{
				Name:  "monitor",
				Usage: "Follow a custody transaction to a terminal status and chain confirmation",
				Flags: append(pollFlags(),
					&cli.StringFlag{
						Name:     "transaction-id",
						Aliases:  []string{"tx"},
						Usage:    "Custody transaction id",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "rpc-url",
						Aliases: []string{"rpc"},
						Usage:   "Ethereum RPC endpoint URL; without it only the custody phase runs",
						EnvVars: []string{config.EnvRpcUrl},
					},
					&cli.Uint64Flag{
						Name:  "confirmations",
						Usage: "Required block confirmations",
						Value: config.DefaultRequiredConfirmations,
					},
					&cli.IntFlag{
						Name:  "max-chain-errors",
						Usage: "Consecutive chain query failures tolerated",
						Value: config.DefaultMaxChainErrors,
					},
				),
				Action: monitorCommand,
			},
			{
				Name:  "journal",
				Usage: "Inspect the audit journal",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List recorded signing jobs, oldest first",
						Action: journalListCommand,
					},
					{
						Name:  "show",
						Usage: "Show a signing job or monitor result",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "job-id", Usage: "Signing job id"},
							&cli.StringFlag{Name: "transaction-id", Usage: "Monitored transaction id"},
						},
						Action: journalShowCommand,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func pollFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:  "poll-interval",
			Usage: "Delay between custody status polls",
			Value: config.DefaultPollInterval,
		},
		&cli.IntFlag{
			Name:  "max-poll-attempts",
			Usage: "Maximum custody status polls before giving up",
			Value: config.DefaultMaxPollAttempts,
		},
	}
}

func vaultFlags() []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{
			Name:     "vault-account-id",
			Aliases:  []string{"vault"},
			Usage:    "Custody vault account id",
			EnvVars:  []string{config.EnvVaultAccountId},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "asset",
			Usage:   "Custody asset symbol",
			Value:   "ETH",
			EnvVars: []string{config.EnvAssetSymbol},
		},
	}, pollFlags()...)
}
