package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/Layr-Labs/eigenx-custody-signer/pkg/annotator"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/config"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/monitor"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/signer"
	"github.com/Layr-Labs/eigenx-custody-signer/pkg/types"
	"github.com/urfave/cli/v2"
)

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSigner(c *cli.Context, rt *runtime) (*signer.CustodySigner, error) {
	client, err := newCustodyClient(c, rt.logger)
	if err != nil {
		return nil, err
	}
	signerCfg := &config.SignerConfig{
		VaultAccountId: c.String("vault-account-id"),
		AssetSymbol:    c.String("asset"),
		Poll:           pollConfigFromFlags(c),
		Note:           c.String("note"),
	}
	return signer.NewCustodySigner(&signer.CustodySignerConfig{
		Signer:   signerCfg,
		Client:   client,
		Journal:  rt.journal,
		Observer: rt.metrics,
		Logger:   rt.logger,
	})
}

func addressCommand(c *cli.Context) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	s, err := newSigner(c, rt)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(c)
	defer cancel()

	id, err := s.GetIdentity(ctx)
	if err != nil {
		return err
	}
	return printJSON(id)
}

func readSigningRequest(path string) (*types.SigningRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read signing request: %w", err)
	}
	var req types.SigningRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse signing request: %w", err)
	}
	return &req, nil
}

type signOutput struct {
	Signature string `json:"signature"`
	Label     string `json:"label"`
	Verified  *bool  `json:"verified,omitempty"`
}

func signTypedDataCommand(c *cli.Context) error {
	req, err := readSigningRequest(c.String("request"))
	if err != nil {
		return err
	}

	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	s, err := newSigner(c, rt)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(c)
	defer cancel()

	sig, err := s.SignTypedData(ctx, req)
	if err != nil {
		return err
	}

	out := signOutput{Signature: sig.Hex(), Label: annotator.Label(req)}
	if c.Bool("verify") {
		ok, err := s.VerifyTypedData(ctx, req, sig)
		if err != nil {
			return fmt.Errorf("failed to verify signature: %w", err)
		}
		out.Verified = &ok
	}
	return printJSON(out)
}

func monitorCommand(c *cli.Context) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	client, err := newCustodyClient(c, rt.logger)
	if err != nil {
		return err
	}
	chainQuery, err := newChainQuery(c.String("rpc-url"), rt.logger)
	if err != nil {
		return err
	}

	m, err := monitor.NewMonitor(&monitor.MonitorConfig{
		Monitor: &config.MonitorConfig{
			Poll:                  pollConfigFromFlags(c),
			RequiredConfirmations: c.Uint64("confirmations"),
			MaxChainErrors:        c.Int("max-chain-errors"),
		},
		Client:   client,
		Journal:  rt.journal,
		Observer: rt.metrics,
		Logger:   rt.logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	opts := &monitor.MonitorOptions{
		ChainQuery: chainQuery,
		OnStatusChange: func(record types.TransactionRecord) {
			fmt.Fprintf(os.Stderr, "%s  %-22s %s\n", time.Now().Format(time.TimeOnly), record.Status, record.TxHash)
		},
	}
	result, err := m.Watch(ctx, c.String("transaction-id"), opts)
	if result != nil {
		if perr := printJSON(result); perr != nil {
			return perr
		}
	}
	return err
}

func journalListCommand(c *cli.Context) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	jobs, err := rt.journal.ListSigningJobs()
	if err != nil {
		return fmt.Errorf("failed to list signing jobs: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tSTATUS\tCREATED\tLABEL")
	for _, job := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", job.JobId, job.Status, job.CreatedAt.Format(time.RFC3339), job.Label)
	}
	return w.Flush()
}

func journalShowCommand(c *cli.Context) error {
	jobId, txId := c.String("job-id"), c.String("transaction-id")
	if (jobId == "") == (txId == "") {
		return fmt.Errorf("exactly one of --job-id or --transaction-id is required")
	}

	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if jobId != "" {
		job, err := rt.journal.LoadSigningJob(jobId)
		if err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("signing job %s not found", jobId)
		}
		return printJSON(job)
	}

	result, err := rt.journal.LoadMonitorResult(txId)
	if err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("monitor result for %s not found", txId)
	}
	return printJSON(result)
}
