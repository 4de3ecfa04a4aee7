package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/upnqr/internal/metrics"
	pdfutil "github.com/dharsanguruparan/upnqr/internal/pdf"
	"github.com/dharsanguruparan/upnqr/internal/processing"
	"github.com/dharsanguruparan/upnqr/internal/upn"
)

func newPayloadCmd() *cobra.Command {
	var recordPath string
	var lenient bool
	cmd := &cobra.Command{
		Use:   "payload",
		Short: "Print the UPN payload built from a JSON record",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := readRecord(recordPath)
			if err != nil {
				return err
			}
			policy := upn.DateStrict
			if lenient {
				policy = upn.DateLenient
			}
			payload, err := upn.NewBuilder(policy).Build(*rec)
			if err != nil {
				return explain(err)
			}
			for _, t := range payload.Tolerated {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", t)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), payload.String())
			return err
		},
	}
	cmd.Flags().StringVar(&recordPath, "record", "", "JSON record file, - for stdin")
	cmd.Flags().BoolVar(&lenient, "lenient", false, "Blank an unparseable due date instead of failing")
	_ = cmd.MarkFlagRequired("record")
	return cmd
}

func newRenderCmd() *cobra.Command {
	var recordPath, out string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the QR symbol for a JSON record",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			rec, err := readRecord(recordPath)
			if err != nil {
				return err
			}
			opts, err := processing.CoreOptions(cfg)
			if err != nil {
				return err
			}
			rendered, err := processing.New(opts).Render(*rec)
			if err != nil {
				return explain(err)
			}
			if err := os.WriteFile(out, rendered.PNG, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dpx, checksum %03d)\n", out, opts.Encoder.Dimensions(), rendered.Payload.Checksum())
			return nil
		},
	}
	cmd.Flags().StringVar(&recordPath, "record", "", "JSON record file, - for stdin")
	cmd.Flags().StringVarP(&out, "out", "o", "upn-qr.png", "Output PNG path")
	_ = cmd.MarkFlagRequired("record")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var payloadPath string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Parse a serialised payload and verify its checksum",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(payloadPath)
			if err != nil {
				return err
			}
			payload, err := upn.Parse(string(data))
			if err != nil {
				return err
			}
			return describePayload(cmd.OutOrStdout(), payload)
		},
	}
	cmd.Flags().StringVar(&payloadPath, "payload", "-", "Payload file, - for stdin")
	return cmd
}

var payloadLabels = map[int]string{
	0:  "symbol",
	8:  "amount",
	11: "purpose",
	12: "service",
	13: "due date",
	14: "account",
	15: "reference",
	16: "name",
	17: "address",
	18: "city",
}

func describePayload(w io.Writer, p *upn.Payload) error {
	for i, line := range p.Lines() {
		label, ok := payloadLabels[i]
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(w, "%-10s %s\n", label, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%-10s %s\n%-10s %03d ok\n", "total", money.New(p.AmountCents(), money.EUR).Display(), "checksum", p.Checksum())
	return err
}

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract invoice.pdf",
		Short: "Print the text layer of a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			text, err := pdfutil.ExtractText(data)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), text)
			return err
		},
	}
}

func newProcessCmd() *cobra.Command {
	var out string
	var verbose bool
	cmd := &cobra.Command{
		Use:   "process invoice.pdf",
		Short: "Run the full pipeline on a PDF (needs an OpenAI key)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.OpenAI.APIKey == "" {
				return fmt.Errorf("openai.api_key is not set (UPNQR_OPENAI__API_KEY)")
			}
			logger := zap.NewNop()
			if verbose {
				if logger, err = zap.NewDevelopment(); err != nil {
					return err
				}
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			processor, closeCache, err := processing.FromConfig(cmd.Context(), cfg, 1, metrics.New(), logger)
			if err != nil {
				return err
			}
			defer func() {
				_ = closeCache()
			}()

			outcome, err := processor.ProcessPDF(cmd.Context(), data, filepath.Base(args[0]))
			if outcome != nil && outcome.Record != nil {
				enc := json.NewEncoder(cmd.ErrOrStderr())
				enc.SetIndent("", "  ")
				_ = enc.Encode(outcome.Record)
			}
			if err != nil {
				return explain(err)
			}
			if err := os.WriteFile(out, outcome.PNG, 0o644); err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), outcome.Payload.String())
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "upn-qr.png", "Output PNG path")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline stages")
	return cmd
}

func readRecord(path string) (*upn.Record, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	var rec upn.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" || path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// explain lists every offending field of a data error on its own line.
func explain(err error) error {
	fields := upn.Errors(err)
	if len(fields) < 2 {
		return err
	}
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, "  "+f.Error())
	}
	return fmt.Errorf("invalid record:\n%s", strings.Join(msgs, "\n"))
}
