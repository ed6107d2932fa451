// Command approvalctl talks to a running approvals service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/helloviza/approvals/internal/domain/admincomment"
	"github.com/helloviza/approvals/pkg/client"
)

var version = "dev"

type globalOptions struct {
	url     string
	token   string
	timeout time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "approvalctl",
		Short: "Work with the travel approvals service",
		Long: `approvalctl exports requests from a running approvals service and
decodes admin comments offline.

The service URL and access token default to APPROVALS_URL and APPROVALS_TOKEN.

Examples:
  approvalctl export --format xlsx --out approvals.xlsx --days 30
  approvalctl export --service flight --status approved --reveal
  approvalctl decode-comment "[ADMIN] [MODE:DONE] [BOOKING_AMOUNT:9500] issued"
`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.url, "url", envOr("APPROVALS_URL", "http://localhost:8080"), "approvals service base URL")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("APPROVALS_TOKEN"), "access token")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")

	cmd.AddCommand(exportCmd(opts))
	cmd.AddCommand(decodeCommentCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

func exportCmd(opts *globalOptions) *cobra.Command {
	var (
		format string
		out    string
		filter client.Filter
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download visible requests as CSV or XLSX",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.token == "" {
				return fmt.Errorf("an access token is required (--token or APPROVALS_TOKEN)")
			}
			c, err := client.New(opts.url, client.NewSession(opts.token),
				client.WithCircuitBreaker(3, 10*time.Second))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			res, err := c.Export(ctx, format, filter)
			if err != nil {
				return err
			}

			if out == "" {
				out = res.Filename
			}
			if out == "-" {
				_, err = cmd.OutOrStdout().Write(res.Data)
				return err
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(out, res.Data, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d rows to %s\n", res.Rows, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "csv", "export format: csv or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, - for stdout (default: server-suggested name)")
	cmd.Flags().IntVar(&filter.Days, "days", 0, "only requests updated in the last N days")
	cmd.Flags().StringVar(&filter.Service, "service", "", "flight, hotel, visa, ...")
	cmd.Flags().StringVar(&filter.Status, "status", "", "pending, approved, declined, on_hold")
	cmd.Flags().StringVar(&filter.AdminStatus, "admin-status", "", "admin state filter")
	cmd.Flags().StringVar(&filter.CustomerID, "customer", "", "workspace id")
	cmd.Flags().StringVarP(&filter.Query, "query", "q", "", "free-text search")
	cmd.Flags().BoolVar(&filter.Reveal, "reveal", false, "include actual prices (admin only)")

	return cmd
}

func decodeCommentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode-comment <text>",
		Short: "Print the fields of an admin comment as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeDecoded(cmd.OutOrStdout(), args[0])
		},
	}
}

type decodedComment struct {
	admincomment.Parsed
	AttachmentLink string `json:"attachmentLink,omitempty"`
}

func writeDecoded(w io.Writer, text string) error {
	p := admincomment.Parse(text)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(decodedComment{
		Parsed:         p,
		AttachmentLink: admincomment.ProtectedLink(p.AttachmentURL),
	})
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
