package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/pricing-cli/internal/decode"
	"github.com/sells-group/pricing-cli/internal/ingest"
	"github.com/sells-group/pricing-cli/internal/model"
	"github.com/sells-group/pricing-cli/internal/resilience"
	"github.com/sells-group/pricing-cli/internal/source"
)

var (
	uploadTenant   string
	uploadFile     string
	uploadMode     string
	uploadFailFast bool
	uploadQuiet    bool
)

// cliConnection is the connection id progress is reported under when
// uploading from the command line.
const cliConnection = "cli"

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Ingest a pricing sheet for a tour operator",
	Long:  "Reads a CSV or XLSX pricing sheet from a local path, http(s) URL or ftp URL and ingests it for the given tenant. Prints the upload summary as JSON.",
	Example: `  pricing-cli upload --tenant 5f0c2f5e-7c55-4a39-9a57-6a4b1c8e0a01 --file prices.csv
  pricing-cli upload --tenant 5f0c2f5e-7c55-4a39-9a57-6a4b1c8e0a01 --file https://example.com/s25.xlsx --mode overwrite`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		tenantID, err := uuid.Parse(uploadTenant)
		if err != nil {
			return eris.Wrap(err, "invalid --tenant")
		}

		env, err := initApp(ctx, "upload")
		if err != nil {
			return err
		}
		defer env.Close()

		in, err := newOpener().Open(ctx, uploadFile)
		if err != nil {
			return err
		}
		defer in.Close() //nolint:errcheck

		mode := model.ParseMode(cfg.Ingest.DefaultMode)
		if uploadMode != "" {
			mode = model.ParseMode(uploadMode)
		}

		req := ingest.Request{
			TenantID:    tenantID,
			Input:       in,
			Format:      decode.FormatFromName(in.Name),
			SkipBadRows: cfg.Ingest.SkipBadRows && !uploadFailFast,
			Mode:        mode,
		}
		if !uploadQuiet {
			req.ConnectionID = cliConnection
		}

		summary, err := env.newPipeline(logNotifier{}).Ingest(ctx, req)
		if err != nil && !errors.Is(err, ingest.ErrDuplicateAbort) {
			return err
		}
		if perr := printJSON(cmd.OutOrStdout(), summary); perr != nil {
			return perr
		}
		return err
	},
}

func newOpener() *source.Opener {
	retry := resilience.RetryConfig{Attempts: cfg.Source.Retries}
	return source.NewOpener(
		source.NewHTTPFetcher(source.HTTPOptions{
			UserAgent: cfg.Source.UserAgent,
			Timeout:   time.Duration(cfg.Source.TimeoutSecs) * time.Second,
			Rate:      rate.Limit(cfg.Source.RateLimit),
			Retry:     retry,
		}),
		source.NewFTPFetcher(source.FTPOptions{
			Timeout: time.Duration(cfg.Source.TimeoutSecs) * time.Second,
		}),
	)
}

// logNotifier writes progress events to the log.
type logNotifier struct{}

func (logNotifier) Notify(_ context.Context, _ string, ev model.ProgressEvent) error {
	fields := []zap.Field{zap.String("stage", string(ev.Stage))}
	if ev.Percent != nil {
		fields = append(fields, zap.Int("percent", *ev.Percent))
	}
	zap.L().Info(ev.Message, fields...)
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "write output")
}

func init() {
	uploadCmd.Flags().StringVar(&uploadTenant, "tenant", "", "tour operator id (uuid)")
	uploadCmd.Flags().StringVar(&uploadFile, "file", "", "path or http(s)/ftp URL of the pricing sheet")
	uploadCmd.Flags().StringVar(&uploadMode, "mode", "", "duplicate handling: skip, overwrite or error (default from config)")
	uploadCmd.Flags().BoolVar(&uploadFailFast, "fail-fast", false, "stop at the first invalid row instead of skipping it")
	uploadCmd.Flags().BoolVar(&uploadQuiet, "quiet", false, "do not log progress events")
	_ = uploadCmd.MarkFlagRequired("tenant")
	_ = uploadCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(uploadCmd)
}
