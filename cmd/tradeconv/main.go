package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"tradeconv/internal"
	"tradeconv/internal/config"
	"tradeconv/internal/connectors"
	"tradeconv/internal/listener"
	"tradeconv/internal/logger"
	"tradeconv/internal/pipeline"
	"tradeconv/internal/storage"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	a := &app{cfg: cfg, log: logger.Discard()}
	defer a.close()

	root := a.newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

type app struct {
	cfg config.Config
	log logger.Logger
	db  *storage.DB

	logLevel string
	logJSON  bool
}

func (a *app) openDB() (*storage.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := storage.Open(a.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.db = db
	return db, nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

func (a *app) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tradeconv",
		Short:         "Convert broker fill reports into journal CSV files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.log = logger.NewLogger(&logger.Config{
				Level:      logger.LogLevel(a.logLevel),
				Output:     cmd.ErrOrStderr(),
				JSON:       a.logJSON,
				TimeFormat: "15:04:05",
			})
		},
	}
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", a.cfg.LogLevel, "Log level (debug, info, warn, error, disabled)")
	cmd.PersistentFlags().BoolVar(&a.logJSON, "log-json", a.cfg.LogJSON, "Emit logs as JSON")

	cmd.AddCommand(a.newConvertCommand())
	cmd.AddCommand(a.newMailFetchCommand())
	cmd.AddCommand(a.newMailProcessCommand())
	cmd.AddCommand(a.newMailListenCommand())
	cmd.AddCommand(a.newHistoryCommand())
	return cmd
}

// reportTypeFlag restricts --type to the supported report formats.
type reportTypeFlag struct {
	value internal.ReportType
}

var _ pflag.Value = (*reportTypeFlag)(nil)

func (f *reportTypeFlag) String() string { return string(f.value) }

func (f *reportTypeFlag) Set(v string) error {
	rt, err := pipeline.ParseReportType(v)
	if err != nil {
		names := make([]string, 0, len(internal.ReportTypes))
		for _, t := range internal.ReportTypes {
			names = append(names, string(t))
		}
		return fmt.Errorf("must be one of: %s", strings.Join(names, ", "))
	}
	f.value = rt
	return nil
}

func (f *reportTypeFlag) Type() string { return "report-type" }

func (a *app) newConvertCommand() *cobra.Command {
	reportType := &reportTypeFlag{value: internal.ReportCQGFillReport}
	if rt, err := pipeline.ParseReportType(a.cfg.DefaultReportType); err == nil {
		reportType.value = rt
	}
	var input, output string

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a fill report to CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var history pipeline.HistoryRecorder
			if a.cfg.RecordHistory {
				db, err := a.openDB()
				if err != nil {
					return err
				}
				history = db
			}

			res, err := pipeline.NewConvertService(a.log, history).ConvertFile(reportType.value, input, output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Successfully converted %s to %s\n", res.Input, res.Output)
			return nil
		},
	}
	cmd.Flags().VarP(reportType, "type", "t", "Report format of the input file")
	cmd.Flags().StringVarP(&input, "input", "i", "", "Input report (.xlsx, .html or .eml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output CSV path (default: input with .csv extension)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func (a *app) newMailFetchCommand() *cobra.Command {
	var provider, label string
	var max int
	cmd := &cobra.Command{
		Use:   "mail:fetch",
		Short: "Fetch unseen report emails into the local store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := connectors.NormalizeProvider(provider)
			if err != nil {
				return err
			}
			conn, err := listener.ConnectorFactory(a.cfg)(p)
			if err != nil {
				return err
			}
			db, err := a.openDB()
			if err != nil {
				return err
			}
			result, err := connectors.NewFetchService(db, a.cfg.RawMailDir, conn, a.log).FetchAndStore(cmd.Context(), label, max)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mail fetch done provider=%s fetched=%d stored=%d\n", p, result.Fetched, result.Stored)
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", a.cfg.MailListenerProvider, "Mail provider (gmail, imap)")
	cmd.Flags().StringVar(&label, "label", a.cfg.MailListenerLabel, "Mailbox or label to read")
	cmd.Flags().IntVar(&max, "max", 50, "Maximum messages to fetch")
	return cmd
}

func (a *app) newMailProcessCommand() *cobra.Command {
	var provider, messageID string
	var batch int
	cmd := &cobra.Command{
		Use:   "mail:process",
		Short: "Convert fill reports attached to fetched emails",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(provider) != "" {
				p, err := connectors.NormalizeProvider(provider)
				if err != nil {
					return err
				}
				provider = p
			}
			db, err := a.openDB()
			if err != nil {
				return err
			}
			processor := pipeline.NewProcessingService(db, a.cfg, a.log)
			out := cmd.OutOrStdout()

			if strings.TrimSpace(messageID) != "" {
				res, err := processor.ProcessByProviderMessageID(provider, messageID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "processed email id=%d status=%s rows=%d output=%s\n", res.EmailID, res.Status, res.Rows, res.Output)
				return nil
			}

			res, err := processor.ProcessPending(batch, provider)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "processed pending emails=%d converted=%d skipped=%d failed=%d rows=%d\n",
				res.Processed(), res.Converted, res.Skipped, res.Failed, res.Rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", a.cfg.MailListenerProvider, "Mail provider (gmail, imap)")
	cmd.Flags().StringVar(&messageID, "messageId", "", "Process one message by its Message-ID")
	cmd.Flags().IntVar(&batch, "batch", a.cfg.MailListenerProcessBatch, "Maximum pending emails to process")
	return cmd
}

func (a *app) newMailListenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mail:listen",
		Short: "Poll the mailbox and convert reports until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return listener.NewService(db, a.cfg, a.log).Run(ctx)
		},
	}
}

func (a *app) newHistoryCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent conversions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			rows, err := db.ListConversions(limit)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of conversions to show")
	return cmd
}

func printHistory(w io.Writer, rows []internal.ConversionRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTYPE\tINPUT\tOUTPUT\tROWS\tSTATUS")
	for _, r := range rows {
		status := "ok"
		if r.Error != nil {
			status = "error: " + *r.Error
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n", r.ID, r.CreatedAt, r.ReportType, r.InputPath, r.OutputPath, r.Rows, status)
	}
	return tw.Flush()
}
