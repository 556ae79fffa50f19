package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	appaudit "github.com/gym/backend/internal/application/audit"
	"github.com/gym/backend/internal/domain/audit"
	"github.com/spf13/cobra"
)

func auditCmd(bootstrap bootstrapFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Payment audit log maintenance",
	}
	cmd.AddCommand(auditPurgeCmd(bootstrap))
	cmd.AddCommand(auditExportCmd(bootstrap))
	cmd.AddCommand(auditArchiveCmd(bootstrap))
	return cmd
}

func auditPurgeCmd(bootstrap bootstrapFunc) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete audit entries older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("days") && days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}

			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("days") {
				days = a.cfg.Audit.RetentionDays
			}
			deleted, err := a.audit.CleanOldAuditLogs(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d audit entries older than %d days\n", deleted, days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", audit.DefaultRetentionDays, "days of audit history to keep (default audit.retention_days)")
	return cmd
}

func auditExportCmd(bootstrap bootstrapFunc) *cobra.Command {
	var (
		start, end string
		format     string
		out        string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export audit entries in a date range",
		Long: `Export audit entries between two dates, both inclusive.

Examples:
  billing audit export --start 2026-03-01 --end 2026-03-31
  billing audit export --start 2026-03-01 --end 2026-03-31 --format json --out march.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, to, err := parseWindow(start, end)
			if err != nil {
				return err
			}
			if !strings.EqualFold(format, appaudit.ExportFormatCSV) && !strings.EqualFold(format, "json") {
				return fmt.Errorf("--format must be csv or json, got %q", format)
			}

			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.audit.ExportAuditData(cmd.Context(), from, to, format)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			if err := writeExport(w, result); err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d audit entries to %s\n", result.Count, out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD")
	cmd.Flags().StringVar(&format, "format", "csv", "csv or json")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to a file instead of stdout")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func auditArchiveCmd(bootstrap bootstrapFunc) *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Upload a CSV export of a date range to object storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, to, err := parseWindow(start, end)
			if err != nil {
				return err
			}

			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.audit.ArchiveAuditData(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

// parseWindow reads two UTC dates; end covers its whole day
func parseWindow(start, end string) (time.Time, time.Time, error) {
	from, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --start %q: want YYYY-MM-DD", start)
	}
	to, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --end %q: want YYYY-MM-DD", end)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--end %s is before --start %s", end, start)
	}
	return from, to.Add(24*time.Hour - time.Nanosecond), nil
}

func writeExport(w io.Writer, result *appaudit.ExportResult) error {
	if result.Format == appaudit.ExportFormatCSV {
		_, err := io.WriteString(w, result.CSV)
		return err
	}
	return writeJSON(w, result.Entries)
}
