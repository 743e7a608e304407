package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"appguard-lab/internal/domain/models"
	"appguard-lab/internal/domain/services"
	"appguard-lab/internal/sources"
	"appguard-lab/pkg/logger"
)

var (
	emailSender  string
	emailSubject string
	emailBody    string
	filesCleanup bool
)

var fileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "Hash a file and check its reputation",
	Args:  cobra.ExactArgs(1),
	RunE:  fileCommand,
}

var urlCmd = &cobra.Command{
	Use:   "url <url>",
	Short: "Check a URL against Safe Browsing",
	Args:  cobra.ExactArgs(1),
	RunE:  urlCommand,
}

var emailCmd = &cobra.Command{
	Use:   "email",
	Short: "Check an email for phishing indicators",
	Long: `Check an email for phishing indicators. The check is local and needs no
API key.

Examples:
  appguard email --sender alerts@paypa1.com --subject "Account suspended"
  appguard email --body "Verify your account within 24 hours"`,
	Args: cobra.NoArgs,
	RunE: emailCommand,
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List suspicious files in the scan directory",
	Args:  cobra.NoArgs,
	RunE:  filesCommand,
}

var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "Show which external lookups are configured",
	Args:  cobra.NoArgs,
	RunE:  adaptersCommand,
}

func init() {
	emailCmd.Flags().StringVar(&emailSender, "sender", "", "Sender address")
	emailCmd.Flags().StringVar(&emailSubject, "subject", "", "Subject line")
	emailCmd.Flags().StringVar(&emailBody, "body", "", "Message body")
	filesCmd.Flags().BoolVar(&filesCleanup, "cleanup", false, "Report what a cleanup would remove (dry run)")

	rootCmd.AddCommand(fileCmd)
	rootCmd.AddCommand(urlCmd)
	rootCmd.AddCommand(emailCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(adaptersCmd)
}

func fileCommand(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	result, err := e.adapters.NewFileScanner(e.cfg, e.log).ScanFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	return emit(cmd.OutOrStdout(), result, func(w io.Writer) {
		renderFile(w, result)
	})
}

func urlCommand(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	verdict, err := checkURL(cmd.Context(), e.adapters.SafeBrowsing, args[0])
	if err != nil {
		return err
	}

	return emit(cmd.OutOrStdout(), verdict, func(w io.Writer) {
		renderURL(w, verdict)
	})
}

func checkURL(ctx context.Context, checker services.URLReputation, raw string) (*models.URLVerdict, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("url is required")
	}
	if !checker.IsConfigured() {
		return nil, fmt.Errorf("URL checks need a Safe Browsing API key")
	}

	verdict, err := checker.CheckURL(ctx, raw)
	switch {
	case errors.Is(err, sources.ErrUnauthorized):
		return nil, fmt.Errorf("the Safe Browsing API key was rejected: %w", err)
	case err != nil:
		return nil, fmt.Errorf("URL check failed: %w", err)
	}
	return verdict, nil
}

func emailCommand(cmd *cobra.Command, args []string) error {
	msg := models.EmailMessage{Sender: emailSender, Subject: emailSubject, Body: emailBody}
	if msg.Sender == "" && msg.Subject == "" && msg.Body == "" {
		return fmt.Errorf("at least one of --sender, --subject or --body is required")
	}

	result := services.NewPhishingDetector(logger.NewNop()).Detect(msg)
	return emit(cmd.OutOrStdout(), result, func(w io.Writer) {
		renderEmail(w, result)
	})
}

func filesCommand(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	analyzer := e.analyzer()
	out := cmd.OutOrStdout()

	if filesCleanup {
		report := analyzer.Files().Cleanup(analyzer.ScanDir())
		return emit(out, report, func(w io.Writer) {
			renderCleanup(w, report)
		})
	}

	report := analyzer.Files().Report(analyzer.ScanDir())
	return emit(out, report, func(w io.Writer) {
		renderSuspicious(w, report)
	})
}

func adaptersCommand(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	status := e.adapters.Registry.Status()
	return emit(cmd.OutOrStdout(), status, func(w io.Writer) {
		renderAdapters(w, status)
	})
}
