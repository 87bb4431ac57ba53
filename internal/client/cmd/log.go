package cmd

import (
	"errors"
	"fmt"
	"strings"

	"dharana-gateway/internal/utils"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logLevelFlag string
var logErrorFlag string

var logCmd = &cobra.Command{
	Use:   "log <message>",
	Short: "Send a log line to the gateway debug channel",
	Long: `Log a message locally and forward it as debug_log.
The level selects the topic: info → logs, warn → warnings, error → errors.
With --error the entry goes to exceptions.

Example:
  dharana log --level warn "battery low"
  dharana log --level error --error "timeout" "sync failed"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLog,
}

func init() {
	logCmd.Flags().StringVar(&logLevelFlag, "level", "info", "Log level: info/warn/error")
	logCmd.Flags().StringVar(&logErrorFlag, "error", "", "Attach an error, forwarding to the exceptions topic")
}

func runLog(cmd *cobra.Command, args []string) error {
	level, err := logrus.ParseLevel(logLevelFlag)
	if err != nil {
		return fmt.Errorf("invalid --level: %w", err)
	}
	if level > logrus.InfoLevel || level < logrus.ErrorLevel {
		return fmt.Errorf("--level must be info, warn or error")
	}

	s, err := startSession(true)
	if err != nil {
		return err
	}
	defer s.close()

	entry := logrus.NewEntry(utils.Logger)
	if logErrorFlag != "" {
		entry = entry.WithError(errors.New(logErrorFlag))
	}
	entry.Log(level, strings.Join(args, " "))

	if err := s.flush(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "log delivered")
	return nil
}
