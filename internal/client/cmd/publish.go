package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:   "publish <channel> <message> [message...]",
	Short: "Publish one or more messages to a channel",
	Long: `Publish messages in order. If the gateway is unreachable the messages
are queued and sent once it comes back, up to --timeout.

Example:
  dharana publish sensors/temp 21.5 21.7`,
	Args: cobra.MinimumNArgs(2),
	RunE: runPublish,
}

func runPublish(cmd *cobra.Command, args []string) error {
	s, err := startSession(false)
	if err != nil {
		return err
	}
	defer s.close()

	channel := args[0]
	for _, message := range args[1:] {
		if err := s.client.Publish(channel, message); err != nil {
			return err
		}
	}
	if err := s.flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published %d message(s) to %s\n", len(args)-1, channel)
	return nil
}
