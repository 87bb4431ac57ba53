package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <channel> [channel...]",
	Short: "Print messages published on one or more channels",
	Long: `Subscribe to channels and print every delivery until interrupted.
Subscriptions are replayed automatically after a reconnect.

Example:
  dharana subscribe sensors/temp sensors/humidity`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubscribe,
}

type printedDelivery struct {
	channel string
	message string
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	s, err := startSession(false)
	if err != nil {
		return err
	}
	defer s.close()

	deliveries := make(chan printedDelivery, 64)
	for _, channel := range args {
		err := s.client.Subscribe(channel, func(channel, message string) {
			select {
			case deliveries <- printedDelivery{channel: channel, message: message}:
			case <-s.ctx.Done():
			}
		})
		if err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(s.ctx)
	g.Go(func() error {
		return printDeliveries(ctx, cmd.OutOrStdout(), deliveries)
	})
	g.Go(func() error {
		// 收到信号后关闭客户端，停止重连
		<-ctx.Done()
		return s.client.Close()
	})
	return g.Wait()
}

func printDeliveries(ctx context.Context, w io.Writer, deliveries <-chan printedDelivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-deliveries:
			if _, err := fmt.Fprintf(w, "[%s] %s\n", d.channel, d.message); err != nil {
				return err
			}
		}
	}
}
