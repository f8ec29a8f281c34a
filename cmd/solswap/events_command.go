package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	natspkg "github.com/brojonat/solswap/service/nats"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

// eventsCommand streams trade events from JetStream.
func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:      "events",
		Usage:     "Stream trade events published to NATS",
		ArgsUsage: "[wallet_address]",
		Description: `Subscribe to trade events published to NATS JetStream by solswap.

Events are published to the subject: trades.{wallet_address}
Without an address, events for every wallet are shown.

Example:
  solswap --nats-url nats://localhost:4222 events 7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU --json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "solswap-cli",
			},
		},
		Action: func(c *cli.Context) error {
			natsURL := c.String("nats-url")
			if natsURL == "" {
				return fmt.Errorf("nats-url is required (set NATS_URL env var or use --nats-url)")
			}

			subject := natspkg.StreamSubjects
			if c.NArg() > 0 {
				subject = natspkg.SubjectPrefix + c.Args().First()
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return streamTradeEvents(ctx, c.App.Writer, natsURL, subject, c.Bool("durable"), c.String("consumer-name"), c.Bool("json"))
		},
	}
}

func streamTradeEvents(ctx context.Context, w io.Writer, natsURL, subject string, durable bool, consumerName string, jsonOutput bool) error {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}
	if durable {
		consumerConfig.Durable = consumerName
		consumerConfig.Name = consumerName
	}

	cons, err := js.CreateOrUpdateConsumer(ctx, natspkg.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	if !jsonOutput {
		fmt.Fprintf(w, "Subscribing to: %s\n", subject)
		fmt.Fprintf(w, "Waiting for trades... (Ctrl-C to exit)\n\n")
	}

	msgChan := make(chan jetstream.Msg, 10)
	consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
		msgChan <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	count := 0
	for {
		select {
		case msg := <-msgChan:
			var event natspkg.TradeEvent
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
				msg.Ack()
				continue
			}
			count++

			if jsonOutput {
				data, _ := json.Marshal(event)
				fmt.Fprintln(w, string(data))
			} else {
				printTradeEvent(w, count, &event)
			}
			msg.Ack()

		case <-ctx.Done():
			if !jsonOutput {
				fmt.Fprintf(w, "\nReceived %d trades\n", count)
			}
			return nil
		}
	}
}

func printTradeEvent(w io.Writer, n int, event *natspkg.TradeEvent) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Trade #%d\n", n)
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Signature:    %s\n", event.Signature)
	fmt.Fprintf(w, "Wallet:       %s\n", event.WalletAddress)
	fmt.Fprintf(w, "Side:         %s\n", event.Side)
	fmt.Fprintf(w, "Token:        %s\n", event.TokenMint)
	fmt.Fprintf(w, "In Amount:    %s\n", event.InAmount)
	if event.OutAmount != "" {
		fmt.Fprintf(w, "Quoted Out:   %s\n", event.OutAmount)
	}
	fmt.Fprintf(w, "Status:       %s\n", event.Status)
	if event.Error != nil {
		fmt.Fprintf(w, "Error:        %s\n", *event.Error)
	}
	if event.Slot != 0 {
		fmt.Fprintf(w, "Slot:         %d\n", event.Slot)
	}
	fmt.Fprintf(w, "Published:    %s\n\n", event.PublishedAt.Format(time.RFC3339))
}
