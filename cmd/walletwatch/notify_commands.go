package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itchyny/gojq"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"

	"github.com/brojonat/walletwatch/service/notify"
)

// tailCommand streams activity events from the notification stream.
func tailCommand() *cli.Command {
	return &cli.Command{
		Name:  "tail",
		Usage: "Stream notification events from JetStream",
		Description: `Subscribe to the NOTIFICATIONS stream and print activity events as
they are published. Events are published to the subject: notify.{user_id}

jq filters run against the full event document; an event is printed only
when every filter evaluates to a truthy value.

Example:
  walletwatch notify tail --user-id 123456 --jq '.transfers | length > 0'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.Int64Flag{
				Name:    "user-id",
				Aliases: []string{"u"},
				Usage:   "Restrict to one user's events (all users by default)",
			},
			&cli.StringSliceFlag{
				Name:    "must-jq",
				Aliases: []string{"jq"},
				Usage:   "jq filter that must evaluate to true (repeatable, all must match)",
			},
		},
		Action: func(c *cli.Context) error {
			filters, err := compileJQFilters(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}

			subject := notify.StreamSubjects
			if c.IsSet("user-id") {
				subject = fmt.Sprintf("notify.%d", c.Int64("user-id"))
			}

			nc, err := nats.Connect(c.String("nats-url"))
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cons, err := js.CreateOrUpdateConsumer(ctx, notify.StreamName, jetstream.ConsumerConfig{
				FilterSubject: subject,
				AckPolicy:     jetstream.AckExplicitPolicy,
				DeliverPolicy: jetstream.DeliverNewPolicy,
			})
			if err != nil {
				return fmt.Errorf("failed to create consumer: %w", err)
			}

			fmt.Fprintf(os.Stderr, "Tailing %s (Ctrl+C to stop)...\n", subject)

			cc, err := cons.Consume(func(msg jetstream.Msg) {
				defer msg.Ack()

				var doc map[string]any
				if err := json.Unmarshal(msg.Data(), &doc); err != nil {
					fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
					return
				}
				if !matchesAll(filters, doc) {
					return
				}

				if c.Bool("json") {
					fmt.Println(string(msg.Data()))
					return
				}

				var event notify.ActivityEvent
				if err := json.Unmarshal(msg.Data(), &event); err != nil {
					return
				}
				fmt.Printf("[%s] user=%d wallet=%s (%s) sig=%s transfers=%d\n",
					event.PublishedAt.Format(time.RFC3339),
					event.UserID,
					event.WalletName,
					event.WalletAddress,
					event.Signature,
					len(event.Transfers),
				)
				for _, t := range event.Transfers {
					fmt.Printf("    %s %g %s\n", t.Direction, t.Amount, t.Symbol)
				}
			})
			if err != nil {
				return fmt.Errorf("failed to start consuming: %w", err)
			}
			defer cc.Stop()

			<-ctx.Done()
			return nil
		},
	}
}

// compileJQFilters parses and compiles the --must-jq expressions.
func compileJQFilters(filters []string) ([]*gojq.Code, error) {
	compiled := make([]*gojq.Code, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		compiled[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return compiled, nil
}

// matchesAll reports whether every compiled filter yields a truthy value
// for the document.
func matchesAll(filters []*gojq.Code, doc any) bool {
	for _, code := range filters {
		iter := code.Run(doc)
		v, ok := iter.Next()
		if !ok {
			return false
		}
		if _, isErr := v.(error); isErr {
			return false
		}
		if !isTruthy(v) {
			return false
		}
	}
	return true
}

// isTruthy follows jq semantics: false and null are falsy, everything
// else is truthy.
func isTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	default:
		return true
	}
}
