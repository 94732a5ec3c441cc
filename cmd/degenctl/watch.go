package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/pterm/pterm"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
	"github.com/Degen-Markets/degen-markets-solana/internal/events"
	"github.com/Degen-Markets/degen-markets-solana/internal/server/ws"
)

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	base := fs.String("url", envOr(envURL, "http://localhost:8000"), "API base URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	channels, err := poolChannels(fs.Args())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(pterm.NewSlogHandler(&pterm.DefaultLogger))
	client := ws.NewClient(wsURL(*base), channels, printEvent, logger).
		OnSubscribed(func(channels []string) {
			pterm.Info.Printfln("subscribed: %s", strings.Join(channels, ", "))
		})

	pterm.Info.Printfln("watching %s (ctrl-c to stop)", wsURL(*base))
	if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// poolChannels maps pool addresses to hub channels. No pools means every
// ledger event.
func poolChannels(pools []string) ([]string, error) {
	out := make([]string, 0, len(pools))
	for _, p := range pools {
		addr, err := domain.ParseAddress(p)
		if err != nil {
			return nil, err
		}
		out = append(out, events.PoolChannel(addr))
	}
	return out, nil
}

// wsURL turns an API base URL into the hub endpoint.
func wsURL(base string) string {
	base = strings.TrimSuffix(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws"
}

func printEvent(ev domain.Event) {
	fields := []string{pterm.LightCyan(string(ev.Type))}
	addr := func(name string, a *domain.Address) {
		if a != nil {
			fields = append(fields, name+"="+a.String())
		}
	}
	addr("pool", ev.Pool)
	addr("option", ev.Option)
	addr("entry", ev.Entry)
	addr("account", ev.Account)
	if ev.Amount > 0 {
		fields = append(fields, pterm.LightGreen("amount="+strconv.FormatUint(ev.Amount, 10)))
	}
	pterm.Println(strings.Join(fields, " "))
}
