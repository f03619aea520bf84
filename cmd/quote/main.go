package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/noah-isme/backend-plano/internal/config"
	"github.com/noah-isme/backend-plano/internal/configurator"
	"github.com/noah-isme/backend-plano/internal/money"
	"github.com/noah-isme/backend-plano/internal/pricing"
)

func main() {
	if err := run(os.Args[1:], config.MustLoad(), os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatal(err)
	}
}

func run(args []string, cfg *config.Config, out io.Writer) error {
	defaults := configurator.DefaultState()

	fs := flag.NewFlagSet("quote", flag.ContinueOnError)
	fs.SetOutput(out)
	whatsapp := fs.Int("whatsapp", defaults.WhatsAppAccounts, "WhatsApp accounts (0-50)")
	social := fs.Int("social", defaults.SocialAccounts, "social network accounts (0-50)")
	seats := fs.Int("seats", defaults.UserSeats, "user seats (1-250)")
	broadcast := fs.Bool("broadcast", defaults.Broadcast, "enable the broadcast add-on")
	billing := fs.String("billing", string(defaults.Billing), "billing mode: monthly or annual")
	if err := fs.Parse(args); err != nil {
		return err
	}

	mode, err := pricing.ParseBillingMode(*billing)
	if err != nil {
		return err
	}
	formatter, err := money.NewFormatter(cfg.Money)
	if err != nil {
		return fmt.Errorf("formatter: %w", err)
	}

	panel := configurator.NewPanel(pricing.NewEngine(cfg.Rates), configurator.State{
		WhatsAppAccounts: *whatsapp,
		SocialAccounts:   *social,
		UserSeats:        *seats,
		Broadcast:        *broadcast,
		Billing:          mode,
	})
	render(out, configurator.NewView("", panel, formatter))
	return nil
}

func render(out io.Writer, v configurator.View) {
	s := v.Summary
	fmt.Fprintf(out, "%s\n%s %s\n", s.Title, s.Price, s.Period)
	if s.Badge != "" {
		fmt.Fprintln(out, s.Badge)
	}
	if s.Savings != "" {
		fmt.Fprintln(out, s.Savings)
	}
	fmt.Fprintln(out, strings.Repeat("-", 40))

	width := 0
	for _, l := range s.Lines {
		if n := len([]rune(l.Label)); n > width {
			width = n
		}
	}
	for _, l := range s.Lines {
		pad := width - len([]rune(l.Label))
		fmt.Fprintf(out, "%s%s  %s\n", l.Label, strings.Repeat(" ", pad), l.Amount)
	}
}
