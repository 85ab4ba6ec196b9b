package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"wanderwise/internal/adapters/observability"
	"wanderwise/internal/domain"
	"wanderwise/internal/shared"
	"wanderwise/internal/wizard"
)

// book walks through the booking wizard in a terminal against a running API.
func main() {
	cfg := shared.Load()
	log.Logger = observability.NewLogger("book", "dev", cfg.LogLevel)

	api := flag.String("api", cfg.APIBaseURL, "WanderWise API base URL")
	uid := flag.String("package", "", "package UID to book")
	flag.Parse()
	if *uid == "" {
		fmt.Fprintln(os.Stderr, "usage: book -package <uid> [-api http://localhost:8080]")
		os.Exit(2)
	}

	ctx := context.Background()
	pkg, err := fetchPackage(ctx, *api, *uid)
	if err != nil {
		log.Fatal().Err(err).Str("package", *uid).Msg("cannot load package")
	}
	dest := ""
	if len(pkg.Destinations) > 0 {
		dest = pkg.Destinations[0].Title
	}

	w := wizard.New(wizard.Package{
		Title: pkg.Title, Price: pkg.Price, Days: pkg.Days, Provider: pkg.Provider,
	}, dest, wizard.NewHTTPSubmitter(*api))

	p := &prompter{in: bufio.NewReader(os.Stdin), out: os.Stdout}
	fmt.Fprintf(p.out, "Booking %s (%d days, INR %.0f per person). Type q to quit.\n\n", pkg.Title, pkg.Days, pkg.Price)

	if err := run(ctx, w, p); err != nil {
		if errors.Is(err, errQuit) {
			w.Close()
			fmt.Fprintln(p.out, "Booking cancelled.")
			return
		}
		log.Fatal().Err(err).Msg("booking aborted")
	}
}

var errQuit = errors.New("quit")

var detailFields = []struct{ name, label string }{
	{wizard.FieldFullName, "Full name"},
	{wizard.FieldEmail, "Email"},
	{wizard.FieldPhone, "Phone"},
	{wizard.FieldTravelers, "Travelers"},
	{wizard.FieldTravelDate, "Travel date (YYYY-MM-DD)"},
	{wizard.FieldSpecialRequests, "Special requests (optional)"},
}

var paymentFields = []struct{ name, label string }{
	{wizard.FieldCardNumber, "Card number"},
	{wizard.FieldCardName, "Name on card"},
	{wizard.FieldExpiryDate, "Expiry (MM/YY)"},
	{wizard.FieldCVV, "CVV"},
}

func run(ctx context.Context, w *wizard.Wizard, p *prompter) error {
	ask := func(fields []struct{ name, label string }, only map[string]string) error {
		for _, f := range fields {
			if only != nil {
				if _, bad := only[f.name]; !bad {
					continue
				}
			}
			label := f.label
			if f.name == wizard.FieldTravelDate {
				label += ", earliest " + w.MinTravelDate()
			}
			v, err := p.ask(label)
			if err != nil {
				return err
			}
			if f.name == wizard.FieldTravelers && v == "" {
				continue // keep default
			}
			if err := w.Set(f.name, v); err != nil {
				return err
			}
		}
		return nil
	}

	var retry map[string]string
	for {
		switch w.Step() {
		case wizard.StepDetails:
			fmt.Fprintln(p.out, "-- Step 1 of 3: traveler details")
			if err := ask(detailFields, retry); err != nil {
				return err
			}
		case wizard.StepPayment:
			fmt.Fprintf(p.out, "-- Step 2 of 3: payment (simulated). Total INR %.0f\n", w.Total())
			if err := ask(paymentFields, retry); err != nil {
				return err
			}
			v, err := p.ask("Confirm booking? [y]es / [b]ack")
			if err != nil {
				return err
			}
			if strings.HasPrefix(strings.ToLower(v), "b") {
				w.Back()
				retry = map[string]string{}
				for _, f := range detailFields {
					retry[f.name] = ""
				}
				continue
			}
		case wizard.StepConfirmation:
			fmt.Fprintf(p.out, "-- Step 3 of 3: confirmed! Booking ID %s\n", w.BookingID())
			return nil
		}

		_, err := w.Advance(ctx)
		var se *wizard.SubmissionError
		switch {
		case err == nil:
			retry = nil
		case errors.Is(err, wizard.ErrInvalid):
			retry = w.Errors()
			keys := make([]string, 0, len(retry))
			for k := range retry {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(p.out, "  ! %s\n", retry[k])
			}
		case errors.As(err, &se):
			fmt.Fprintf(p.out, "  ! %s\n", se.Alert)
			retry = map[string]string{} // keep payment fields, just confirm again
		default:
			return err
		}
	}
}

type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *prompter) ask(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "q" {
		return "", errQuit
	}
	return line, nil
}

func fetchPackage(ctx context.Context, api, uid string) (domain.Package, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(api, "/")+"/v1/packages/"+uid, nil)
	if err != nil {
		return domain.Package{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return domain.Package{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.Package{}, fmt.Errorf("GET package: status %d", resp.StatusCode)
	}
	var p domain.Package
	return p, json.NewDecoder(resp.Body).Decode(&p)
}
