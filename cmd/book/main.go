// Command book lists available rooms and books one, either against a running
// room service or against the local demo catalog.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/npezzotti/go-roombook/internal/booking"
	"github.com/npezzotti/go-roombook/internal/client"
	"github.com/npezzotti/go-roombook/internal/logging"
	"go.uber.org/zap"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}

type options struct {
	baseURL     string
	username    string
	password    string
	room        string
	release     string
	capacity    int
	roomType    string
	doctors     stringSliceFlag
	mode        string
	offline     bool
	offlineFile string
}

func main() {
	var opts options
	var logLevel string
	flag.StringVar(&opts.baseURL, "base-url", "http://localhost:8000", "room service base URL")
	flag.StringVar(&opts.username, "username", "admin", "login username")
	flag.StringVar(&opts.password, "password", "", "login password")
	flag.StringVar(&opts.room, "room", "", "room number to book; lists available rooms when empty")
	flag.StringVar(&opts.release, "release", "", "room number to mark available again")
	flag.IntVar(&opts.capacity, "capacity", 1, "room capacity")
	flag.StringVar(&opts.roomType, "type", "General", "room type")
	flag.Var(&opts.doctors, "doctor", "assigned doctor (repeatable)")
	flag.StringVar(&opts.mode, "mode", booking.ModeAtomic.String(), "booking mode (atomic, two-step)")
	flag.BoolVar(&opts.offline, "offline", false, "use the local demo catalog instead of the service")
	flag.StringVar(&opts.offlineFile, "offline-file", "occupied-rooms.json", "occupied rooms file used with -offline")
	flag.StringVar(&logLevel, "log-level", "warn", "log level")
	flag.Parse()

	logger, err := logging.New(logLevel, logging.FormatConsole)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger *zap.Logger, out io.Writer) error {
	mode, err := booking.ParseMode(opts.mode)
	if err != nil {
		return err
	}

	api, err := connect(ctx, opts, logger)
	if err != nil {
		return err
	}

	if opts.release != "" {
		if err := api.MarkAvailable(ctx, opts.release); err != nil {
			return fmt.Errorf("release room %s: %w", opts.release, err)
		}
		fmt.Fprintf(out, "Room %s is available again\n", opts.release)
		return nil
	}

	w := booking.New(api,
		booking.WithMode(mode),
		booking.WithLogger(logger),
		booking.WithObserver(func(from, to booking.State) {
			logger.Debug("booking state", zap.Stringer("from", from), zap.Stringer("to", to))
		}),
	)

	if opts.room == "" {
		return listAvailable(ctx, w, out)
	}

	if err := w.Select(opts.room); err != nil {
		return errors.New(booking.Message(err))
	}

	err = w.Confirm(ctx, booking.Details{
		Capacity: opts.capacity,
		Type:     opts.roomType,
		Doctors:  opts.doctors,
	})
	if err != nil {
		logger.Debug("booking failed", zap.Error(err))
		return errors.New(booking.Message(err))
	}

	fmt.Fprintf(out, "Booking confirmed for Room %s!\n", opts.room)
	return nil
}

func connect(ctx context.Context, opts options, logger *zap.Logger) (booking.RoomAPI, error) {
	if opts.offline {
		return booking.NewOfflineStore(opts.offlineFile), nil
	}

	c := client.New(opts.baseURL, logger)
	if _, err := c.Login(ctx, opts.username, opts.password); err != nil {
		return nil, err
	}

	return c, nil
}

func listAvailable(ctx context.Context, w *booking.Workflow, out io.Writer) error {
	rooms, err := w.AvailableRooms(ctx)
	if err != nil {
		return err
	}

	if len(rooms) == 0 {
		fmt.Fprintln(out, "No available rooms.")
		return nil
	}

	fmt.Fprintln(out, "Available room(s):")
	for _, r := range rooms {
		fmt.Fprintf(out, "  %s  %-8s capacity %d  %s\n", r.RoomNumber, r.Type, r.Capacity, strings.Join(r.Doctors, ", "))
	}

	return nil
}
