// Command seeduser creates a login for the room booking service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/npezzotti/go-roombook/internal/api"
	"github.com/npezzotti/go-roombook/internal/database"
	"github.com/npezzotti/go-roombook/internal/logging"
	"go.uber.org/zap"
)

var (
	dsn            string
	username       string
	password       string
	migrateOnStart bool
)

func main() {
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&username, "username", "admin", "username to create")
	flag.StringVar(&password, "password", "", "password for the new user")
	flag.BoolVar(&migrateOnStart, "migrate", false, "apply pending schema migrations first")
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	logger, err := logging.New("info", logging.FormatConsole)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	if password == "" {
		return errors.New("-password is required")
	}

	repo, err := database.NewPgRoomRepository(dsn)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("db close", zap.Error(err))
		}
	}()

	if migrateOnStart {
		if err := database.Migrate(repo.DB(), logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := seedUser(ctx, repo, username, password, os.Stdout); err != nil {
		return fmt.Errorf("seed user: %w", err)
	}

	return nil
}

// seedUser inserts the user with a bcrypt hash of password. An existing
// username is reported and is not an error.
func seedUser(ctx context.Context, repo database.RoomRepository, username, password string, out io.Writer) error {
	hash, err := api.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user, err := repo.CreateUser(ctx, database.CreateUserParams{
		Username:     username,
		PasswordHash: hash,
	})
	if errors.Is(err, database.ErrUserExists) {
		fmt.Fprintln(out, "user already exists")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "user %s inserted with id %d\n", user.Username, user.Id)
	return nil
}
