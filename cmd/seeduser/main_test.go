package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/npezzotti/go-roombook/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

func TestSeedUser(t *testing.T) {
	tcases := []struct {
		name        string
		mockErr     error
		expectedOut string
		expectErr   bool
	}{
		{
			name:        "creates user",
			expectedOut: "user admin inserted with id 1\n",
		},
		{
			name:        "duplicate username",
			mockErr:     database.ErrUserExists,
			expectedOut: "user already exists\n",
		},
		{
			name:      "store failure",
			mockErr:   errors.New("connection refused"),
			expectErr: true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &database.MockRoomRepository{}
			defer repo.AssertExpectations(t)

			repo.On("CreateUser", mock.MatchedBy(func(p database.CreateUserParams) bool {
				return p.Username == "admin" &&
					bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte("password123")) == nil
			})).Return(database.User{Id: 1, Username: "admin"}, tc.mockErr).Once()

			var out bytes.Buffer
			err := seedUser(context.Background(), repo, "admin", "password123", &out)

			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expectedOut, out.String())
		})
	}
}

func TestRunReturnsErrors(t *testing.T) {
	prevDSN, prevPassword := dsn, password
	t.Cleanup(func() { dsn, password = prevDSN, prevPassword })

	t.Run("missing password", func(t *testing.T) {
		password = ""
		assert.EqualError(t, run(), "-password is required")
	})

	t.Run("unreachable database", func(t *testing.T) {
		password = "password123"
		dsn = "host=127.0.0.1 port=1 user=postgres password=postgres dbname=postgres sslmode=disable connect_timeout=1"
		err := run()
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), "db open")
		}
	})
}
