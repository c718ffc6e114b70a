package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type PgRoomRepository struct {
	conn *sql.DB
}

func NewPgRoomRepository(dsn string) (*PgRoomRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PgRoomRepository{conn: db}, nil
}

// NewPgRoomRepositoryFromDB wraps an already opened connection pool.
func NewPgRoomRepositoryFromDB(db *sql.DB) *PgRoomRepository {
	return &PgRoomRepository{conn: db}
}

func (db *PgRoomRepository) DB() *sql.DB {
	return db.conn
}

func (db *PgRoomRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
