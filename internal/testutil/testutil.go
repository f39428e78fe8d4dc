// Package testutil shared fixtures for package tests: in-memory sqlite, miniredis and a recording publisher.
package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ninja0404/whale-signal/internal/model"
)

// NewDB migrated in-memory database; one connection so every query sees the same memory db
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func NewRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

// Message one recorded publish
type Message struct {
	Queue   string
	Key     string
	Payload []byte
}

// Publisher records every publish; Err, when set, fails them instead
type Publisher struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

func (p *Publisher) Publish(_ context.Context, name, key string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.messages = append(p.messages, Message{Queue: name, Key: key, Payload: append([]byte(nil), payload...)})
	return nil
}

func (p *Publisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.messages...)
}
