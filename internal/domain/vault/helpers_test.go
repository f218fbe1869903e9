package vault

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"guestvault/internal/database"
	"guestvault/internal/pkg/blobstore"
)

const helloSHA256 = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func digestOf(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestStore(t *testing.T) *blobstore.Store {
	t.Helper()
	store, err := blobstore.New(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	return store
}

type testEnv struct {
	svc    *Service
	repo   Repository
	store  *blobstore.Store
	events *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := NewRepository(newTestDB(t))
	store := newTestStore(t)
	events := &recordingPublisher{}
	return &testEnv{
		svc:    NewService(repo, store).WithPublisher(events),
		repo:   repo,
		store:  store,
		events: events,
	}
}

func (e *testEnv) upload(t *testing.T, name, content string) File {
	t.Helper()
	f, err := e.svc.Upload(context.Background(), UploadInput{
		Filename: name,
		Content:  strings.NewReader(content),
	})
	require.NoError(t, err)
	return f
}

func (e *testEnv) blobExists(t *testing.T, relPath string) bool {
	t.Helper()
	ok, err := e.store.Exists(relPath)
	require.NoError(t, err)
	return ok
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(eventType string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *recordingPublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

var admin = Actor{Admin: true}
