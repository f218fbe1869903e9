package vault

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestUpload_DeduplicatesAndDeletesLastReference(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.upload(t, "a.txt", "hello")
	b := env.upload(t, "b.txt", "hello")

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, helloSHA256, a.SHA256)
	assert.Equal(t, a.SHA256, b.SHA256)
	assert.Equal(t, a.StoredRelPath, b.StoredRelPath)
	assert.Equal(t, "2c/"+helloSHA256+".txt", a.StoredRelPath)
	assert.EqualValues(t, 5, a.Size)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", a.MD5)
	assert.Equal(t, "text/plain", a.ContentType)

	require.NoError(t, env.svc.Delete(ctx, admin, a.ID))
	assert.True(t, env.blobExists(t, a.StoredRelPath))

	require.NoError(t, env.svc.Delete(ctx, admin, b.ID))
	assert.False(t, env.blobExists(t, b.StoredRelPath))

	_, err := os.Stat(filepath.Join(env.store.Root(), "2c"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "empty fan-out directory should be removed")

	assert.Equal(t, []string{EventFileUploaded, EventFileUploaded, EventFilesDeleted, EventFilesDeleted}, env.events.Events())
}

func TestUpload_RejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Upload(ctx, UploadInput{Filename: "a.txt"})
	assert.ErrorIs(t, err, ErrNoContent)

	_, err = env.svc.Upload(ctx, UploadInput{Filename: "/../..", Content: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrInvalidFilename)

	files, err := env.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)

	blobs, err := env.store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, blobs)
}

func TestUpload_SanitizesFilename(t *testing.T) {
	env := newTestEnv(t)

	f := env.upload(t, "../../etc/passwd", "root:x:0:0")
	assert.Equal(t, "etc_passwd", f.OriginalFilename)
	assert.Equal(t, f.SHA256[:2]+"/"+f.SHA256, f.StoredRelPath)
}

func TestUpload_EmptyContent(t *testing.T) {
	env := newTestEnv(t)

	f := env.upload(t, "empty.bin", "")
	assert.Zero(t, f.Size)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", f.SHA256)
	assert.True(t, env.blobExists(t, f.StoredRelPath))
}

func TestDelete_ExtensionVariantReclaimedImmediately(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	txt := env.upload(t, "a.txt", "hello")
	md := env.upload(t, "a.md", "hello")
	require.NotEqual(t, txt.StoredRelPath, md.StoredRelPath)

	require.NoError(t, env.svc.Delete(ctx, admin, txt.ID))
	assert.False(t, env.blobExists(t, txt.StoredRelPath))
	assert.True(t, env.blobExists(t, md.StoredRelPath))

	res, err := env.svc.Sweep(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, res.Orphans)
}

func TestUpload_CancelledContextLeavesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.svc.Upload(ctx, UploadInput{Filename: "a.txt", Content: strings.NewReader("hello")})
	require.Error(t, err)

	n, err := env.repo.CountByDigest(context.Background(), helloSHA256)
	require.NoError(t, err)
	assert.Zero(t, n)

	blobs, err := env.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, blobs)
}

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Insert(ctx context.Context, f *File) (int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context) ([]File, error) {
	args := m.Called(ctx)
	return args.Get(0).([]File), args.Error(1)
}

func (m *MockRepository) Get(ctx context.Context, id int64) (File, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(File), args.Error(1)
}

func (m *MockRepository) IncrementDownloadCount(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) DeleteMany(ctx context.Context, ids []int64) ([]File, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]File), args.Error(1)
}

func (m *MockRepository) CountByDigest(ctx context.Context, digest string) (int64, error) {
	args := m.Called(ctx, digest)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) CountByStoredPath(ctx context.Context, relPath string) (int64, error) {
	args := m.Called(ctx, relPath)
	return args.Get(0).(int64), args.Error(1)
}

func TestUpload_InsertFailureReclaimsNewBlob(t *testing.T) {
	repo := new(MockRepository)
	store := newTestStore(t)
	svc := NewService(repo, store)

	repo.On("Insert", mock.Anything, mock.AnythingOfType("*vault.File")).Return(int64(0), errors.New("disk full"))
	repo.On("CountByDigest", mock.Anything, helloSHA256).Return(int64(0), nil)

	_, err := svc.Upload(context.Background(), UploadInput{Filename: "a.txt", Content: strings.NewReader("hello")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	ok, err := store.Exists("2c/" + helloSHA256 + ".txt")
	require.NoError(t, err)
	assert.False(t, ok)
	repo.AssertExpectations(t)
}

func TestUpload_InsertFailureKeepsSharedBlob(t *testing.T) {
	repo := new(MockRepository)
	store := newTestStore(t)
	svc := NewService(repo, store)

	rel, err := store.Put(context.Background(), strings.NewReader("hello"), helloSHA256, ".txt")
	require.NoError(t, err)

	repo.On("Insert", mock.Anything, mock.Anything).Return(int64(0), errors.New("constraint failed"))
	repo.On("CountByDigest", mock.Anything, helloSHA256).Return(int64(1), nil)
	repo.On("CountByStoredPath", mock.Anything, rel).Return(int64(1), nil)

	_, err = svc.Upload(context.Background(), UploadInput{Filename: "b.txt", Content: strings.NewReader("hello")})
	require.Error(t, err)

	ok, err := store.Exists(rel)
	require.NoError(t, err)
	assert.True(t, ok)
	repo.AssertExpectations(t)
}

func TestDelete_RequiresAdmin(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, newTestStore(t))

	err := svc.Delete(context.Background(), Actor{}, 1)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.BulkDelete(context.Background(), Actor{}, []int64{1, 2})
	assert.ErrorIs(t, err, ErrForbidden)

	repo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "DeleteMany", mock.Anything, mock.Anything)
}

func TestDelete_UnknownID(t *testing.T) {
	env := newTestEnv(t)
	err := env.svc.Delete(context.Background(), admin, 42)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestBulkDelete_AllReferencesRemovesBlobOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.upload(t, "a.txt", "hello")
	b := env.upload(t, "b.txt", "hello")
	other := env.upload(t, "c.txt", "world")

	n, err := env.svc.BulkDelete(ctx, admin, []int64{a.ID, b.ID, b.ID, 9999})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, env.blobExists(t, a.StoredRelPath))
	assert.True(t, env.blobExists(t, other.StoredRelPath))
}

func TestBulkDelete_PartialKeepsBlob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var ids []int64
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		ids = append(ids, env.upload(t, name, "hello").ID)
	}

	n, err := env.svc.BulkDelete(ctx, admin, ids[:2])
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, env.blobExists(t, "2c/"+helloSHA256+".txt"))

	n, err = env.svc.BulkDelete(ctx, admin, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDownload_CountedOnlyWhenRecorded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := env.upload(t, "a.txt", "hello")

	_, blob, err := env.svc.Download(ctx, f.ID)
	require.NoError(t, err)
	body, err := io.ReadAll(blob)
	require.NoError(t, err)
	require.NoError(t, blob.Close())
	assert.Equal(t, "hello", string(body))

	stored, err := env.svc.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.DownloadCount)

	env.svc.CountDownload(ctx, f.ID)
	_, blob, err = env.svc.OpenRaw(ctx, f.ID)
	require.NoError(t, err)
	require.NoError(t, blob.Close())

	stored, err = env.svc.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stored.DownloadCount)
}

func TestDownload_MissingBlob(t *testing.T) {
	env := newTestEnv(t)
	f := env.upload(t, "a.txt", "hello")

	p, err := env.store.Resolve(f.StoredRelPath)
	require.NoError(t, err)
	require.NoError(t, os.Remove(p))

	_, _, err = env.svc.Download(context.Background(), f.ID)
	assert.ErrorIs(t, err, ErrBlobMissing)
}

func TestDelete_ConcurrentDeletesRemoveBlob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var files []File
	for i := 0; i < 8; i++ {
		files = append(files, env.upload(t, "copy.txt", "hello"))
	}

	var wg sync.WaitGroup
	for _, f := range files {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			assert.NoError(t, env.svc.Delete(ctx, admin, id))
		}(f.ID)
	}
	wg.Wait()

	assert.False(t, env.blobExists(t, files[0].StoredRelPath))
}

func TestDelete_RacingUploadKeepsBlob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		old := env.upload(t, "a.txt", "hello")

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, env.svc.Delete(ctx, admin, old.ID))
		}()
		var fresh File
		go func() {
			defer wg.Done()
			var err error
			fresh, err = env.svc.Upload(ctx, UploadInput{Filename: "b.txt", Content: strings.NewReader("hello")})
			assert.NoError(t, err)
		}()
		wg.Wait()

		require.True(t, env.blobExists(t, fresh.StoredRelPath), "record %d points at a deleted blob", fresh.ID)
		require.NoError(t, env.svc.Delete(ctx, admin, fresh.ID))
	}
}
