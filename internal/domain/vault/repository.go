package vault

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Repository is the metadata catalog. Every mutating call commits on its own.
type Repository interface {
	Insert(ctx context.Context, f *File) (int64, error)
	List(ctx context.Context) ([]File, error)
	Get(ctx context.Context, id int64) (File, error)
	IncrementDownloadCount(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) (bool, error)
	DeleteMany(ctx context.Context, ids []int64) ([]File, error)
	CountByDigest(ctx context.Context, digest string) (int64, error)
	CountByStoredPath(ctx context.Context, relPath string) (int64, error)
}

type repository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db, now: time.Now}
}

// Migrate creates or updates the files table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&File{})
}

// Insert stamps UploadedAt, stores the row and returns the new id.
func (r *repository) Insert(ctx context.Context, f *File) (int64, error) {
	f.ID = 0
	f.DownloadCount = 0
	f.UploadedAt = r.now().UTC()
	if err := r.db.WithContext(ctx).Create(f).Error; err != nil {
		return 0, err
	}
	return f.ID, nil
}

// List returns newest uploads first; rows with equal timestamps are ordered
// by id, highest first.
func (r *repository) List(ctx context.Context) ([]File, error) {
	var files []File
	err := r.db.WithContext(ctx).
		Order("uploaded_at DESC").
		Order("id DESC").
		Find(&files).Error
	return files, err
}

func (r *repository) Get(ctx context.Context, id int64) (File, error) {
	var f File
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return File{}, ErrFileNotFound
	}
	return f, err
}

// IncrementDownloadCount bumps the counter. Unknown ids are ignored.
func (r *repository) IncrementDownloadCount(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&File{}).
		Where("id = ?", id).
		UpdateColumn("download_count", gorm.Expr("download_count + ?", 1)).Error
}

func (r *repository) Delete(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&File{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteMany removes every listed row that exists in one transaction and
// returns the rows it removed. Unknown ids are skipped.
func (r *repository) DeleteMany(ctx context.Context, ids []int64) ([]File, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var deleted []File
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []File
		if err := tx.Where("id IN ?", ids).Order("id").Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		found := make([]int64, 0, len(rows))
		for _, f := range rows {
			found = append(found, f.ID)
		}
		if err := tx.Where("id IN ?", found).Delete(&File{}).Error; err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (r *repository) CountByDigest(ctx context.Context, digest string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&File{}).Where("sha256 = ?", digest).Count(&n).Error
	return n, err
}

func (r *repository) CountByStoredPath(ctx context.Context, relPath string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&File{}).Where("stored_relpath = ?", relPath).Count(&n).Error
	return n, err
}
