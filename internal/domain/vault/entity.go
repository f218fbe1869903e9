package vault

import "time"

// File is one upload event. Several files may point at the same blob; the
// blob belongs to all of them and is reclaimed when the last one goes away.
type File struct {
	ID               int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OriginalFilename string    `gorm:"column:filename_original;not null" json:"filename"`
	StoredRelPath    string    `gorm:"column:stored_relpath;not null;index:idx_files_stored_relpath" json:"-"` // relative to the storage root
	ContentType      string    `gorm:"column:content_type" json:"content_type"`
	Size             int64     `gorm:"column:size;not null" json:"size"`
	SHA256           string    `gorm:"column:sha256;not null;index:idx_files_sha256" json:"sha256"`
	MD5              string    `gorm:"column:md5" json:"md5"` // display only
	UploadedAt       time.Time `gorm:"column:uploaded_at;not null;index:idx_files_uploaded_at" json:"uploaded_at"`
	DownloadCount    int64     `gorm:"column:download_count;not null;default:0" json:"download_count"`
}

func (File) TableName() string { return "files" }
