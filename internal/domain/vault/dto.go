package vault

import "time"

type FileResponse struct {
	ID            int64     `json:"id"`
	Filename      string    `json:"filename"`
	ContentType   string    `json:"content_type"`
	Size          int64     `json:"size"`
	SHA256        string    `json:"sha256"`
	MD5           string    `json:"md5"`
	UploadedAt    time.Time `json:"uploaded_at"`
	DownloadCount int64     `json:"download_count"`
}

// PreviewFlags tell the client which inline viewer fits the file.
type PreviewFlags struct {
	Kind    string `json:"kind"`
	IsImage bool   `json:"is_image"`
	IsText  bool   `json:"is_text"`
	IsAudio bool   `json:"is_audio"`
	IsVideo bool   `json:"is_video"`
}

type FileDetailResponse struct {
	FileResponse
	Preview PreviewFlags `json:"preview"`
}

type BulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

type BulkDeleteResponse struct {
	Deleted int `json:"deleted"`
}

func NewFileResponse(f File) FileResponse {
	return FileResponse{
		ID:            f.ID,
		Filename:      f.OriginalFilename,
		ContentType:   f.ContentType,
		Size:          f.Size,
		SHA256:        f.SHA256,
		MD5:           f.MD5,
		UploadedAt:    f.UploadedAt,
		DownloadCount: f.DownloadCount,
	}
}

func NewFileDetailResponse(f File) FileDetailResponse {
	kind := PreviewKind(f.ContentType)
	return FileDetailResponse{
		FileResponse: NewFileResponse(f),
		Preview: PreviewFlags{
			Kind:    kind,
			IsImage: kind == PreviewImage,
			IsText:  kind == PreviewText,
			IsAudio: kind == PreviewAudio,
			IsVideo: kind == PreviewVideo,
		},
	}
}
