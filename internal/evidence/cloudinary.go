package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type CloudinaryStore struct {
	cld     *cloudinary.Cloudinary
	folder  string
	timeout time.Duration
}

func NewCloudinaryStore(cloudinaryURL, folder string) (*CloudinaryStore, error) {
	if cloudinaryURL == "" {
		return nil, errors.New("cloudinary url is required")
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true
	return &CloudinaryStore{cld: cld, folder: folder, timeout: 30 * time.Second}, nil
}

// Upload stores the landing photo under a per-booking public ID. Uploading
// again for the same booking returns the existing asset.
func (s *CloudinaryStore) Upload(ctx context.Context, bookingID string, photo io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.cld.Upload.Upload(ctx, photo, uploader.UploadParams{
		PublicID:     fmt.Sprintf("landing_%s", bookingID),
		Folder:       s.folder,
		ResourceType: "image",
		Overwrite:    api.Bool(false),
		Tags:         []string{"landing", bookingID},
	})
	if err != nil {
		return "", fmt.Errorf("upload landing photo: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("upload landing photo: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}
