package contract

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Domenick1991/artbooking/internal/service/booking"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryRenderer stores rendered contracts as raw Cloudinary assets.
type CloudinaryRenderer struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryRenderer(cloudName, apiKey, apiSecret, folder string) (*CloudinaryRenderer, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &CloudinaryRenderer{cld: cld, folder: folder}, nil
}

func (r *CloudinaryRenderer) Render(ctx context.Context, doc booking.ContractDocument) (string, error) {
	html, err := RenderHTML(doc)
	if err != nil {
		return "", err
	}

	result, err := r.cld.Upload.Upload(ctx, bytes.NewReader(html), uploader.UploadParams{
		PublicID:     doc.DocumentID + ".html",
		Folder:       r.folder,
		ResourceType: "raw",
		Overwrite:    api.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("upload contract %s: %w", doc.DocumentID, err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("upload contract %s: %s", doc.DocumentID, result.Error.Message)
	}
	if result.SecureURL == "" {
		return "", fmt.Errorf("upload contract %s: no url returned", doc.DocumentID)
	}
	return result.SecureURL, nil
}

var _ booking.ContractRenderer = (*CloudinaryRenderer)(nil)
