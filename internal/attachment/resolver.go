// Package attachment downloads and encodes image attachments referenced
// by inbound messages.
package attachment

import (
	"context"
	"encoding/base64"
	"log/slog"

	"relaybot/internal/domain"
)

// supportedTypes are the image MIME types vision backends accept.
var supportedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// IsSupportedType reports whether a declared MIME type is an image the
// pipeline can forward to a vision backend.
func IsSupportedType(mimeType string) bool {
	return supportedTypes[mimeType]
}

// Resolver downloads message attachments through the chat platform's
// authenticated fetcher and base64-encodes them.
type Resolver struct {
	fetcher domain.FileFetcher
	logger  *slog.Logger
}

func NewResolver(fetcher domain.FileFetcher, logger *slog.Logger) *Resolver {
	return &Resolver{fetcher: fetcher, logger: logger}
}

// Resolve downloads and encodes every supported image attachment.
// It fails open: an attachment whose type is unsupported or whose
// download fails is dropped with a warning, never aborting the message.
// Raw bytes are released as soon as they are encoded.
func (r *Resolver) Resolve(ctx context.Context, atts []domain.Attachment) []domain.ResolvedImage {
	var images []domain.ResolvedImage
	for _, att := range atts {
		if !IsSupportedType(att.MIMEType) {
			r.logger.Warn("skipping unsupported attachment",
				"filename", att.Filename,
				"mime_type", att.MIMEType,
			)
			continue
		}
		data, err := r.fetcher.DownloadFile(ctx, att.URL)
		if err != nil || len(data) == 0 {
			r.logger.Warn("attachment download failed",
				"filename", att.Filename,
				"err", err,
			)
			continue
		}
		images = append(images, domain.ResolvedImage{
			MIMEType: att.MIMEType,
			Base64:   base64.StdEncoding.EncodeToString(data),
			Filename: att.Filename,
		})
		r.logger.Debug("downloaded image", "filename", att.Filename, "mime_type", att.MIMEType, "bytes", len(data))
	}
	return images
}
