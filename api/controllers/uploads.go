package controllers

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/minjaecho/defectwatch-backend/api/responses"
	"github.com/minjaecho/defectwatch-backend/pkg/config"
	pkgerrors "github.com/minjaecho/defectwatch-backend/pkg/errors"
	"github.com/minjaecho/defectwatch-backend/pkg/logger"
)

const uploadFormField = "image"

// ObjectUploader stores an object and returns its public URL.
// Implemented by pkg/storage/gcs.
type ObjectUploader interface {
	Upload(ctx context.Context, objectName, contentType string, body io.Reader) (string, error)
}

var allowedImageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

func openUploadedImage(r *http.Request, maxUploadMB int) (multipart.File, string, error) {
	limit := int64(maxUploadMB) << 20
	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "multipart form required")
	}

	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("missing %q file field", uploadFormField))
	}
	if header.Size > limit {
		file.Close()
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("file exceeds %d MB limit", maxUploadMB))
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if _, ok := allowedImageExtensions[ext]; !ok {
		file.Close()
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "unsupported image extension")
	}
	return file, uuid.NewString() + ext, nil
}

func imageContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// UploadImageDev saves the image under the local data directory and
// returns the static-mount URL. Used by drones on closed test networks
// where object storage is unreachable.
func UploadImageDev(cfg config.UploadConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, name, err := openUploadedImage(r, cfg.MaxUploadMB)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer file.Close()

		dir := filepath.Join(cfg.DataDir, cfg.ImagesDir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating image directory"))
			return
		}

		dest, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating image file"))
			return
		}
		defer dest.Close()

		if _, err := io.Copy(dest, file); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "writing image file"))
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{
			"url": path.Join(cfg.StaticMount, cfg.ImagesDir, name),
		})
	}
}

// UploadImage stores the image in the object bucket and returns its
// public URL.
func UploadImage(uploader ObjectUploader, cfg config.UploadConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if uploader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "object storage unavailable"))
			return
		}

		file, name, err := openUploadedImage(r, cfg.MaxUploadMB)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer file.Close()

		url, err := uploader.Upload(r.Context(), name, imageContentType(name), file)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing image"))
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{"url": url})
	}
}
