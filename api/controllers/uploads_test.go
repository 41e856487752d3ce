package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minjaecho/defectwatch-backend/pkg/config"
)

func multipartImageRequest(t *testing.T, target, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func uploadConfig(t *testing.T) config.UploadConfig {
	t.Helper()
	return config.UploadConfig{
		DataDir:     t.TempDir(),
		ImagesDir:   "images",
		StaticMount: "/data",
		MaxUploadMB: 1,
	}
}

func TestUploadImageDevStoresFileAndReturnsMountURL(t *testing.T) {
	cfg := uploadConfig(t)
	req := multipartImageRequest(t, "/upload-img-dev", uploadFormField, "site.jpg", []byte("jpeg-bytes"))
	resp := httptest.NewRecorder()

	UploadImageDev(cfg, testLogger())(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	url := envelope.Data["url"]
	if !strings.HasPrefix(url, "/data/images/") || !strings.HasSuffix(url, ".jpg") {
		t.Fatalf("unexpected url %q", url)
	}

	stored := filepath.Join(cfg.DataDir, cfg.ImagesDir, filepath.Base(url))
	content, err := os.ReadFile(stored)
	if err != nil {
		t.Fatalf("stored file missing: %v", err)
	}
	if string(content) != "jpeg-bytes" {
		t.Fatalf("stored content mismatch: %q", content)
	}
}

func TestUploadImageDevRejectsBadUploads(t *testing.T) {
	cfg := uploadConfig(t)

	wrongField := multipartImageRequest(t, "/upload-img-dev", "attachment", "site.jpg", []byte("x"))
	resp := httptest.NewRecorder()
	UploadImageDev(cfg, testLogger())(resp, wrongField)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("wrong field: expected 400, got %d", resp.Code)
	}

	badExtension := multipartImageRequest(t, "/upload-img-dev", uploadFormField, "payload.exe", []byte("x"))
	resp = httptest.NewRecorder()
	UploadImageDev(cfg, testLogger())(resp, badExtension)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("bad extension: expected 400, got %d", resp.Code)
	}
}

type testUploader struct {
	name        string
	contentType string
	content     []byte
	url         string
	err         error
}

func (u *testUploader) Upload(ctx context.Context, objectName, contentType string, body io.Reader) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.name = objectName
	u.contentType = contentType
	content, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	u.content = content
	return u.url, nil
}

func TestUploadImageReturnsObjectURL(t *testing.T) {
	uploader := &testUploader{url: "https://storage.googleapis.com/bucket/upload/x.png"}
	req := multipartImageRequest(t, "/upload-img", uploadFormField, "site.png", []byte("png-bytes"))
	resp := httptest.NewRecorder()

	UploadImage(uploader, uploadConfig(t), testLogger())(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.HasSuffix(uploader.name, ".png") {
		t.Fatalf("object name must keep the extension: %q", uploader.name)
	}
	if uploader.contentType != "image/png" {
		t.Fatalf("content type mismatch: %q", uploader.contentType)
	}
	if string(uploader.content) != "png-bytes" {
		t.Fatalf("uploaded content mismatch: %q", uploader.content)
	}

	var envelope struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Data["url"] != uploader.url {
		t.Fatalf("public url not returned: %+v", envelope.Data)
	}
}

func TestUploadImageMapsStorageFailure(t *testing.T) {
	uploader := &testUploader{err: context.DeadlineExceeded}
	req := multipartImageRequest(t, "/upload-img", uploadFormField, "site.jpg", []byte("x"))
	resp := httptest.NewRecorder()

	UploadImage(uploader, uploadConfig(t), testLogger())(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", resp.Code, resp.Body.String())
	}
}
