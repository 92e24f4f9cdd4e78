package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
)

// UploadFile sends an archive as multipart field "file" and returns the
// upload id used to follow processing events.
func (c *Client) UploadFile(ctx context.Context, sessionID, name string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(name))
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing form: %w", err)
	}

	env, err := c.do(ctx, http.MethodPost, sessionPath(sessionID, "uploads"), nil, &buf, mw.FormDataContentType())
	if err != nil {
		return "", err
	}
	var out struct {
		UploadID string `json:"uploadId"`
	}
	if err := decodeData(env, &out); err != nil {
		return "", err
	}
	if out.UploadID == "" {
		return "", errors.New("upload response carried no upload id")
	}
	return out.UploadID, nil
}

// UploadEventsURL returns the event-stream URL for one upload.
func (c *Client) UploadEventsURL(sessionID, uploadID string) string {
	u := joinPath(c.eventsURL, sessionPath(sessionID, "uploads", url.PathEscape(uploadID), "events"))
	return u.String()
}
