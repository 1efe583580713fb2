package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/emberhold/apiserver/internal/storage"
)

const maxAvatarBytes = 8 << 20

// AvatarService mirrors provider avatar images into the configured object
// store so the site does not hotlink provider CDNs. Without a backend the
// provider URL is used as-is.
type AvatarService struct {
	objects       storage.ObjectStorage
	publicBaseURL string
	httpClient    *http.Client
}

func NewAvatarService(objects storage.ObjectStorage, publicBaseURL string) *AvatarService {
	return &AvatarService{
		objects:       objects,
		publicBaseURL: publicBaseURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Mirror downloads sourceURL and stores it under the user's key, returning
// the serving URL. Any failure falls back to the source URL; an avatar is
// never worth failing a login over.
func (s *AvatarService) Mirror(ctx context.Context, userID, sourceURL string) string {
	if s == nil || s.objects == nil || sourceURL == "" {
		return sourceURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return sourceURL
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return sourceURL
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return sourceURL
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAvatarBytes))
	if err != nil || len(data) == 0 {
		return sourceURL
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}

	key := fmt.Sprintf("avatars/%s", userID)
	if err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return sourceURL
	}
	return s.publicBaseURL + "/" + key
}
