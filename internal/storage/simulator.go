package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Simulator stands in for the real bucket when R2 is not configured.
// It returns deterministic URLs so the rest of the pipeline behaves the
// same either way.
type Simulator struct {
	bucket   string
	endpoint string
}

func NewSimulator(bucket, endpoint string) *Simulator {
	return &Simulator{
		bucket:   strings.TrimSpace(bucket),
		endpoint: strings.TrimSpace(endpoint),
	}
}

func (s *Simulator) ArchiveImage(msgID, picURL string) (string, error) {
	if picURL == "" {
		return "", fmt.Errorf("empty picture url")
	}

	sum := sha256.Sum256([]byte(msgID + ":" + picURL))
	key := hex.EncodeToString(sum[:])

	ep := s.endpoint
	if ep == "" {
		ep = "https://r2.example.invalid"
	}
	bucket := s.bucket
	if bucket == "" {
		bucket = "wechat-relay"
	}

	return fmt.Sprintf("%s/%s/media/%s.png", strings.TrimRight(ep, "/"), bucket, key), nil
}
