// Package session provides the SessionStore adapters: an in-process
// store backed by the TTL cache and a Redis store for multi-instance
// deployments. Both keep sessions as JSON so every Load hands out an
// independent copy.
package session

import (
	"encoding/json"
	"fmt"

	chatdomain "github.com/boddenberg/sellernotes-bot-go/internal/chat/domain"
)

func encode(sess *chatdomain.Session) ([]byte, error) {
	b, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", sess.Key, err)
	}
	return b, nil
}

func decode(key string, b []byte) (*chatdomain.Session, error) {
	var sess chatdomain.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", key, err)
	}
	return &sess, nil
}
