package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Aygren/balendip-sub000/internal/domain/model"
)

// tokenPayload is the serialized form of a page token. It carries the
// last-seen sort key and the fingerprint of the filter it was issued for.
type tokenPayload struct {
	Filter    string `json:"f"`
	Date      string `json:"d"`
	CreatedAt int64  `json:"c"`
	ID        string `json:"i"`
}

// EncodeToken builds the opaque continuation token for the page ending at
// cursor under filter.
func EncodeToken(filter model.EventFilter, cursor model.Cursor) string {
	raw, _ := json.Marshal(tokenPayload{
		Filter:    filter.Fingerprint(),
		Date:      cursor.Date,
		CreatedAt: cursor.CreatedAt.UnixNano(),
		ID:        cursor.ID,
	})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeToken parses a token and checks it was issued for filter. An empty
// token decodes to a nil cursor (first page).
func DecodeToken(filter model.EventFilter, token string) (*model.Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	var p tokenPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if p.ID == "" || p.Date == "" {
		return nil, ErrInvalidToken
	}
	if p.Filter != filter.Fingerprint() {
		return nil, ErrTokenMismatch
	}
	return &model.Cursor{
		Date:      p.Date,
		CreatedAt: time.Unix(0, p.CreatedAt).UTC(),
		ID:        p.ID,
	}, nil
}
