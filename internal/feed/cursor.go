package feed

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"

	id "crewpulse/pkg/domain"
	dErrors "crewpulse/pkg/domain-errors"
)

// Cursor marks a position in the newest-first feed ordering. Posts strictly
// older than (CreatedAt, PostID) belong to the next page; the post id breaks
// ties between posts created in the same instant.
type Cursor struct {
	CreatedAt time.Time
	PostID    id.PostID
}

func (c Cursor) IsZero() bool { return c.CreatedAt.IsZero() }

// Encode renders the cursor as an opaque token for clients.
func (c Cursor) Encode() string {
	if c.IsZero() {
		return ""
	}
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.PostID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, dErrors.New(dErrors.CodeValidation, "malformed feed cursor")
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return Cursor{}, dErrors.New(dErrors.CodeValidation, "malformed feed cursor")
	}
	at, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return Cursor{}, dErrors.New(dErrors.CodeValidation, "malformed feed cursor")
	}
	raw2, err := uuid.Parse(parts[1])
	if err != nil {
		return Cursor{}, dErrors.New(dErrors.CodeValidation, "malformed feed cursor")
	}
	return Cursor{CreatedAt: at, PostID: id.PostID(raw2)}, nil
}

// Before reports whether the post sits strictly after the cursor in the
// newest-first ordering.
func (c Cursor) Before(p *Post) bool {
	if c.IsZero() {
		return true
	}
	if p.CreatedAt.Equal(c.CreatedAt) {
		return p.ID.String() < c.PostID.String()
	}
	return p.CreatedAt.Before(c.CreatedAt)
}
