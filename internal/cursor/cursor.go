// Package cursor encodes pagination positions as opaque URL-safe tokens.
//
// A token is the base64url encoding of "<millis>,<id>". The empty token
// denotes the start of the listing.
package cursor

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/dvloznov/txledger/internal/apperr"
	"github.com/dvloznov/txledger/internal/domain"
)

const separator = ","

// Encode returns the token for the position (millis, id).
func Encode(millis int64, id string) string {
	raw := strconv.FormatInt(millis, 10) + separator + id
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// EncodeRecord returns the token positioned at tx, or "" when tx is nil.
func EncodeRecord(tx *domain.Transaction) string {
	if tx == nil {
		return ""
	}
	key := tx.SortKey()
	return Encode(key.Millis, key.ID)
}

// Decode parses a token produced by Encode. An empty token yields the
// initial cursor. Unpadded input is accepted.
func Decode(token string) (domain.Cursor, error) {
	if token == "" {
		return domain.InitialCursor, nil
	}

	raw, err := decodeBase64(token)
	if err != nil {
		return domain.Cursor{}, apperr.Wrap(apperr.Cursor, err, "cursor is not valid base64url")
	}

	parts := strings.SplitN(string(raw), separator, 2)
	if len(parts) != 2 {
		return domain.Cursor{}, apperr.New(apperr.Cursor, "cursor must have two fields")
	}

	millis, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return domain.Cursor{}, apperr.Wrap(apperr.Cursor, err, "cursor timestamp is not an integer")
	}

	return domain.Cursor{Millis: millis, ID: parts[1]}, nil
}

func decodeBase64(token string) ([]byte, error) {
	if strings.HasSuffix(token, "=") {
		return base64.URLEncoding.DecodeString(token)
	}
	return base64.RawURLEncoding.DecodeString(token)
}
