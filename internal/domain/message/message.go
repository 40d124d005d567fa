// Package message provides chat message payloads and delivery failure classes.
package message

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
)

// Delivery failures that make further edits of a message futile.
var (
	ErrUnknownMessage     = errors.New("unknown message")
	ErrUnknownChannel     = errors.New("unknown channel")
	ErrMissingAccess      = errors.New("missing access")
	ErrMissingPermissions = errors.New("missing permissions")
)

// IsPermanent reports whether err is a delivery failure that retrying cannot fix.
func IsPermanent(err error) bool {
	return errors.IsAny(err, ErrUnknownMessage, ErrUnknownChannel, ErrMissingAccess, ErrMissingPermissions)
}

// Location identifies a posted message.
type Location struct {
	ChannelID snowflake.ID
	MessageID snowflake.ID
}

// Payload is the opaque content of a chat message.
type Payload struct {
	Content string
	Embeds  []Embed
}

// Embed is a rich block attached to a message.
type Embed struct {
	Title        string
	URL          string
	Description  string
	Color        int
	AuthorName   string
	AuthorIcon   string
	ThumbnailURL string
	FooterText   string
	FooterIcon   string
}

// FilterEveryone neutralises mass mentions in user-provided text.
func FilterEveryone(s string) string {
	s = strings.ReplaceAll(s, "@everyone", "@\u0435veryone")
	s = strings.ReplaceAll(s, "@here", "@h\u0435re")
	return s
}
