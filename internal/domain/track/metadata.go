package track

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
)

// Empty is the metadata attached to system and autoplay tracks.
var Empty = RequestMetadata{}

// youtubeTimestamp matches a youtube link with a t= parameter. The list= exclusion
// is checked separately on the remainder after t=.
var youtubeTimestamp = regexp.MustCompile(`youtu(?:\.be|be\..+)/.*\?.*t=([\dhms]+)`)

// RequestMetadata records who requested a track and what they asked for.
// The zero value equals Empty.
type RequestMetadata struct {
	User        *UserInfo    `json:"user"`
	RequestInfo *RequestInfo `json:"requestInfo"`
}

// UserInfo identifies the requesting user.
type UserInfo struct {
	ID       snowflake.ID `json:"id"`
	Username string       `json:"username"`
	Discrim  string       `json:"discrim"`
	Avatar   string       `json:"avatar"`
}

// RequestInfo holds the original query and the resolved URL.
type RequestInfo struct {
	Query          string `json:"query"`
	URL            string `json:"url"`
	StartTimestamp int64  `json:"startTimestamp"` // Milliseconds
}

// NewRequestMetadata builds metadata for a user request.
func NewRequestMetadata(user *UserInfo, info *RequestInfo) RequestMetadata {
	return RequestMetadata{User: user, RequestInfo: info}
}

// NewRequestInfo builds request info. A zero startTimestamp is filled from a youtube
// t= parameter in the query when present.
func NewRequestInfo(query, url string, startTimestamp int64) *RequestInfo {
	if startTimestamp == 0 && query != "" {
		startTimestamp = timestampFromQuery(query)
	}
	return &RequestInfo{
		Query:          query,
		URL:            url,
		StartTimestamp: startTimestamp,
	}
}

// Owner returns the requesting user's id, or 0 when the track has no owner.
func (m RequestMetadata) Owner() snowflake.ID {
	if m.User == nil {
		return 0
	}
	return m.User.ID
}

// IsEmpty reports whether the metadata carries no requester and no request info.
func (m RequestMetadata) IsEmpty() bool {
	return m.User == nil && m.RequestInfo == nil
}

// StartTimestamp returns the requested start offset in milliseconds.
func (m RequestMetadata) StartTimestamp() int64 {
	if m.RequestInfo == nil {
		return 0
	}
	return m.RequestInfo.StartTimestamp
}

// String returns the JSON form of the metadata.
func (m RequestMetadata) String() string {
	data, err := json.Marshal(m)
	if err != nil {
		return `{"user":null,"requestInfo":null}`
	}
	return string(data)
}

// ParseRequestMetadata decodes metadata previously produced by String.
func ParseRequestMetadata(s string) (RequestMetadata, error) {
	var m RequestMetadata
	if strings.TrimSpace(s) == "" {
		return Empty, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return Empty, errors.Wrap(err, "failed to parse request metadata")
	}
	return m, nil
}

// UnmarshalJSON applies the same timestamp extraction as NewRequestInfo when the
// encoded startTimestamp is missing, null or zero.
func (r *RequestInfo) UnmarshalJSON(data []byte) error {
	var raw struct {
		Query          string `json:"query"`
		URL            string `json:"url"`
		StartTimestamp *int64 `json:"startTimestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var ts int64
	if raw.StartTimestamp != nil {
		ts = *raw.StartTimestamp
	}
	*r = *NewRequestInfo(raw.Query, raw.URL, ts)
	return nil
}

func timestampFromQuery(query string) int64 {
	loc := youtubeTimestamp.FindStringSubmatchIndex(query)
	if loc == nil {
		return 0
	}
	// loc[2] is the start of the captured value, two bytes after "t=".
	if strings.Contains(query[loc[2]-2:], "list=") {
		return 0
	}
	return ParseUnitTime(query[loc[2]:loc[3]])
}
