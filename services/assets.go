package services

import (
	"fmt"
	"regexp"
	"strings"
)

// Asset is one uploaded file.
type Asset struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Empty reports whether no file was supplied.
func (a Asset) Empty() bool {
	return len(a.Data) == 0 && a.ContentType == "" && a.Filename == ""
}

var avatarContentTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
}

// EvidenceSpec pairs the upload field name with its key in evidence_urls.
type EvidenceSpec struct {
	Field string
	Key   string
}

// EvidenceAssets lists the required evidence uploads in upload order.
var EvidenceAssets = []EvidenceSpec{
	{Field: "soil_sample", Key: "soil"},
	{Field: "star_field", Key: "stars"},
	{Field: "flora_recording", Key: "flora"},
}

// EvidenceExtension picks the stored extension from a declared content
// type: video wins, then png, and everything else is stored as jpg.
func EvidenceExtension(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "video"):
		return "mp4"
	case strings.Contains(ct, "png"):
		return "png"
	default:
		return "jpg"
	}
}

func avatarKey(eventCode, participantID, role string) string {
	return fmt.Sprintf("avatars/%s/%s/%s.png", eventCode, participantID, role)
}

func evidenceKey(eventCode, participantID, field, ext string) string {
	return fmt.Sprintf("evidence/%s/%s/%s.%s", eventCode, participantID, field, ext)
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{2,30}$`)

// ValidUsername reports whether name is 2–30 letters, digits, '_' or '-'.
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}
