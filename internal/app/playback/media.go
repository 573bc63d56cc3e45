package playback

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// mediaIDLength is the fixed length of a YouTube video id.
const mediaIDLength = 11

var mediaURLPattern = regexp.MustCompile(`^.*((youtu.be/)|(v/)|(/u/\w/)|(embed/)|(watch\?))\??v?=?([^#&?]*).*`)

// ResolveMediaID extracts the video id from a watch, short-link, embed or
// /v/ URL. Returns false when no id of the expected length is found.
func ResolveMediaID(rawURL string) (string, bool) {
	m := mediaURLPattern.FindStringSubmatch(strings.TrimSpace(rawURL))
	if m == nil || len(m[7]) != mediaIDLength {
		return "", false
	}
	return m[7], true
}

// WatchURL returns the canonical watch URL for a media id.
func WatchURL(mediaID string) string {
	return "https://www.youtube.com/watch?v=" + mediaID
}

// FormatTime renders seconds as m:ss. Negative and NaN render as 0:00.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "0:00"
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
