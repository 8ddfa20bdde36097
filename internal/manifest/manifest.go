// Package manifest fetches and parses DASH MPD documents, exposing the video
// representations a client can switch between during playback.
package manifest

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Representation is a single video rendition advertised by the manifest.
type Representation struct {
	ID        string
	Bandwidth int64
	Width     int
	Height    int
	Codecs    string
}

// Document is the subset of an MPD we act on.
type Document struct {
	Representations []Representation
}

type mpd struct {
	XMLName xml.Name    `xml:"MPD"`
	Periods []mpdPeriod `xml:"Period"`
}

type mpdPeriod struct {
	AdaptationSets []mpdAdaptationSet `xml:"AdaptationSet"`
}

type mpdAdaptationSet struct {
	MimeType        string              `xml:"mimeType,attr"`
	ContentType     string              `xml:"contentType,attr"`
	Representations []mpdRepresentation `xml:"Representation"`
}

type mpdRepresentation struct {
	ID        string `xml:"id,attr"`
	Bandwidth int64  `xml:"bandwidth,attr"`
	Width     int    `xml:"width,attr"`
	Height    int    `xml:"height,attr"`
	Codecs    string `xml:"codecs,attr"`
	MimeType  string `xml:"mimeType,attr"`
}

// Parse decodes an MPD document and collects its video representations
// sorted by descending bandwidth. The sort is stable so representations
// sharing a bandwidth keep their manifest order.
func Parse(data []byte) (*Document, error) {
	var doc mpd
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse mpd: %w", err)
	}

	var reps []Representation
	for _, period := range doc.Periods {
		for _, set := range period.AdaptationSets {
			for _, rep := range set.Representations {
				if !isVideo(set, rep) {
					continue
				}
				reps = append(reps, Representation{
					ID:        rep.ID,
					Bandwidth: rep.Bandwidth,
					Width:     rep.Width,
					Height:    rep.Height,
					Codecs:    rep.Codecs,
				})
			}
		}
	}
	if len(reps) == 0 {
		return nil, fmt.Errorf("manifest has no video representations")
	}

	sort.SliceStable(reps, func(i, j int) bool {
		return reps[i].Bandwidth > reps[j].Bandwidth
	})
	return &Document{Representations: reps}, nil
}

// isVideo decides whether a representation carries video. The mime type may
// live on the adaptation set or be overridden per representation.
func isVideo(set mpdAdaptationSet, rep mpdRepresentation) bool {
	mime := rep.MimeType
	if mime == "" {
		mime = set.MimeType
	}
	if mime != "" {
		return strings.HasPrefix(strings.ToLower(mime), "video/")
	}
	return strings.EqualFold(set.ContentType, "video")
}

// StatusError reports a manifest origin that answered with a non-200 status.
// Callers that surface the failure over HTTP can forward the origin's code.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch manifest: unexpected status %s", e.Status)
}

// Fetch retrieves the manifest document at url. Callers own timeout policy
// through the context.
func Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build manifest request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read manifest body: %w", err)
	}
	return body, nil
}

// FetchWithTimeout is Fetch with an explicit deadline, for callers without a
// scoped context of their own.
func FetchWithTimeout(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return Fetch(ctx, url)
}
