package models

import "time"

// NotificationDraft is the canonical payload handed to the delivery
// abstraction. It is never emitted with both Title and Body empty.
type NotificationDraft struct {
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Attachments []string `json:"attachments,omitempty"`
	PrimaryLink string   `json:"primary_link,omitempty"`
}

// MediaAsset records one resolved media reference. There is at most one
// stored copy per distinct RemoteRef; the cache is never evicted.
type MediaAsset struct {
	RemoteRef    string    `json:"remoteRef"`
	ResolvedURL  string    `json:"resolvedUrl"`
	LocalPath    string    `json:"localPath"`
	PublicLink   string    `json:"publicLink"`
	ContentType  string    `json:"contentType"`
	Size         int64     `json:"size"`
	DownloadedAt time.Time `json:"downloadedAt"`
}
