package models

import "time"

// UserRecord describes the owner of a fetched photo
type UserRecord struct {
	Name                *string `json:"name,omitempty"`
	ProfileThumbnailURL *string `json:"profile_thumbnail_url,omitempty"`
}

// PhotoRecord is one photo returned by the photo API
type PhotoRecord struct {
	Width        int         `json:"width"`
	Height       int         `json:"height"`
	Description  *string     `json:"description,omitempty"`
	ThumbnailURL *string     `json:"thumbnail_url,omitempty"`
	RegularURL   *string     `json:"regular_url,omitempty"`
	FullURL      *string     `json:"full_url,omitempty"`
	Owner        *UserRecord `json:"owner,omitempty"`
}

// FetchKind is the tag of a FetchState
type FetchKind string

const (
	FetchIdle    FetchKind = "idle"
	FetchLoading FetchKind = "loading"
	FetchLoaded  FetchKind = "loaded"
	FetchFailed  FetchKind = "failed"
)

// FetchState is the photo list controller's view of the current fetch.
// Photos is only meaningful for FetchLoaded, Reason only for FetchFailed.
type FetchState struct {
	Kind   FetchKind     `json:"kind"`
	Query  string        `json:"query"`
	Photos []PhotoRecord `json:"photos"`
	Reason string        `json:"reason,omitempty"`
}

// PersistedImage is an entry of the shared image store
type PersistedImage struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	MimeType    string    `json:"mime_type"`
	Size        int64     `json:"size"`
	Pending     bool      `json:"pending"`
	CreatedAt   time.Time `json:"created_at"`
}

// SaveState is the stage of a single save operation
type SaveState string

const (
	SaveIdle        SaveState = "idle"
	SaveConfirming  SaveState = "confirming"
	SaveDownloading SaveState = "downloading"
	SaveWriting     SaveState = "writing"
	SaveFinalizing  SaveState = "finalizing"
	SaveDone        SaveState = "done"
	SaveFailed      SaveState = "failed"
)

// SaveOperation tracks one user-confirmed save of a photo
type SaveOperation struct {
	ID               string          `json:"id"`
	Photo            PhotoRecord     `json:"photo"`
	State            SaveState       `json:"state"`
	Image            *PersistedImage `json:"image,omitempty"`
	Error            string          `json:"error,omitempty"`
	WallpaperOffered bool            `json:"wallpaper_offered"`
	CreatedAt        time.Time       `json:"created_at"`
}
