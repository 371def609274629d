package models

import "errors"

var (
	// ErrNetwork covers transport failures and non-success responses
	ErrNetwork = errors.New("network error")
	// ErrDecode covers malformed response bodies and undecodable image bytes
	ErrDecode = errors.New("decode error")
	// ErrPermissionDenied is returned when writing to the image store is not permitted
	ErrPermissionDenied = errors.New("storage permission denied")
	// ErrWrite covers image store insert and stream failures
	ErrWrite = errors.New("write error")
	// ErrWallpaper is returned when the platform refuses to set the wallpaper
	ErrWallpaper = errors.New("wallpaper error")
	// ErrNotFound is returned for unknown sessions, saves and images
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a save operation is driven out of order
	ErrInvalidTransition = errors.New("invalid state transition")
)
