package utils

import (
	"io"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

// PhotoMetadata carries the EXIF fields the upload intake records on a
// raw photo. TakenAt is the capture timestamp used for ordering.
type PhotoMetadata struct {
	TakenAt     *int64
	CameraMake  *string
	CameraModel *string
}

// helper to safely get a string tag, trimming null terminators
func getString(exifData *exif.Exif, tagName exif.FieldName) *string {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	// val string might have null chars at the end
	val := strings.Trim(strings.TrimRight(tag.String(), "\x00"), "\"")
	if val == "" {
		return nil
	}
	return &val
}

// ExtractPhotoMetadata pulls the capture timestamp and camera identity
// from EXIF data. Files without EXIF are common (screenshots, exports),
// so a missing or unreadable block yields an empty struct, never an error;
// ordering then falls back to the upload timestamp.
func ExtractPhotoMetadata(r io.Reader) *PhotoMetadata {
	meta := &PhotoMetadata{}

	exifData, err := exif.Decode(r)
	if err != nil {
		return meta
	}

	meta.CameraMake = getString(exifData, exif.Make)
	meta.CameraModel = getString(exifData, exif.Model)

	if dt, err := exifData.DateTime(); err == nil {
		ts := dt.Unix()
		meta.TakenAt = &ts
	}

	return meta
}
