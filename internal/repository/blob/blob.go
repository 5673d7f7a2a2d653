// Package blob stores uploaded PDF bytes and resolves them by location URI.
package blob

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ErrNotFound signals a location with no object behind it.
var ErrNotFound = errors.New("blob not found")

// Location schemes.
const (
	SchemeS3   = "s3"
	SchemeGCS  = "gs"
	SchemeFile = "file"
)

// Location addresses one stored object: s3://bucket/key, gs://bucket/key or file:///abs/path.
type Location struct {
	Scheme string
	Bucket string
	Key    string
}

// String renders the location as a URI.
func (l Location) String() string {
	if l.Scheme == SchemeFile {
		return "file://" + l.Key
	}
	return l.Scheme + "://" + l.Bucket + "/" + l.Key
}

// ParseLocation parses a stored location URI.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parse location %q: %w", raw, err)
	}

	switch u.Scheme {
	case SchemeS3, SchemeGCS:
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, fmt.Errorf("location %q: bucket and key are required", raw)
		}
		return Location{Scheme: u.Scheme, Bucket: u.Host, Key: key}, nil
	case SchemeFile:
		if u.Host != "" || !path.IsAbs(u.Path) {
			return Location{}, fmt.Errorf("location %q: absolute file path required", raw)
		}
		return Location{Scheme: SchemeFile, Key: u.Path}, nil
	default:
		return Location{}, fmt.Errorf("location %q: unsupported scheme %q", raw, u.Scheme)
	}
}

// ObjectKey builds the storage key for an upload: {prefix}/{documentID}/{fileName}.
// The file name is reduced to its base and stripped of path separators.
func ObjectKey(prefix, documentID, fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "document.pdf"
	}
	return strings.TrimSuffix(path.Join(strings.Trim(prefix, "/"), documentID, base), "/")
}
