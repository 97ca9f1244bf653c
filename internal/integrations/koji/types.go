package koji

import (
	"fmt"
	"sync/atomic"
)

// Session is an authenticated Koji hub session.
type Session struct {
	ID      int
	Key     string
	User    *UserInfo
	callnum atomic.Int64
}

// nextCall returns the call number for the next session bound request.
func (s *Session) nextCall() int64 {
	return s.callnum.Add(1) - 1
}

// UserInfo describes the user a session is logged in as.
type UserInfo struct {
	ID           int
	Name         string
	KrbPrincipal string
}

// BuildInfo is the subset of Koji build information causeway reads.
type BuildInfo struct {
	ID          int
	PackageID   int
	PackageName string
	Name        string
	Version     string
	Release     string
	NVR         string
	State       int
	OwnerName   string
	Extra       map[string]any
}

// TagInfo describes a Koji tag.
type TagInfo struct {
	ID     int
	Name   string
	Arches string
	Locked bool
}

// Fault is an XML-RPC fault returned by the hub.
type Fault struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (f *Fault) Error() string {
	return fmt.Sprintf("koji fault %d: %s", f.Code, f.Message)
}

// UploadError describes a file that could not be uploaded.
type UploadError struct {
	Path    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %s failed: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *UploadError) Unwrap() error {
	return e.Err
}

// ImportResult is what a content generator import produced.
type ImportResult struct {
	// BuildInfo is nil when the hub did not create a build.
	BuildInfo *BuildInfo
	// UploadErrors is keyed by file path.
	UploadErrors map[string]*UploadError
}
