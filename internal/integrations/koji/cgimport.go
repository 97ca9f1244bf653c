package koji

import (
	"context"
	"io"
)

// MetadataVersion is the content generator metadata format version.
const MetadataVersion = 0

// Import is the content generator metadata passed to CGImport.
type Import struct {
	MetadataVersion int              `json:"metadata_version"`
	Build           BuildDescription `json:"build"`
	Buildroots      []Buildroot      `json:"buildroots"`
	Outputs         []Output         `json:"outputs"`
}

// BuildDescription describes the build being imported.
type BuildDescription struct {
	Name      string         `json:"name"`
	Version   string         `json:"version"`
	Release   string         `json:"release"`
	Source    string         `json:"source"`
	StartTime int64          `json:"start_time"`
	EndTime   int64          `json:"end_time"`
	Owner     string         `json:"owner,omitempty"`
	Extra     map[string]any `json:"extra"`
}

// Buildroot describes the environment a build ran in.
type Buildroot struct {
	ID               int              `json:"id"`
	Host             BuildHost        `json:"host"`
	ContentGenerator ContentGenerator `json:"content_generator"`
	Container        BuildContainer   `json:"container"`
	Tools            []BuildTool      `json:"tools"`
	Components       []Component      `json:"components"`
	Extra            map[string]any   `json:"extra,omitempty"`
}

// BuildHost is the host a buildroot ran on.
type BuildHost struct {
	OS   string `json:"os"`
	Arch string `json:"arch"`
}

// ContentGenerator names the system that produced the build.
type ContentGenerator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// BuildContainer describes the container a buildroot ran in.
type BuildContainer struct {
	Type string `json:"type"`
	Arch string `json:"arch"`
}

// BuildTool is a tool present in the buildroot.
type BuildTool struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Component is something installed in the buildroot, usually a dependency.
type Component struct {
	Type         string `json:"type"`
	Filename     string `json:"filename"`
	Filesize     int64  `json:"filesize"`
	Checksum     string `json:"checksum"`
	ChecksumType string `json:"checksum_type"`
}

// Output is a file produced by the build.
type Output struct {
	BuildrootID  int            `json:"buildroot_id"`
	Filename     string         `json:"filename"`
	Relpath      string         `json:"relpath,omitempty"`
	Filesize     int64          `json:"filesize"`
	Arch         string         `json:"arch"`
	Checksum     string         `json:"checksum"`
	ChecksumType string         `json:"checksum_type"`
	Type         string         `json:"type"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// File is one file to upload with an import.
type File struct {
	// Path is relative to the upload directory.
	Path string
	Size int64
	Open func(ctx context.Context) (io.ReadCloser, error)
}

// FileSource supplies the files of an import.
type FileSource interface {
	// Files returns every file to upload.
	Files() []File
	// ArtifactID maps an uploaded file path back to the id of the
	// artifact it came from.
	ArtifactID(path string) string
}
