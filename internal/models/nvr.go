package models

import (
	"fmt"
	"strings"
)

// NVR identifies a Koji build by package name, version and release.
type NVR struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Release string `json:"release"`
}

// NewNVR creates an NVR from its three parts.
func NewNVR(name, version, release string) NVR {
	return NVR{Name: name, Version: version, Release: release}
}

// KojiName returns the package name as Koji stores it. Maven style
// "group:artifact" names are not valid Koji package names.
func (n NVR) KojiName() string {
	return strings.ReplaceAll(n.Name, ":", "-")
}

// String renders the NVR in Koji's "name-version-release" form.
func (n NVR) String() string {
	return fmt.Sprintf("%s-%s-%s", n.KojiName(), n.Version, n.Release)
}

// Validate checks that every part of the NVR is set.
func (n NVR) Validate() error {
	switch {
	case n.Name == "":
		return fmt.Errorf("nvr name is required")
	case n.Version == "":
		return fmt.Errorf("nvr version is required")
	case n.Release == "":
		return fmt.Errorf("nvr release is required")
	}
	return nil
}
