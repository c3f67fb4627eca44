package osrelease

type OsVersion struct {
	NAME       string `json:"name"`
	OID        string `json:"oid"`
	VERSION    string `json:"version"`
	VERSION_ID string `json:"version_id"`
	CODENAME   string `json:"codename"`
}

// KernelVersion is what the running kernel tells about itself.
// Package is the distribution package version when it is known,
// Release the `uname -r` value without flavour or architecture.
type KernelVersion struct {
	Release string
	Package string
	Flavour string
}

// Version prefers the package version, which is what distributions
// publish fixes against.
func (k KernelVersion) Version() string {
	if k.Package != "" {
		return k.Package
	}
	return k.Release
}
