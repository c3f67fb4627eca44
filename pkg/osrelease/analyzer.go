package osrelease

import (
	"regexp"
	"strings"
)

// Reference https://manpages.ubuntu.com/manpages/bionic/zh_TW/man5/os-release.5.html
var Paths = []string{"/etc/os-release", "/usr/lib/os-release", "/etc/centos-release"}

var (
	versionRegex  = regexp.MustCompile(`(\d+\.)?(\d+\.)?(\*|\d+)`)
	debianPackage = regexp.MustCompile(`Debian (\d\S*)`)
	ubuntuUpload  = regexp.MustCompile(`^#(\d+(?:~[\w.]+)?)-Ubuntu`)
	archSuffix    = regexp.MustCompile(`\.(x86_64|aarch64|i686|ppc64le|s390x)$`)
)

var distroNames = map[string]string{
	"debian": "Debian",
	"ubuntu": "Ubuntu",
	"centos": "CentOS",
	"rhel":   "RHEL",
	"ol":     "Oracle",
	"amzn":   "Amazon",
	"fedora": "Fedora",
	"alpine": "Alpine",
	"photon": "Photon",
}

func parse(config, path string) map[string]string {
	lines := strings.Split(config, "\n")
	m := make(map[string]string)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}

		switch path {
		case "/etc/centos-release":
			m["NAME"] = "CentOS Linux"
			m["ID"] = "centos"
			m["VERSION_ID"] = versionRegex.FindString(line)

		default:
			index := strings.Index(line, "=")
			if index > -1 {
				m[line[:index]] = strings.Trim(line[index+1:], `"'`)
			}
		}
	}
	return m
}

// GetOs reads the content of one of Paths.
func GetOs(config, path string) *OsVersion {
	kv := parse(config, path)
	os := &OsVersion{
		NAME: "Linux",
		OID:  "linux",
	}
	for k, v := range kv {
		switch k {
		case "NAME":
			os.NAME = v
		case "ID":
			os.OID = v
		case "VERSION":
			os.VERSION = v
		case "VERSION_ID":
			os.VERSION_ID = v
		case "VERSION_CODENAME":
			os.CODENAME = v
		}
	}
	return os
}

// Key is the identifier patch tables are keyed by, e.g. "Debian 11"
// or "Ubuntu 21.10". Debian testing and sid carry no VERSION_ID and
// map to "Debian unstable". An empty key means the release is unknown.
func (o OsVersion) Key() string {
	name, ok := distroNames[strings.ToLower(o.OID)]
	if !ok {
		if o.OID == "" || o.OID == "linux" {
			return ""
		}
		name = strings.ToUpper(o.OID[:1]) + o.OID[1:]
	}

	if o.VERSION_ID == "" {
		if name == "Debian" {
			return "Debian unstable"
		}
		return ""
	}

	return name + " " + o.VERSION_ID
}

// KernelParse takes the release out of /proc/version:
// "Linux version 5.10.0-18-amd64 (debian-kernel@...) ..." gives "5.10.0-18-amd64".
func KernelParse(kernel string) string {
	value := strings.Fields(kernel)
	if len(value) < 3 || value[0] != "Linux" || value[1] != "version" {
		return ""
	}
	return value[2]
}

// ParseRelease splits `uname -r` into release and flavour:
// "5.13.0-1017-aws" gives ("5.13.0-1017", "aws"),
// "4.18.0-348.20.1.el8_5.x86_64" gives ("4.18.0-348.20.1.el8_5", "").
func ParseRelease(release string) KernelVersion {
	release = strings.TrimSpace(release)
	release = archSuffix.ReplaceAllString(release, "")

	k := KernelVersion{Release: release}

	index := strings.LastIndex(release, "-")
	if index < 1 || index == len(release)-1 {
		return k
	}

	last := release[index+1:]
	if last[0] < '0' || last[0] > '9' {
		k.Release = release[:index]
		k.Flavour = last
	}

	return k
}

// ParseVersionSignature reads Ubuntu's /proc/version_signature,
// "Ubuntu 5.13.0-35.40-generic 5.13.19".
func ParseVersionSignature(signature string) (KernelVersion, bool) {
	fields := strings.Fields(signature)
	if len(fields) < 2 || fields[0] != "Ubuntu" {
		return KernelVersion{}, false
	}

	k := ParseRelease(fields[1])
	k.Package = k.Release
	if len(fields) > 2 {
		k.Release = fields[2]
	}

	return k, true
}

// ParseUnameVersion finds the Debian package version in `uname -v`,
// "#1 SMP Debian 5.10.140-1 (2022-09-02)".
func ParseUnameVersion(v string) (string, bool) {
	match := debianPackage.FindStringSubmatch(v)
	if len(match) < 2 {
		return "", false
	}
	return match[1], true
}

// ParseUbuntuUnameVersion rebuilds the Ubuntu package version from the
// ABI release and the upload number in `uname -v`:
// "5.13.0-35" with "#40-Ubuntu SMP ..." gives "5.13.0-35.40".
func ParseUbuntuUnameVersion(release, v string) (string, bool) {
	if !strings.Contains(release, "-") {
		return "", false
	}

	match := ubuntuUpload.FindStringSubmatch(strings.TrimSpace(v))
	if len(match) < 2 {
		return "", false
	}
	return release + "." + match[1], true
}

// PackagedKernel reports whether the distribution publishes kernel fixes
// against package versions that `uname -r` alone does not carry.
func (o OsVersion) PackagedKernel() bool {
	switch strings.ToLower(o.OID) {
	case "debian", "ubuntu":
		return true
	}
	return false
}

// Keys lists the lookup keys from the most to the least specific,
// "RHEL 7.9" is also looked up as "RHEL 7".
func (o OsVersion) Keys() []string {
	key := o.Key()
	if key == "" {
		return nil
	}

	keys := []string{key}
	if index := strings.LastIndex(key, " "); index > 0 {
		major := strings.SplitN(key[index+1:], ".", 2)[0]
		if short := key[:index+1] + major; short != key {
			keys = append(keys, short)
		}
	}

	return keys
}
