package kvstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cuemby/milli-core/pkg/apperr"
)

// EngineVersion is the current on-disk format version this build writes and
// reads. MinUpgradeableVersion is the oldest VERSION file this build will
// upgrade in place rather than refuse outright (§6).
var (
	EngineVersion         = Version{Major: 1, Minor: 0, Patch: 0}
	MinUpgradeableVersion = Version{Major: 0, Minor: 9, Patch: 0}
	versionFileName       = "VERSION"
	instanceUIDFileName   = "instance-uid"
)

// Version is a plain MAJOR.MINOR.PATCH triple, the exact ASCII contract of
// §6's VERSION file.
type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

func (v Version) cmp(o Version) int {
	switch {
	case v.Major != o.Major:
		return v.Major - o.Major
	case v.Minor != o.Minor:
		return v.Minor - o.Minor
	default:
		return v.Patch - o.Patch
	}
}

func parseVersion(line string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(line), ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("expected MAJOR.MINOR.PATCH, got %q", line)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, fmt.Errorf("non-numeric version component %q", p)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// checkVersion enforces §6's VERSION contract: missing is a hard error
// whenever the database already has data on disk — a VERSION file is
// only ever fabricated on a genuine fresh create, mirroring
// meilisearch-types' split between get_version (which returns
// MissingVersionFile) and the explicitly-invoked
// create_current_version_file path used solely for brand-new databases.
// Newer-than-engine is a hard error, older-than-minimum is a hard error
// (requires dump/restore), and anything in between is an eligible
// in-place upgrade which simply rewrites the file to the current engine
// version (the codecs themselves are already compatible across this
// module's declared window; a real multi-format migrator is out of this
// core's scope per spec.md's non-goal on "schema migrations older than
// the declared compatibility window").
func checkVersion(dir string, dataFileExists bool) error {
	path := filepath.Join(dir, versionFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if dataFileExists {
			return apperr.Corruption(err, "VERSION file missing from existing database at %q", dir)
		}
		return writeVersion(path, EngineVersion)
	}
	if err != nil {
		return apperr.Internal(err, "read VERSION file")
	}

	on, err := parseVersion(string(data))
	if err != nil {
		return apperr.Corruption(err, "malformed VERSION file %q", path)
	}

	switch {
	case on.cmp(EngineVersion) == 0:
		return nil
	case on.cmp(EngineVersion) > 0:
		return apperr.Conflict("index was created by a newer engine (%s > %s)", on, EngineVersion)
	case on.cmp(MinUpgradeableVersion) < 0:
		return apperr.Conflict("index version %s predates the minimum upgradeable version %s; requires dump/restore", on, MinUpgradeableVersion)
	default:
		return writeVersion(path, EngineVersion)
	}
}

func writeVersion(path string, v Version) error {
	if err := os.WriteFile(path, []byte(v.String()+"\n"), 0o644); err != nil {
		return apperr.Internal(err, "write VERSION file")
	}
	return nil
}

// InstanceUID reads the optional instance-uid file, generating and
// persisting one on first use.
func InstanceUID(dir string, gen func() string) (string, error) {
	path := filepath.Join(dir, instanceUIDFileName)
	data, err := os.ReadFile(path)
	if err == nil {
		return strings.TrimSpace(string(data)), nil
	}
	if !os.IsNotExist(err) {
		return "", apperr.Internal(err, "read instance-uid")
	}
	uid := gen()
	if err := os.WriteFile(path, []byte(uid), 0o644); err != nil {
		return "", apperr.Internal(err, "write instance-uid")
	}
	return uid, nil
}
