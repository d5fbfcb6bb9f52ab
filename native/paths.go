package native

import (
	"os"
	"runtime"

	"github.com/h2gis/h2gis-go/errors"
)

// Environment variables consulted when no explicit library path is
// configured, in priority order.
const (
	EnvLibraryPath       = "H2GIS_NATIVE_LIB"
	EnvLibraryPathLegacy = "H2GIS_LIBRARY"
)

// DefaultFallbackPaths returns the platform-specific candidate
// locations probed when neither configuration nor environment names a
// library. Relative entries resolve against the working directory.
func DefaultFallbackPaths() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{"h2gis.dll"}
	case "darwin":
		return []string{
			"libh2gis.dylib",
			"/usr/local/lib/libh2gis.dylib",
			"/opt/homebrew/lib/libh2gis.dylib",
		}
	default:
		return []string{
			"libh2gis.so",
			"/usr/lib/libh2gis.so",
			"/usr/local/lib/libh2gis.so",
		}
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// resolveLibraryPath picks the library to load: an explicit path wins,
// then the environment, then the first fallback candidate that exists
// on disk. An explicit or environment path is returned as-is so the
// loader reports the real open error for it.
func resolveLibraryPath(explicit string, fallbacks []string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if p := os.Getenv(EnvLibraryPath); p != "" {
		return p, nil
	}
	if p := os.Getenv(EnvLibraryPathLegacy); p != "" {
		return p, nil
	}

	if len(fallbacks) == 0 {
		fallbacks = DefaultFallbackPaths()
	}
	for _, p := range fallbacks {
		if fileExists(p) {
			return p, nil
		}
	}

	return "", errors.New(errors.PhaseLoad, errors.KindLibraryNotFound).
		Detail("no H2GIS library found; set %s or install one of %d known locations",
			EnvLibraryPath, len(fallbacks)).
		Build()
}
