package inference

import (
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// SharedLibPathEnv overrides the ONNX Runtime shared library location.
const SharedLibPathEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

var (
	envOnce sync.Once
	envErr  error
)

// GetSharedLibPath returns the path to the shared library for the current platform.
//
// Returns:
//   - string: The path to the shared library, or "" if the platform is unsupported.
func GetSharedLibPath() string {
	if p := os.Getenv(SharedLibPathEnv); p != "" {
		return p
	}
	switch runtime.GOOS {
	case "windows":
		return "./third_party/onnxruntime.dll"
	case "darwin":
		return "./third_party/libonnxruntime.1.21.0.dylib"
	case "linux":
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so"
		}
		return "./third_party/onnxruntime.so"
	}
	return ""
}

// InitializeEnvironment loads the native runtime once per process.
//
// Later calls return the result of the first one.
//
// Arguments:
//   - libPath: Shared library location; "" uses GetSharedLibPath.
//
// Returns:
//   - error: If the library is missing or fails to initialize.
func InitializeEnvironment(libPath string) error {
	envOnce.Do(func() {
		if libPath == "" {
			libPath = GetSharedLibPath()
		}
		if libPath == "" {
			envErr = errors.Errorf("no ONNX Runtime library known for %s/%s, set %s",
				runtime.GOOS, runtime.GOARCH, SharedLibPathEnv)
			return
		}
		if _, err := os.Stat(libPath); err != nil {
			envErr = errors.Wrapf(err, "ONNX Runtime library not found at %s", libPath)
			return
		}
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			envErr = errors.Wrap(err, "error initializing ORT environment")
		}
	})
	return envErr
}
