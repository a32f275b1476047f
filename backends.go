package fractal

import (
	"github.com/gogpu/fractal/backend"

	// Register the always-available backends.
	_ "github.com/gogpu/fractal/backend/opencl"
	_ "github.com/gogpu/fractal/backend/software"
)

// BackendDevices lists the devices one backend reports.
type BackendDevices struct {
	Backend string
	Devices []DeviceInfo
	Err     error
}

// Backends returns the names of the backends compiled into the binary.
func Backends() []string {
	return backend.Available()
}

// ListDevices enumerates the devices of every available backend, or of
// only the named one. Backends that fail to enumerate report Err.
func ListDevices(name string) []BackendDevices {
	names := backend.Available()
	if name != "" {
		names = []string{name}
	}
	out := make([]BackendDevices, 0, len(names))
	for _, n := range names {
		entry := BackendDevices{Backend: n}
		b, err := backend.Get(n)
		if err != nil {
			entry.Err = err
			out = append(out, entry)
			continue
		}
		entry.Devices, entry.Err = b.Devices()
		b.Close()
		out = append(out, entry)
	}
	return out
}
