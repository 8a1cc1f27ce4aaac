package resource

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// availableMemory returns the kernel's estimate of memory available to
// new allocations, in bytes, read from /proc/meminfo's MemAvailable
// field. Platforms without that file (anything but Linux) report a
// very large value, effectively disabling the memory budget there —
// the store is still correct, just unable to bound RSS on that host.
var availableMemory = func() (int64, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		if os.IsNotExist(err) {
			return 1 << 62, nil
		}
		return 0, xerrors.Errorf("reading /proc/meminfo: %v", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, xerrors.Errorf("malformed MemAvailable line: %q", line)
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, xerrors.Errorf("parsing MemAvailable: %v", err)
		}
		return kb * 1024, nil
	}
	return 0, xerrors.Errorf("MemAvailable not found in /proc/meminfo")
}
