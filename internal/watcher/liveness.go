package watcher

import (
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// processRunningByName is a defense-in-depth supplement to the session
// adapter's own HasProcess check: a session can report itself
// alive while the pane's expected process has been reparented into a
// zombie, or a container/cgroup boundary hides it from the multiplexer's
// own bookkeeping. Scanning the host's process table directly by name
// catches that case independent of however the session adapter tracks it.
func processRunningByName(name string) bool {
	procs, err := process.Processes()
	if err != nil {
		return false
	}
	for _, p := range procs {
		pname, err := p.Name()
		if err != nil {
			continue
		}
		if strings.Contains(pname, name) {
			return true
		}
	}
	return false
}
