package classify

import (
	"sort"
	"strings"
)

const (
	ContainerExt = ".mkv"
	LogExt       = ".mkv.txt"
)

// Pair is a container and its cook log sharing a base name.
type Pair struct {
	Base      string
	Container string
	Log       string
}

// Pairing is the result of matching containers to logs in one directory.
type Pairing struct {
	Pairs            []Pair
	OrphanContainers []string
	OrphanLogs       []string
}

// PairArtifacts matches "<base>.mkv" with "<base>.mkv.txt" among file names.
// Names with neither suffix are ignored. Every output list is sorted.
func PairArtifacts(names []string) Pairing {
	containers := make(map[string]string)
	logs := make(map[string]string)
	for _, name := range names {
		switch {
		case strings.HasSuffix(name, LogExt):
			logs[strings.TrimSuffix(name, LogExt)] = name
		case strings.HasSuffix(name, ContainerExt):
			containers[strings.TrimSuffix(name, ContainerExt)] = name
		}
	}

	var out Pairing
	for base, container := range containers {
		if log, ok := logs[base]; ok {
			out.Pairs = append(out.Pairs, Pair{Base: base, Container: container, Log: log})
			continue
		}
		out.OrphanContainers = append(out.OrphanContainers, container)
	}
	for base, log := range logs {
		if _, ok := containers[base]; !ok {
			out.OrphanLogs = append(out.OrphanLogs, log)
		}
	}
	sort.Slice(out.Pairs, func(i, j int) bool { return out.Pairs[i].Base < out.Pairs[j].Base })
	sort.Strings(out.OrphanContainers)
	sort.Strings(out.OrphanLogs)
	return out
}
