package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// CheckFFmpegForRAWcooked reports the FFmpeg binary RAWcooked will hand its
// encodes to. RAWcooked prefers an ffmpeg sitting beside its own executable
// and otherwise resolves "ffmpeg" from PATH.
func CheckFFmpegForRAWcooked(rawcookedCommand string) Status {
	result := Status{
		Name:        "FFmpeg",
		Description: "Used by RAWcooked to encode FFV1",
	}

	if binary := strings.TrimSpace(rawcookedCommand); binary != "" {
		if resolved, err := exec.LookPath(binary); err == nil {
			candidate := filepath.Join(filepath.Dir(resolved), "ffmpeg")
			if info, statErr := os.Stat(candidate); statErr == nil && executable(info) {
				result.Command = candidate
				result.Available = true
				return result
			}
		}
	}

	if path, err := exec.LookPath("ffmpeg"); err == nil {
		result.Command = path
		result.Available = true
		return result
	}
	result.Command = "ffmpeg"
	result.Detail = `binary "ffmpeg" not found`
	return result
}

func executable(info os.FileInfo) bool {
	return info != nil && !info.IsDir() && info.Mode().Perm()&0o111 != 0
}

// Summary renders a one-line description of s for logs.
func (s Status) Summary() string {
	switch {
	case !s.Available:
		return fmt.Sprintf("%s unavailable: %s", s.Name, s.Detail)
	case s.Version != "":
		return fmt.Sprintf("%s %s (%s)", s.Name, s.Version, s.Command)
	default:
		return fmt.Sprintf("%s (%s)", s.Name, s.Command)
	}
}
