package importer

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/amberlabs/amber/internal/models"
)

// discover lists an agent's session files. Every walker tolerates missing
// or unreadable directories by returning what it found so far.
func discover(agentID, root string) []models.SessionFile {
	switch agentID {
	case "claude":
		return discoverProjectDirs(root)
	case "codex":
		return discoverTree(root, func(name string) bool {
			return strings.HasSuffix(name, ".jsonl")
		})
	case "gemini":
		return discoverTree(root, func(name string) bool {
			return strings.HasPrefix(name, "session-") && strings.HasSuffix(name, ".json")
		})
	case "cursor":
		return discoverTree(root, func(name string) bool {
			return name == "store.db"
		})
	case "aider":
		return discoverFlat(root, ".log")
	default:
		return nil
	}
}

// discoverProjectDirs recurses exactly one level into per-project
// subfolders and collects their top-level .jsonl session files.
func discoverProjectDirs(root string) []models.SessionFile {
	projects, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var out []models.SessionFile
	for _, proj := range projects {
		if !proj.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(root, proj.Name()))
		if err != nil {
			continue
		}
		for _, e := range entries {
			// Subdirectories hold subagent transcripts, not sessions.
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
				continue
			}
			if sf, ok := sessionFile(filepath.Join(root, proj.Name(), e.Name())); ok {
				out = append(out, sf)
			}
		}
	}
	return out
}

// discoverTree walks the whole tree under root collecting files whose base
// name matches.
func discoverTree(root string, match func(name string) bool) []models.SessionFile {
	var out []models.SessionFile
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !match(d.Name()) {
			return nil
		}
		if sf, ok := sessionFile(path); ok {
			out = append(out, sf)
		}
		return nil
	})
	return out
}

// discoverFlat lists matching files directly under root, no recursion.
func discoverFlat(root, suffix string) []models.SessionFile {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var out []models.SessionFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		if sf, ok := sessionFile(filepath.Join(root, e.Name())); ok {
			out = append(out, sf)
		}
	}
	return out
}

func sessionFile(path string) (models.SessionFile, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return models.SessionFile{}, false
	}
	return models.SessionFile{
		Path:  path,
		MTime: info.ModTime(),
		Date:  info.ModTime().Format(models.DateLayout),
	}, true
}
