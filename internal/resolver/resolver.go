package resolver

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
)

// Target is a Go module ready to be loaded.
type Target struct {
	Dir        string // module root (directory holding go.mod)
	ModulePath string // module path declared in go.mod
}

// Resolve takes an input (local dir, sub-package path, or GitHub URL) and
// returns the module to analyse plus a cleanup function.
func Resolve(ctx context.Context, input string, logger *slog.Logger) (Target, func(), error) {
	cleanup := func() {}

	var (
		dir string
		err error
	)
	if isGitHubURL(input) {
		dir, err = fetchRepo(ctx, input, logger)
	} else {
		dir, err = resolveLocal(input)
	}
	if err != nil {
		return Target{}, cleanup, err
	}

	modPath, err := ModulePath(dir)
	if err != nil {
		return Target{}, cleanup, err
	}
	logger.Info("resolved module", "input", input, "module_root", dir, "module", modPath)

	if err := goModDownload(ctx, dir, logger); err != nil {
		logger.Warn("go mod download failed", "error", err)
	}
	return Target{Dir: dir, ModulePath: modPath}, cleanup, nil
}

func resolveLocal(input string) (string, error) {
	absPath, err := filepath.Abs(input)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", absPath, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", absPath)
	}
	return findModuleRoot(absPath)
}

// ModulePath reads the module path from dir/go.mod.
func ModulePath(dir string) (string, error) {
	goMod := filepath.Join(dir, "go.mod")
	data, err := os.ReadFile(goMod)
	if err != nil {
		return "", fmt.Errorf("reading go.mod: %w", err)
	}
	f, err := modfile.ParseLax(goMod, data, nil)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", goMod, err)
	}
	if f.Module == nil {
		return "", fmt.Errorf("%s has no module directive", goMod)
	}
	return f.Module.Mod.Path, nil
}

func isGitHubURL(input string) bool {
	return strings.Contains(input, "github.com") &&
		(strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://"))
}

// cacheDir returns ~/.cache/scopescan/repos/<hash>, stable per URL.
func cacheDir(url string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home dir: %w", err)
	}
	h := sha256.Sum256([]byte(url))
	return filepath.Join(home, ".cache", "scopescan", "repos", fmt.Sprintf("%x", h[:8])), nil
}

// fetchRepo refreshes a cached shallow clone of url, cloning it afresh when
// there is none or the refresh fails, and returns the module root inside it.
func fetchRepo(ctx context.Context, url string, logger *slog.Logger) (string, error) {
	dir, err := cacheDir(url)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		logger.Info("updating cached repository", "url", url, "dir", dir)
		if err := git(ctx, dir, "fetch", "--depth=1", "origin"); err == nil {
			err = git(ctx, dir, "reset", "--hard", "origin/HEAD")
		}
		if err != nil {
			logger.Warn("refreshing cached clone failed, re-cloning", "error", err)
			_ = os.RemoveAll(dir)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
			return "", fmt.Errorf("creating cache dir: %w", err)
		}
		logger.Info("cloning repository", "url", url, "dest", dir)
		if err := git(ctx, "", "clone", "--depth=1", url, dir); err != nil {
			_ = os.RemoveAll(dir)
			return "", fmt.Errorf("git clone: %w", err)
		}
	}

	modRoot, err := findModuleRootInTree(dir)
	if err != nil {
		return "", fmt.Errorf("cloned repository: %w", err)
	}
	return modRoot, nil
}

func git(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// findModuleRoot walks up from dir to the nearest directory holding go.mod.
func findModuleRoot(dir string) (string, error) {
	current := dir
	for {
		if _, err := os.Stat(filepath.Join(current, "go.mod")); err == nil {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no go.mod found in %s or any parent directory", dir)
		}
		current = parent
	}
}

// findModuleRootInTree returns the shallowest directory under root holding
// go.mod, breaking ties alphabetically. Hidden, vendor and node_modules
// directories are skipped.
func findModuleRootInTree(root string) (string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (strings.HasPrefix(name, ".") || name == "vendor" || name == "node_modules") {
			return filepath.SkipDir
		}
		if _, err := os.Stat(filepath.Join(path, "go.mod")); err == nil {
			found = append(found, path)
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return "", fmt.Errorf("no go.mod found in %s", root)
	}
	sort.SliceStable(found, func(i, j int) bool {
		di := strings.Count(found[i], string(filepath.Separator))
		dj := strings.Count(found[j], string(filepath.Separator))
		if di != dj {
			return di < dj
		}
		return found[i] < found[j]
	})
	return found[0], nil
}

func goModDownload(ctx context.Context, dir string, logger *slog.Logger) error {
	logger.Debug("running go mod download", "dir", dir)
	cmd := exec.CommandContext(ctx, "go", "mod", "download")
	cmd.Dir = dir
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
