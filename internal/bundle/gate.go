package bundle

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/appgrove/appgrove-server/internal/pathutil"
	"github.com/appgrove/appgrove-server/internal/xerrors"
)

// Static allow/deny tables. Built once, never mutated.
var (
	allowedExtensions = map[string]bool{
		".html": true, ".htm": true,
		".css":  true,
		".js":   true, ".mjs": true,
		".json": true, ".txt": true,
		".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true, ".webp": true, ".ico": true,
		".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true,
		".mp3": true, ".wav": true, ".ogg": true,
		".mp4": true, ".webm": true,
	}

	blockedFiles = map[string]bool{
		"package.json":      true,
		"package-lock.json": true,
		"yarn.lock":         true,
		"composer.json":     true,
		"gemfile":           true,
		"requirements.txt":  true,
		"server.js":         true,
		"app.js":            true,
		".env":              true,
		".git":              true,
	}

	blockedExtensions = map[string]bool{
		".php": true, ".py": true, ".rb": true, ".java": true, ".go": true, ".rs": true,
		".exe": true, ".dll": true, ".so": true, ".dylib": true,
		".sh": true, ".bat": true, ".cmd": true, ".ps1": true,
		".asp": true, ".aspx": true, ".jsp": true,
	}

	blockedDirectories = []string{
		"node_modules",
		".git",
		".svn",
		"vendor",
		"__pycache__",
	}

	// signatures of server-runtime usage inside script files
	serverCodePatterns = []*regexp.Regexp{
		regexp.MustCompile(`require\s*\(\s*['"]express['"]\s*\)`),
		regexp.MustCompile(`require\s*\(\s*['"]http['"]\s*\)`),
		regexp.MustCompile(`require\s*\(\s*['"]https['"]\s*\)`),
		regexp.MustCompile(`app\.listen\s*\(`),
		regexp.MustCompile(`server\.listen\s*\(`),
		regexp.MustCompile(`createServer\s*\(`),
		regexp.MustCompile(`<\?php`),
		regexp.MustCompile(`(?s)<%.*?%>`),
		regexp.MustCompile(`import\s+.*\s+from\s+['"]express['"]`),
	}
)

// Gate statically vets a bundle. A failing bundle's extracted directory
// is removed before the error is returned.
type Gate struct {
	MaxFiles int
	MaxBytes int64

	// OnFailure receives a short machine-readable reason per violation
	// class (metrics hook).
	OnFailure func(reason string)
}

// maxScanBytes bounds how much of a script file the signature scan reads.
const maxScanBytes = 1 << 20

// Validate runs every check over the full inventory and accumulates all
// violations instead of stopping at the first. On any violation the
// extracted tree is deleted and a KindValidation error naming every
// problem is returned.
func (g *Gate) Validate(b *Bundle) error {
	var violations []string
	reasons := map[string]bool{}

	flag := func(reason, msg string) {
		violations = append(violations, msg)
		reasons[reason] = true
	}

	for _, f := range b.Files {
		if cleaned, ok := pathutil.CleanRelative(f); !ok || pathutil.HasDotSegments(cleaned) {
			flag("unsafe_path", "unsafe path: "+f)
			continue
		}

		name := strings.ToLower(path.Base(f))
		ext := strings.ToLower(path.Ext(f))
		dir := path.Dir(f)

		for _, blocked := range blockedDirectories {
			if containsSegment(dir, blocked) {
				flag("blocked_directory", "blocked directory "+blocked+" in "+f)
			}
		}
		if blockedFiles[name] {
			flag("blocked_file", "blocked file: "+name)
		}
		if blockedExtensions[ext] {
			flag("blocked_extension", "blocked file type "+ext+" ("+f+")")
		}
		if ext != "" && !blockedExtensions[ext] && !allowedExtensions[ext] {
			flag("unsupported_extension", "unsupported file type "+ext+" ("+f+")")
		}
	}

	if b.EntryDoc == "" {
		flag("missing_entry", "index.html not found in bundle")
	}

	if g.MaxFiles > 0 && len(b.Files) > g.MaxFiles {
		flag("too_many_files", "too many files: "+strconv.Itoa(len(b.Files))+" (max "+strconv.Itoa(g.MaxFiles)+")")
	}
	if g.MaxBytes > 0 && b.TotalBytes > g.MaxBytes {
		flag("over_hard_cap", "bundle too large: "+HumanSize(b.TotalBytes)+" (max "+HumanSize(g.MaxBytes)+")")
	}

	for _, f := range b.Files {
		ext := strings.ToLower(path.Ext(f))
		if ext != ".js" && ext != ".mjs" && ext != ".html" && ext != ".htm" {
			continue
		}
		match, err := scanServerCode(filepath.Join(b.Root, filepath.FromSlash(f)))
		if err != nil {
			// unreadable as text means binary; the extension checks
			// already decided whether it belongs here
			continue
		}
		if match {
			flag("server_code", "server-side code detected in "+f)
		}
	}

	if len(violations) == 0 {
		return nil
	}

	if g.OnFailure != nil {
		for r := range reasons {
			g.OnFailure(r)
		}
	}
	_ = b.Remove()
	return xerrors.WithKind(
		xerrors.Newf("bundle validation failed: %s", strings.Join(violations, "; ")),
		xerrors.KindValidation,
	)
}

func containsSegment(dir, segment string) bool {
	if dir == "." || dir == "" {
		return false
	}
	for _, s := range strings.Split(dir, "/") {
		if s == segment {
			return true
		}
	}
	return false
}

func scanServerCode(p string) (bool, error) {
	f, err := os.Open(p)
	if err != nil {
		return false, err
	}
	defer f.Close()

	// a short first read must not truncate the scan window
	buf, err := io.ReadAll(io.LimitReader(f, maxScanBytes))
	if err != nil {
		return false, err
	}
	text := string(buf)

	for _, pat := range serverCodePatterns {
		if pat.MatchString(text) {
			return true, nil
		}
	}
	return false, nil
}
