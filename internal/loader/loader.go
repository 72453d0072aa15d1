// Package loader reads source files into domain Documents: it collects
// input paths, parses YAML front matter, resolves metadata and computes
// the content hash and stable document identity.
package loader

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/notevault/notevault-cli/internal/core/domain"
)

// CollectFiles expands a mix of file and directory paths into a sorted,
// de-duplicated list of files matching the extension filter. Directories
// are walked only when recursive is set; otherwise only their immediate
// files are included.
func CollectFiles(inputs []string, recursive bool, exts []string) ([]string, error) {
	want := make(map[string]bool)
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			want["."+e] = true
		}
	}
	match := func(path string) bool {
		return len(want) == 0 || want[strings.ToLower(filepath.Ext(path))]
	}

	seen := make(map[string]bool)
	var out []string
	add := func(path string) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}

	for _, spec := range inputs {
		info, err := os.Stat(spec)
		if err != nil {
			return nil, fmt.Errorf("%w: stat %s: %w", domain.ErrInvalidInput, spec, err)
		}

		if !info.IsDir() {
			if match(spec) {
				add(spec)
			}
			continue
		}

		if recursive {
			err = filepath.WalkDir(spec, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && match(path) {
					add(path)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("walk %s: %w", spec, err)
			}
			continue
		}

		entries, err := os.ReadDir(spec)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", spec, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && match(entry.Name()) {
				add(filepath.Join(spec, entry.Name()))
			}
		}
	}

	sort.Strings(out)
	return out, nil
}

// Load reads one source file into a Document. When vaultRoot is set and
// contains the file, the document key is the vault-relative path so the
// identity survives moving or syncing the vault; otherwise the absolute
// path is used.
func Load(path, vaultRoot string) (*domain.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrDocumentParse, path, err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrDocumentParse, path, err)
	}
	text := string(raw)

	sum := sha1.Sum(raw)
	contentSHA := hex.EncodeToString(sum[:])

	fm, body := parseFrontMatter(text)

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	key := docKey(abs, vaultRoot)

	doc := &domain.Document{
		ID:          domain.DocumentID(key),
		Key:         key,
		Path:        abs,
		Title:       guessTitle(body, abs),
		Body:        body,
		ContentSHA:  contentSHA,
		Meta:        resolveMetadata(fm, abs),
		SourceMtime: info.ModTime(),
	}
	return doc, nil
}

// docKey resolves the identity string a document ID is derived from.
func docKey(absPath, vaultRoot string) string {
	if vaultRoot != "" {
		if root, err := filepath.Abs(vaultRoot); err == nil {
			if rel, err := filepath.Rel(root, absPath); err == nil &&
				rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				return "rel:" + filepath.ToSlash(rel)
			}
		}
	}
	return absPath
}

// resolveMetadata maps front matter to structured metadata using the
// field synonyms the note vault conventions allow: attendees/people/
// participants, tags/tag and category/project.
func resolveMetadata(fm map[string]any, absPath string) domain.Metadata {
	people := fmList(fm, "attendees", "people", "participants")
	tags := fmList(fm, "tags", "tag")

	// Type inference looks at the front-matter category only; the parent
	// directory fallback below is for the category field itself.
	fmCategory := fmString(fm, "category", "project")

	docType := fmString(fm, "type")
	if docType == "" {
		docType = inferType(fmCategory, tags, absPath)
	}

	category := fmCategory
	if category == "" {
		category = filepath.Base(filepath.Dir(absPath))
	}

	return domain.Metadata{
		Type:     docType,
		Category: category,
		People:   people,
		Tags:     tags,
		Date:     fmString(fm, "date"),
	}
}

// inferType classifies a document from its category, then its tags, then
// its path, defaulting to "note".
func inferType(category string, tags []string, absPath string) string {
	switch cat := strings.ToLower(strings.TrimSpace(category)); cat {
	case "":
		// fall through to tags
	case "one-on-one", "one-on-ones":
		return "one-on-one"
	case "email", "emails":
		return "email"
	case "slack":
		return "slack"
	case "calendar", "cal":
		return "calendar"
	case "note", "notes":
		return "note"
	default:
		// Any other explicit category is treated as a meeting series
		// (standup, retro, sync-meeting and the like).
		return "meeting"
	}

	for _, tag := range tags {
		switch strings.ToLower(strings.TrimSpace(tag)) {
		case "one-on-one", "1-1", "one-on-ones":
			return "one-on-one"
		case "meeting", "meetings":
			return "meeting"
		case "email", "emails":
			return "email"
		case "slack":
			return "slack"
		case "calendar", "cal":
			return "calendar"
		}
	}

	return typeFromPath(absPath)
}

func typeFromPath(absPath string) string {
	s := strings.ToLower(filepath.ToSlash(absPath))
	switch {
	case strings.Contains(s, "/one-on-one"), strings.Contains(s, "/1-1"), strings.Contains(s, "/one_on_one"):
		return "one-on-one"
	case strings.Contains(s, "/meeting"):
		return "meeting"
	case strings.Contains(s, "/email"):
		return "email"
	case strings.Contains(s, "/slack"):
		return "slack"
	case strings.Contains(s, "/calendar"), strings.Contains(s, "/cal/"):
		return "calendar"
	default:
		return "note"
	}
}

// guessTitle takes the first markdown H1 or "title:" line, falling back
// to the filename stem.
func guessTitle(body, path string) string {
	for _, line := range strings.Split(body, "\n") {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "# ") {
			return strings.TrimSpace(t[2:])
		}
		if strings.HasPrefix(strings.ToLower(t), "title:") {
			return strings.TrimSpace(t[len("title:"):])
		}
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
