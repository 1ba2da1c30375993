package image

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/forgecheck/grader/internal/errkind"
)

// requiredTemplatePaths are the paths that must exist somewhere under the
// archive's top-level project directory for it to be accepted as a
// template (spec §6 archive requirements).
var requiredTemplatePaths = []string{"test", "foundry.toml"}

// requiredSubmissionPaths are the paths a submission archive must contain.
var requiredSubmissionPaths = []string{"src"}

// extractZip unpacks data into destDir, refusing any entry whose resolved
// path would escape destDir (zip-slip). It returns the set of top-level
// entry names found, used to locate the archive's project directory.
func extractZip(data []byte, destDir string) ([]string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errkind.Wrap(errkind.BadInput, "archive is not a valid zip file", err)
	}

	topLevel := map[string]struct{}{}
	for _, f := range reader.File {
		cleaned := filepath.Clean(f.Name)
		if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
			return nil, errkind.New(errkind.BadInput, fmt.Sprintf("archive entry %q escapes extraction root", f.Name))
		}
		target := filepath.Join(destDir, cleaned)
		if rel, err := filepath.Rel(destDir, target); err != nil || strings.HasPrefix(rel, "..") {
			return nil, errkind.New(errkind.BadInput, fmt.Sprintf("archive entry %q escapes extraction root", f.Name))
		}

		parts := strings.SplitN(cleaned, string(filepath.Separator), 2)
		topLevel[parts[0]] = struct{}{}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, fmt.Errorf("create directory %s: %w", target, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", filepath.Dir(target), err)
		}
		if err := extractZipFile(f, target); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(topLevel))
	for name := range topLevel {
		names = append(names, name)
	}
	return names, nil
}

func extractZipFile(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %s: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode().Perm()|0o600)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("write file %s: %w", target, err)
	}
	return nil
}

// extractTemplate extracts a template archive into destDir and returns the
// path to the top-level project directory within it. It fails with
// errkind.BadInput before any container work if the archive does not carry
// a top-level project directory or the required template paths within it.
func extractTemplate(data []byte, destDir string) (string, error) {
	topLevel, err := extractZip(data, destDir)
	if err != nil {
		return "", err
	}
	projectDir, err := singleTopLevelDir(destDir, topLevel)
	if err != nil {
		return "", err
	}
	for _, required := range requiredTemplatePaths {
		if _, err := os.Stat(filepath.Join(projectDir, required)); err != nil {
			return "", errkind.New(errkind.BadInput, fmt.Sprintf("template archive missing required path %q", required))
		}
	}
	return projectDir, nil
}

// ExtractSubmission extracts a submission archive into destDir and
// validates the required submission paths are present.
func ExtractSubmission(data []byte, destDir string) (string, error) {
	if len(data) == 0 {
		return "", errkind.New(errkind.BadInput, "submission archive is empty")
	}
	topLevel, err := extractZip(data, destDir)
	if err != nil {
		return "", err
	}

	// A single top-level directory is a wrapping folder unless it is itself
	// one of the required paths (an archive holding only src/).
	root := destDir
	if len(topLevel) == 1 && !slices.Contains(requiredSubmissionPaths, topLevel[0]) {
		if candidate := filepath.Join(destDir, topLevel[0]); isDir(candidate) {
			root = candidate
		}
	}

	for _, required := range requiredSubmissionPaths {
		if _, err := os.Stat(filepath.Join(root, required)); err != nil {
			return "", errkind.New(errkind.BadInput, fmt.Sprintf("submission archive missing required path %q", required))
		}
	}
	return root, nil
}

func singleTopLevelDir(destDir string, topLevel []string) (string, error) {
	if len(topLevel) == 0 {
		return "", errkind.New(errkind.BadInput, "archive is empty")
	}
	if len(topLevel) == 1 {
		candidate := filepath.Join(destDir, topLevel[0])
		if isDir(candidate) {
			return candidate, nil
		}
	}
	return "", errkind.New(errkind.BadInput, "archive must contain a single top-level project directory")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// overlayTemplateFiles copies the repository's own template files
// (container build file, entry scripts) onto projectDir. Caller-supplied
// files of the same relative path win, except for the container build
// file itself, which is always the template's (spec §4.1 step 2).
func overlayTemplateFiles(templateFilesDir, projectDir string) error {
	if templateFilesDir == "" {
		return nil
	}
	return filepath.Walk(templateFilesDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(templateFilesDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(projectDir, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		isBuildFile := rel == dockerfileName
		if !isBuildFile {
			if _, err := os.Stat(target); err == nil {
				return nil // caller-supplied file wins
			}
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode().Perm())
	})
}

// dockerfileName is the container build file's conventional name within a
// project directory; overlayTemplateFiles always takes this file from the
// template, never the caller's archive.
const dockerfileName = "Dockerfile"
