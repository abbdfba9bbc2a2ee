package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hattiebot/toolchat/internal/core"
)

// Update modes accepted by update_file.
const (
	ModeOverwrite = "overwrite"
	ModeAppend    = "append"
)

// resolvePath joins relative paths onto the workspace. Absolute paths are used as given.
func resolvePath(workspaceDir, path string) string {
	if workspaceDir == "" || filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(workspaceDir, filepath.Clean(path))
}

func errorf(format string, a ...interface{}) core.Outcome {
	return core.Failure(fmt.Sprintf(format, a...))
}

func requireFilename(args Args) (string, core.Outcome, bool) {
	name := strings.TrimSpace(args.String("filename", ""))
	if name == "" {
		return "", core.Failure("Error: filename is required."), false
	}
	return name, core.Outcome{}, true
}

// CreateFileTool creates a new file and refuses to overwrite an existing one.
type CreateFileTool struct {
	WorkspaceDir string
}

func (t *CreateFileTool) Spec() Spec {
	return Spec{
		Name:        "create_file",
		Description: "Create a new file with optional initial content. Fails if the file already exists; use update_file to change an existing file.",
		Params: []Param{
			{Name: "filename", Type: ParamString, Description: "Path of the file to create (relative to the workspace or absolute).", Required: true},
			{Name: "content", Type: ParamString, Description: "Initial content. Defaults to empty."},
		},
	}
}

func (t *CreateFileTool) Execute(ctx context.Context, args Args) core.Outcome {
	name, bad, ok := requireFilename(args)
	if !ok {
		return bad
	}
	p := resolvePath(t.WorkspaceDir, name)
	if dir := filepath.Dir(p); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errorf("Error creating file '%s': %v", name, err)
		}
	}
	// O_EXCL makes the existence check and the create one step.
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return errorf("Error: file '%s' already exists. Use update_file to modify it.", name)
		}
		return errorf("Error creating file '%s': %v", name, err)
	}
	_, werr := f.WriteString(args.String("content", ""))
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		return errorf("Error creating file '%s': %v", name, werr)
	}
	return core.Success(fmt.Sprintf("File '%s' created successfully.", name))
}

// ReadFileTool returns a file's full text.
type ReadFileTool struct {
	WorkspaceDir string
}

func (t *ReadFileTool) Spec() Spec {
	return Spec{
		Name:        "read_file",
		Description: "Read and return the full text content of an existing file.",
		Params: []Param{
			{Name: "filename", Type: ParamString, Description: "Path of the file to read.", Required: true},
		},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args Args) core.Outcome {
	name, bad, ok := requireFilename(args)
	if !ok {
		return bad
	}
	p := resolvePath(t.WorkspaceDir, name)
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errorf("Error: file '%s' not found.", name)
		}
		return errorf("Error reading file '%s': %v", name, err)
	}
	if info.IsDir() {
		return errorf("Error: '%s' is a directory, not a file.", name)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return errorf("Error reading file '%s': %v", name, err)
	}
	if !utf8.Valid(data) {
		return errorf("Error reading file '%s': content is not valid UTF-8 text.", name)
	}
	return core.Success(string(data))
}

// UpdateFileTool overwrites or appends to a file.
type UpdateFileTool struct {
	WorkspaceDir string
}

func (t *UpdateFileTool) Spec() Spec {
	return Spec{
		Name:        "update_file",
		Description: "Write content to a file. mode 'overwrite' (default) replaces the whole file; mode 'append' adds to the end. Both create the file and any missing parent directories. Any other mode is rejected.",
		Params: []Param{
			{Name: "filename", Type: ParamString, Description: "Path of the file to update.", Required: true},
			{Name: "content", Type: ParamString, Description: "Content to write or append.", Required: true},
			{Name: "mode", Type: ParamString, Description: "'overwrite' or 'append'. Defaults to 'overwrite'."},
		},
	}
}

func (t *UpdateFileTool) Execute(ctx context.Context, args Args) core.Outcome {
	name, bad, ok := requireFilename(args)
	if !ok {
		return bad
	}
	mode := strings.ToLower(strings.TrimSpace(args.String("mode", ModeOverwrite)))
	if mode == "" {
		mode = ModeOverwrite
	}
	if mode != ModeOverwrite && mode != ModeAppend {
		return errorf("Error: unknown mode '%s' for update_file; use '%s' or '%s'.", mode, ModeOverwrite, ModeAppend)
	}
	content := args.String("content", "")
	p := resolvePath(t.WorkspaceDir, name)
	if dir := filepath.Dir(p); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errorf("Error updating file '%s': %v", name, err)
		}
	}
	if mode == ModeOverwrite {
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			return errorf("Error updating file '%s': %v", name, err)
		}
		return core.Success(fmt.Sprintf("File '%s' overwritten successfully.", name))
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return errorf("Error updating file '%s': %v", name, err)
	}
	_, werr := f.WriteString(content)
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		return errorf("Error updating file '%s': %v", name, werr)
	}
	return core.Success(fmt.Sprintf("File '%s' updated (append) successfully.", name))
}

// DeleteFileTool removes a single file.
type DeleteFileTool struct {
	WorkspaceDir string
}

func (t *DeleteFileTool) Spec() Spec {
	return Spec{
		Name:        "delete_file",
		Description: "Delete an existing file. Directories are not removed.",
		Params: []Param{
			{Name: "filename", Type: ParamString, Description: "Path of the file to delete.", Required: true},
		},
	}
}

func (t *DeleteFileTool) Execute(ctx context.Context, args Args) core.Outcome {
	name, bad, ok := requireFilename(args)
	if !ok {
		return bad
	}
	p := resolvePath(t.WorkspaceDir, name)
	info, err := os.Lstat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errorf("Error: cannot delete, file '%s' not found.", name)
		}
		return errorf("Error deleting file '%s': %v", name, err)
	}
	if info.IsDir() {
		return errorf("Error: '%s' is a directory; delete_file only removes files.", name)
	}
	if err := os.Remove(p); err != nil {
		return errorf("Error deleting file '%s': %v", name, err)
	}
	return core.Success(fmt.Sprintf("File '%s' deleted successfully.", name))
}

// ListFilesTool lists the direct entries of a directory.
type ListFilesTool struct {
	WorkspaceDir string
}

func (t *ListFilesTool) Spec() Spec {
	return Spec{
		Name:        "list_files",
		Description: "List the files and subdirectories directly inside a directory. Subdirectories end with '/'.",
		Params: []Param{
			{Name: "directory", Type: ParamString, Description: "Directory to list. Defaults to '.' (the workspace)."},
		},
	}
}

func (t *ListFilesTool) Execute(ctx context.Context, args Args) core.Outcome {
	dir := strings.TrimSpace(args.String("directory", "."))
	if dir == "" {
		dir = "."
	}
	p := resolvePath(t.WorkspaceDir, dir)
	info, err := os.Stat(p)
	if err != nil || !info.IsDir() {
		return errorf("Error: directory '%s' does not exist or is not a directory.", dir)
	}
	entries, err := os.ReadDir(p)
	if err != nil {
		return errorf("Error listing directory '%s': %v", dir, err)
	}
	if len(entries) == 0 {
		return core.Success(fmt.Sprintf("Directory '%s' is empty.", dir))
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() {
			n += "/"
		}
		names = append(names, n)
	}
	sort.Strings(names)
	return core.Success(fmt.Sprintf("Contents of '%s':\n%s", dir, strings.Join(names, "\n")))
}
