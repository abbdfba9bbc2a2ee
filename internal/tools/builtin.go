package tools

// NewBuiltinRegistry registers the file tools (rooted at workspaceDir) and web search.
func NewBuiltinRegistry(workspaceDir string, searcher Searcher) (*Registry, error) {
	reg := NewRegistry()
	for _, t := range []Tool{
		&CreateFileTool{WorkspaceDir: workspaceDir},
		&ReadFileTool{WorkspaceDir: workspaceDir},
		&UpdateFileTool{WorkspaceDir: workspaceDir},
		&DeleteFileTool{WorkspaceDir: workspaceDir},
		&ListFilesTool{WorkspaceDir: workspaceDir},
		&SearchWebTool{Searcher: searcher},
	} {
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
