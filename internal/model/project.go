package model

import "strings"

// genericDirs are sub-directory names that say nothing about the project
// they live in. A working directory ending in one of these resolves to the
// nearest ancestor that is not generic.
var genericDirs = map[string]bool{
	"src":          true,
	"source":       true,
	"sources":      true,
	"lib":          true,
	"libs":         true,
	"build":        true,
	"dist":         true,
	"out":          true,
	"target":       true,
	"bin":          true,
	"test":         true,
	"tests":        true,
	"spec":         true,
	"specs":        true,
	"docs":         true,
	"scripts":      true,
	"tmp":          true,
	"vendor":       true,
	"node_modules": true,
}

// ProjectName resolves a working directory to a project name.
//
//	/home/me/code/cctop          -> cctop
//	/home/me/code/cctop/src      -> cctop
//	C:\Users\me\code\cctop\tests -> cctop
//
// An empty or root-only path yields "".
func ProjectName(cwd string) string {
	cwd = strings.ReplaceAll(cwd, `\`, "/")
	parts := strings.FieldsFunc(cwd, func(r rune) bool { return r == '/' })

	for i := len(parts) - 1; i >= 0; i-- {
		name := parts[i]
		if genericDirs[strings.ToLower(name)] && i > 0 {
			continue
		}
		// Drive letters are not project names
		if i == 0 && len(name) == 2 && name[1] == ':' {
			return ""
		}
		return name
	}
	return ""
}

// MCPServer extracts the server name from an MCP-qualified tool name of the
// form namespace__server__tool, e.g. mcp__github__create_issue -> github.
func MCPServer(tool string) (string, bool) {
	parts := strings.SplitN(tool, "__", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", false
	}
	return parts[1], true
}
