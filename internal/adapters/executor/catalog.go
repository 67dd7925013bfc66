package executor

import (
	"os/exec"
	"strings"

	"quadro/internal/ports"
)

// executorDef describes one known agent CLI and how to invoke it
type executorDef struct {
	binary       string
	buildArgs    func(spec ports.ExecSpec) []string
	capabilities []string
	name         string
	typeName     string
}

// defaultExecutors is the catalog of agent CLIs the engine knows how to
// drive. Availability is resolved at list time via exec.LookPath.
func defaultExecutors() []executorDef {
	return []executorDef{
		{
			binary: "claude",
			buildArgs: func(spec ports.ExecSpec) []string {
				args := []string{"-p", promptWithImages(spec), "--output-format", "stream-json", "--verbose"}
				if spec.AutoApprove {
					args = append(args, "--dangerously-skip-permissions")
				}
				return args
			},
			capabilities: []string{"stream-json", "images", "auto-approve"},
			name:         "Claude Code",
			typeName:     "claude",
		},
		{
			binary: "codex",
			buildArgs: func(spec ports.ExecSpec) []string {
				args := []string{"exec"}
				if spec.AutoApprove {
					args = append(args, "--full-auto")
				}
				return append(args, promptWithImages(spec))
			},
			capabilities: []string{"auto-approve"},
			name:         "Codex CLI",
			typeName:     "codex",
		},
		{
			binary: "gemini",
			buildArgs: func(spec ports.ExecSpec) []string {
				args := []string{"-p", promptWithImages(spec)}
				if spec.AutoApprove {
					args = append(args, "--yolo")
				}
				return args
			},
			capabilities: []string{"auto-approve"},
			name:         "Gemini CLI",
			typeName:     "gemini",
		},
		{
			binary: "opencode",
			buildArgs: func(spec ports.ExecSpec) []string {
				return []string{"run", promptWithImages(spec)}
			},
			capabilities: []string{},
			name:         "OpenCode",
			typeName:     "opencode",
		},
	}
}

// promptWithImages appends attached image paths to the prompt text so CLIs
// without a dedicated flag can still pick them up from the filesystem.
func promptWithImages(spec ports.ExecSpec) string {
	if len(spec.Images) == 0 {
		return spec.Prompt
	}

	var sb strings.Builder
	sb.WriteString(spec.Prompt)
	sb.WriteString("\n\nAttached images:\n")
	for _, img := range spec.Images {
		sb.WriteString("- ")
		sb.WriteString(img)
		sb.WriteString("\n")
	}
	return sb.String()
}

func isAvailable(binary string) bool {
	_, err := exec.LookPath(binary)
	return err == nil
}
