package agentchat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// CodeBlock is a fenced block found in a message.
type CodeBlock struct {
	Lang string
	Code string
}

var codeBlockRe = regexp.MustCompile("(?s)```[ \\t]*([\\w+-]*)[^\\n]*\\n(.*?)\\n?```")

// ExtractCodeBlocks returns the fenced code blocks of text in order.
func ExtractCodeBlocks(text string) []CodeBlock {
	var blocks []CodeBlock
	for _, m := range codeBlockRe.FindAllStringSubmatch(text, -1) {
		code := m[2]
		if strings.TrimSpace(code) == "" {
			continue
		}
		blocks = append(blocks, CodeBlock{Lang: strings.ToLower(m[1]), Code: code})
	}
	return blocks
}

// inferLang guesses the language of an untagged block.
func inferLang(code string) string {
	first := strings.TrimSpace(code)
	for _, prefix := range []string{"python ", "python3 ", "pip ", "pip3 ", "cd ", "ls", "echo "} {
		if strings.HasPrefix(first, prefix) {
			return "sh"
		}
	}
	return "python"
}

// CodeExecutor runs shell and python blocks in a working directory.
type CodeExecutor struct {
	WorkDir string
	Timeout time.Duration
	// Python is the interpreter used for python blocks.
	Python string
}

// NewCodeExecutor creates an executor rooted at workDir.
func NewCodeExecutor(workDir string, timeout time.Duration) *CodeExecutor {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &CodeExecutor{WorkDir: workDir, Timeout: timeout, Python: "python3"}
}

// Execute runs every block in text in order and stops at the first failure.
// ran is false when text has no code blocks.
func (e *CodeExecutor) Execute(ctx context.Context, text string) (out string, ran bool, err error) {
	blocks := ExtractCodeBlocks(text)
	if len(blocks) == 0 {
		return "", false, nil
	}
	if err := os.MkdirAll(e.WorkDir, 0755); err != nil {
		return "", false, fmt.Errorf("create work dir: %w", err)
	}

	var logs strings.Builder
	exitCode := 0
	for i, b := range blocks {
		lang := b.Lang
		if lang == "" {
			lang = inferLang(b.Code)
		}
		var code int
		var output string
		code, output, err = e.run(ctx, i, lang, b.Code)
		if err != nil {
			return "", true, err
		}
		logs.WriteString(output)
		if code != 0 {
			exitCode = code
			break
		}
	}

	status := "execution succeeded"
	if exitCode != 0 {
		status = "execution failed"
	}
	return fmt.Sprintf("exitcode: %d (%s)\nCode output: %s", exitCode, status, logs.String()), true, nil
}

func (e *CodeExecutor) run(ctx context.Context, idx int, lang, code string) (int, string, error) {
	var ext string
	var argv []string
	switch lang {
	case "sh", "bash", "shell", "console":
		ext = "sh"
		argv = []string{"sh"}
	case "python", "py", "python3":
		ext = "py"
		argv = []string{e.Python}
	default:
		return 1, "unknown language " + lang, nil
	}

	file := fmt.Sprintf("codeblock_%d.%s", idx, ext)
	if err := os.WriteFile(filepath.Join(e.WorkDir, file), []byte(code), 0644); err != nil {
		return 0, "", fmt.Errorf("write code block: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], append(argv[1:], file)...)
	cmd.Dir = e.WorkDir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	runErr := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return 1, buf.String() + "\nTimeout", nil
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return exitErr.ExitCode(), buf.String(), nil
	}
	if runErr != nil {
		return 1, runErr.Error(), nil
	}
	return 0, buf.String(), nil
}
