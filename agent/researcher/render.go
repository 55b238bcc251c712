package researcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Renderer 把 LaTeX 文档渲染为文件，返回生成文件的路径
type Renderer interface {
	Render(ctx context.Context, latex string) (string, error)
}

// LaTeXRenderer 依次尝试 tectonic、pdflatex；都不可用时保留 .tex 源文件
type LaTeXRenderer struct {
	dir    string
	logger *zap.Logger

	now      func() time.Time
	lookPath func(file string) (string, error)
	run      func(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// NewLaTeXRenderer 创建输出到 dir 的渲染器
func NewLaTeXRenderer(dir string, logger *zap.Logger) *LaTeXRenderer {
	if dir == "" {
		dir = "output"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LaTeXRenderer{
		dir:      dir,
		logger:   logger.With(zap.String("component", "latex_renderer")),
		now:      time.Now,
		lookPath: exec.LookPath,
		run:      runCommand,
	}
}

func runCommand(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Render 写入 output/paper_<时间戳>.tex 并尝试编译
func (r *LaTeXRenderer) Render(ctx context.Context, latex string) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	base := "paper_" + r.now().Format("20060102_150405")
	texFile := filepath.Join(r.dir, base+".tex")
	pdfFile := filepath.Join(r.dir, base+".pdf")

	if err := os.WriteFile(texFile, []byte(latex), 0o644); err != nil {
		return "", fmt.Errorf("write latex source: %w", err)
	}

	engines := []struct {
		name string
		args []string
	}{
		{"tectonic", []string{base + ".tex"}},
		{"pdflatex", []string{"-interaction=nonstopmode", "-output-directory", ".", base + ".tex"}},
	}
	for _, e := range engines {
		if _, err := r.lookPath(e.name); err != nil {
			continue
		}
		out, err := r.run(ctx, r.dir, e.name, e.args...)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// tectonic 的警告不影响结果，以 PDF 是否生成为准
		if _, statErr := os.Stat(pdfFile); statErr == nil && (err == nil || e.name == "tectonic") {
			abs, absErr := filepath.Abs(pdfFile)
			if absErr != nil {
				abs = pdfFile
			}
			r.logger.Info("pdf generated", zap.String("engine", e.name), zap.String("path", abs))
			return abs, nil
		}
		r.logger.Warn("latex engine failed",
			zap.String("engine", e.name),
			zap.Error(err),
			zap.ByteString("output", tail(out, 2048)))
	}

	r.logger.Info("no latex engine produced a pdf, keeping source", zap.String("path", texFile))
	return texFile, nil
}

func tail(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[len(b)-n:]
}
