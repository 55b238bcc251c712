package researcher

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanLaTeX(t *testing.T) {
	assert.Equal(t, "", CleanLaTeX(""))
	assert.Equal(t, `\documentclass{article}`, CleanLaTeX("```latex\n\\documentclass{article}\n```"))
	assert.Equal(t, `\documentclass{article}`, CleanLaTeX("```\n\\documentclass{article}\n```\n"))
}

func TestCleanLaTeX_Bibliography(t *testing.T) {
	in := strings.Join([]string{
		`Results & discussion`,
		`\begin{thebibliography}{9}`,
		`\bibitem{a} Lee & Kim, 2024.`,
		`\bibitem{b} Already \& escaped & mixed.`,
		`\end{thebibliography}`,
		`Tail & text`,
	}, "\n")
	out := strings.Split(CleanLaTeX(in), "\n")
	assert.Equal(t, `Results & discussion`, out[0])
	assert.Equal(t, `\bibitem{a} Lee \& Kim, 2024.`, out[2])
	// 行内已有转义时不处理
	assert.Equal(t, `\bibitem{b} Already \& escaped & mixed.`, out[3])
	assert.Equal(t, `Tail & text`, out[5])
}

func TestCleanLaTeX_Figures(t *testing.T) {
	in := strings.Join([]string{
		`Intro text.`,
		`\begin{figure}[h]`,
		`\centering`,
		`\includegraphics[width=0.5\textwidth]{arch.png}`,
		`\caption{Architecture}`,
		`\end{figure}`,
		`\includegraphics{stray.png}`,
		`See \ref{fig:pipeline} and Figure 2 for details.`,
		`The system is shown in Figure 1.`,
	}, "\n")
	out := CleanLaTeX(in)
	assert.Equal(t, "Intro text.\nSee the proposed framework and 2 for details.\nThe system is implemented as follows.", out)
}

func TestDefaultTemplate(t *testing.T) {
	now := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	gaps := strings.Repeat("g", 150)
	out := DefaultTemplate("graph NEURAL networks & 100% recall", gaps, now)

	assert.True(t, strings.HasPrefix(out, `\documentclass{article}`))
	assert.Contains(t, out, `\title{Advancing Graph neural networks \& 100\% recall: Addressing Identified Research Gaps}`)
	assert.Contains(t, out, `advance graph neural networks \& 100\% recall by addressing`)
	assert.Contains(t, out, `\date{October 2026}`)
	assert.Contains(t, out, "gaps: "+strings.Repeat("g", 100)+".")
	assert.NotContains(t, out, strings.Repeat("g", 101))
	assert.Contains(t, out, `20\% improvement`)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), `\end{document}`))
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "", capitalize(""))
	assert.Equal(t, "Prompt engineering", capitalize("pROMPT Engineering"))
	assert.Equal(t, "Émotion", capitalize("émotion"))
}

// ============================================================
// LaTeXRenderer
// ============================================================

func newTestRenderer(t *testing.T) *LaTeXRenderer {
	r := NewLaTeXRenderer(t.TempDir(), nil)
	r.now = func() time.Time { return time.Date(2026, 10, 19, 9, 30, 15, 0, time.UTC) }
	return r
}

func TestRender_NoEngineKeepsSource(t *testing.T) {
	r := newTestRenderer(t)
	r.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }

	path, err := r.Render(context.Background(), "latex body")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(r.dir, "paper_20261019_093015.tex"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "latex body", string(data))
}

func TestRender_Tectonic(t *testing.T) {
	r := newTestRenderer(t)
	r.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	var ran []string
	r.run = func(_ context.Context, dir, name string, args ...string) ([]byte, error) {
		ran = append(ran, name)
		assert.Equal(t, r.dir, dir)
		assert.Equal(t, []string{"paper_20261019_093015.tex"}, args)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "paper_20261019_093015.pdf"), []byte("%PDF"), 0o644))
		// tectonic 有警告时也可能返回非零退出码
		return []byte("warning"), errors.New("exit status 1")
	}

	path, err := r.Render(context.Background(), "latex")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
	assert.Equal(t, "paper_20261019_093015.pdf", filepath.Base(path))
	assert.Equal(t, []string{"tectonic"}, ran)
}

func TestRender_FallsBackToPdflatex(t *testing.T) {
	r := newTestRenderer(t)
	r.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	var ran []string
	r.run = func(_ context.Context, dir, name string, args ...string) ([]byte, error) {
		ran = append(ran, name)
		if name == "tectonic" {
			return []byte("fatal"), errors.New("exit status 1")
		}
		return nil, os.WriteFile(filepath.Join(dir, "paper_20261019_093015.pdf"), []byte("%PDF"), 0o644)
	}

	path, err := r.Render(context.Background(), "latex")
	require.NoError(t, err)
	assert.Equal(t, ".pdf", filepath.Ext(path))
	assert.Equal(t, []string{"tectonic", "pdflatex"}, ran)
}

func TestRender_PdflatexFailureKeepsSource(t *testing.T) {
	r := newTestRenderer(t)
	r.lookPath = func(name string) (string, error) {
		if name == "pdflatex" {
			return "/usr/bin/pdflatex", nil
		}
		return "", exec.ErrNotFound
	}
	r.run = func(_ context.Context, dir, name string, args ...string) ([]byte, error) {
		// 非零退出码时即使生成了 PDF 也不采用
		_ = os.WriteFile(filepath.Join(dir, "paper_20261019_093015.pdf"), []byte("%PDF"), 0o644)
		return []byte("! Undefined control sequence."), errors.New("exit status 1")
	}

	path, err := r.Render(context.Background(), "latex")
	require.NoError(t, err)
	assert.Equal(t, ".tex", filepath.Ext(path))
}
