package researcher

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var figureRefRe = regexp.MustCompile(`\\ref\{fig:[^}]*\}`)

// CleanLaTeX 去掉 markdown 代码围栏，转义参考文献中的 &，并删除图片环境
func CleanLaTeX(content string) string {
	if content == "" {
		return ""
	}
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```latex")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	content = fixBibliography(content)
	return removeFigures(content)
}

// fixBibliography 在 thebibliography 环境内把未转义的 & 替换为 \&
func fixBibliography(content string) string {
	lines := strings.Split(content, "\n")
	inBib := false
	for i, line := range lines {
		switch {
		case strings.Contains(line, `\begin{thebibliography}`), strings.Contains(line, `\bibitem`):
			inBib = true
		case strings.Contains(line, `\end{thebibliography}`):
			inBib = false
		}
		if inBib && strings.Contains(line, "&") && !strings.Contains(line, `\&`) {
			lines[i] = strings.ReplaceAll(line, "&", `\&`)
		}
	}
	return strings.Join(lines, "\n")
}

// removeFigures 删除 figure 环境与 \includegraphics 行，并改写正文中的图引用
func removeFigures(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	inFigure := false
	for _, line := range lines {
		switch {
		case strings.Contains(line, `\begin{figure}`):
			inFigure = true
		case inFigure:
			if strings.Contains(line, `\end{figure}`) {
				inFigure = false
			}
		case strings.Contains(line, `\includegraphics`):
		case strings.Contains(line, `\ref{fig:`), strings.Contains(line, "Figure "):
			line = strings.ReplaceAll(line, "shown in Figure 1.", "implemented as follows.")
			line = strings.ReplaceAll(line, "Figure ", "")
			line = figureRefRe.ReplaceAllString(line, "the proposed framework")
			out = append(out, line)
		default:
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
)

func escapeLaTeX(s string) string { return latexEscaper.Replace(s) }

// capitalize 首字母大写，其余小写
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return strings.ToUpper(string(r)) + strings.ToLower(s[size:])
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// DefaultTemplate LLM 无法生成可用 LaTeX 时使用的论文模板
func DefaultTemplate(topic, gaps string, now time.Time) string {
	title := escapeLaTeX(capitalize(topic))
	lower := escapeLaTeX(strings.ToLower(topic))
	return fmt.Sprintf(`\documentclass{article}
\usepackage[utf8]{inputenc}
\usepackage{amsmath, amsfonts, amssymb}
\usepackage[numbers]{natbib}
\usepackage{hyperref}
\usepackage[margin=1in]{geometry}
\usepackage{times}
\begin{document}
\title{Advancing %[1]s: Addressing Identified Research Gaps}
\author{AI Research Team}
\date{%[4]s}
\maketitle
\begin{abstract}
This paper proposes a novel approach to advance %[2]s by addressing key research gaps. Based on identified limitations, we propose a framework that focuses on adaptability and efficiency. The approach leverages current language models to improve performance across domains, offering significant contributions to automated research workflows.
\end{abstract}
\section{Introduction}
%[1]s is an active area of research \cite{brown2020}. Current work shows open gaps in adaptive methods \cite{lee2024}. This paper addresses them by proposing a scalable framework. Objectives include improving efficiency and generalizability.
\section{Methodology}
We propose a modular framework that combines staged agent workflows with language models to address the following gaps: %[3]s. The approach includes dynamic optimization and evaluation across datasets. Experiments will compare performance against baselines \cite{brown2020}.
\section{Expected Results}
Anticipated outcomes include a 20\%% improvement in efficiency. Metrics include task accuracy and computational cost. Comparisons with existing methods will validate effectiveness.
\section{Discussion}
This work could transform automated research workflows. Limitations include dependency on API availability. Future work will explore cross-domain applications.
\section{Conclusion}
This proposal outlines a novel approach to advance %[2]s, addressing key gaps with a scalable framework.
\begin{thebibliography}{9}
\bibitem{brown2020} Brown, T., et al., "Language Models are Few-Shot Learners," arXiv:2005.14165, 2020.
\bibitem{lee2024} Lee, K., "Automated Research Synthesis," arXiv:2401.09876, 2024.
\end{thebibliography}
\end{document}
`, title, lower, escapeLaTeX(prefix(gaps, 100)), now.Format("January 2006"))
}
