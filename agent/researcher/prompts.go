package researcher

import (
	"fmt"
	"strings"
)

const (
	noAnalysesGaps = "No papers analyzed. Default gap: Limited exploration of adaptive prompt engineering for domain-specific tasks."
	gapErrorGaps   = "Error occurred during gap analysis. Default gap: Limited exploration of adaptive prompt engineering."
)

func analysisPrompt(title string, authors []string, content string) string {
	return fmt.Sprintf(`Analyze this research paper and provide a structured summary:
Paper Title: %s
Authors: %s
Paper Content: %s
Please provide:
1. **Abstract Summary**: Key points from the abstract (50 words)
2. **Methodology**: Main approaches used (50 words)
3. **Key Results**: Primary findings (50 words)
4. **Limitations**: Acknowledged limitations (50 words)
5. **Future Work**: Suggested improvements (50 words)
Format as concise structured text.`, title, strings.Join(authors, ", "), content)
}

func gapPrompt(topic string, analyses []PaperAnalysis) string {
	var b strings.Builder
	for i, a := range analyses {
		fmt.Fprintf(&b, "\n--- Paper %d: %s ---\n", i+1, a.PaperTitle)
		fmt.Fprintf(&b, "Authors: %s\n", strings.Join(a.Authors, ", "))
		fmt.Fprintf(&b, "Analysis:\n%s\n", a.Analysis)
	}
	return fmt.Sprintf(`Analyze the state of research on: %s
Based on %d papers:
%s
Identify in 100 words:
1. Common Limitations
2. Research Gaps
3. Methodological Improvements
4. Novel Applications
5. Technical Innovations
Provide a concise gap analysis for a new research paper.`, topic, len(analyses), b.String())
}

func paperPrompt(topic, gaps string) string {
	return fmt.Sprintf(`You are an expert academic researcher. Write a comprehensive LaTeX research paper proposal addressing the research opportunities in the given topic.

Research Topic: %s
Gap Analysis: %s

Create a detailed academic paper (6-8 pages worth) with the following structure:

1. **Title**: Innovative and specific title reflecting the research contribution
2. **Abstract**: 200-250 words covering problem, methodology, expected results, and significance
3. **Introduction**:
   - Background and context (400-500 words)
   - Problem statement and motivation
   - Research objectives and questions
   - Paper organization
4. **Related Work**:
   - Review of existing approaches (300-400 words)
   - Limitations of current methods
   - Positioning of this work
5. **Methodology**:
   - Detailed proposed approach (500-600 words)
   - Technical framework and architecture
   - Experimental design and evaluation setup
   - Data collection and analysis methods
6. **Expected Results**:
   - Anticipated outcomes and contributions (300-400 words)
   - Evaluation metrics and success criteria
   - Comparison with existing methods
7. **Discussion and Future Work**:
   - Expected impact and applications (300-400 words)
   - Limitations and challenges
   - Future research directions
8. **Conclusion**: Summary of contributions and significance (200 words)
9. **References**: Include at least 8-10 relevant citations

Requirements:
- Generate a comprehensive paper with substantial content
- Use proper LaTeX format with \documentclass{article}
- Include necessary packages (amsmath, graphicx, hyperref, cite, geometry)
- Use proper academic writing style with detailed explanations
- Include technical details and mathematical formulations where appropriate
- Add subsections to organize content clearly
- Ensure the content is substantive, technically sound, and innovative
- Write in full paragraphs with academic rigor

CRITICAL LaTeX REQUIREMENTS:
- DO NOT include any \includegraphics commands or figure environments
- DO NOT reference any external images or PNG/PDF files
- Escape all & characters in bibliography as \&
- Do not use tabular environments with & characters
- Only use text-based content, no images or graphics
- Ensure all special characters are properly escaped

Generate ONLY the complete LaTeX document code. Be thorough and comprehensive.`, topic, gaps)
}

// 对话中的固定回复
const (
	greetingReply = "Hello! I'm an AI Research Agent specializing in academic research. I can help you:\n\n" +
		"• Conduct comprehensive research on any topic\n" +
		"• Search for academic papers on arXiv\n" +
		"• Analyze papers and identify research gaps\n" +
		"• Generate research proposals with PDF output\n\n" +
		"What would you like to research today?"

	capabilitiesReply = `I'm an AI Research Agent with the following capabilities:

🔬 **Full Research Workflow**:
   • Search arXiv for relevant papers
   • Download and analyze paper content
   • Identify research gaps and opportunities
   • Generate new research proposals
   • Create PDF documents with LaTeX

📚 **Paper Search**:
   • Find academic papers on any topic
   • Extract key information and summaries
   • Provide direct links to papers

🎯 **Research Tools**:
   • ` + "`research_topic`" + `: Complete research workflow with PDF output
   • ` + "`search_papers`" + `: Quick paper search and summary

**Example Usage**:
• "Conduct research on machine learning"
• "Search papers on quantum computing"
• "Write a research proposal on neural networks"

How can I assist with your research today?`

	workflowReply = `My research workflow follows these steps:

1. **Paper Search** 📄
   • Search arXiv for relevant papers
   • Filter and select most relevant results

2. **Paper Analysis** 🔍
   • Download and read paper content
   • Extract key findings and methodologies
   • Summarize contributions and limitations

3. **Gap Identification** 🎯
   • Compare findings across papers
   • Identify research gaps and opportunities
   • Suggest improvements and innovations

4. **Proposal Generation** ✍️
   • Create original research proposal
   • Include methodology and expected results
   • Format as academic paper

5. **PDF Creation** 📋
   • Generate LaTeX document
   • Compile to professional PDF
   • Provide downloadable output

Ready to start researching a topic?`

	troubleshootingReply = `If you're experiencing issues, here are some tips:

• **API Access**: Ensure Google API key is configured for Gemini and arXiv access
• **Topic Clarity**: Be specific about your research topic
• **Patience**: Research workflows can take 1-2 minutes to complete
• **Format**: Try phrases like "Research [topic]" or "Find papers on [topic]"

**Common Issues**:
• "API call limit reached" → Wait a few minutes and try again
• "No papers found" → Try broader or different keywords
• "PDF generation failed" → Check LaTeX syntax and content

Need help with a specific research topic?`

	defaultReply = `I specialize in academic research and can help you:

• **Research Topics**: "Conduct research on artificial intelligence"
• **Find Papers**: "Search papers on blockchain technology"
• **Generate Proposals**: "Write a research proposal on climate change"

What research topic interests you? Just tell me what you'd like to investigate!`

	needResearchTopicReply = "Please specify a research topic. For example: 'Conduct research on machine learning'"
	needSearchTopicReply   = "Please specify a topic to search for papers. For example: 'Search papers on neural networks'"
	needAnyTopicReply      = "I can help you with academic research! Please specify a topic. For example: 'Research machine learning algorithms' or 'Find papers on quantum computing'"

	unavailableError = "AI Researcher not available. Please ensure Google API key is configured."
)

func chatErrorReply(err string) string {
	return fmt.Sprintf("I encountered an error while processing your request: %s\n\nPlease try rephrasing your question or ask for help with research capabilities.", err)
}
