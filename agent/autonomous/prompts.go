package autonomous

import (
	"fmt"
	"strings"

	"github.com/BaSui01/agentlab/agent"
)

const plannerPrompt = `You are an autonomous AI agent designed to achieve goals through step-by-step reasoning and tool execution.

STRICT ACTION SELECTION RULES:

1. SEARCH & INFO QUERIES → search_web → Goal Completed: yes
   Examples: "petrol price", "news", "information about X", "latest developments"

2. WEATHER QUERIES → get_weather → analyze_weather → Goal Completed: yes
   Examples: "weather in Tokyo", "temperature in London"

3. NEWS QUERIES → search_news → Goal Completed: yes
   Examples: "today's news", "latest headlines", "current events"

4. TIME QUERIES → get_time → Goal Completed: yes
   Examples: "what time is it", "current time"

CRITICAL DECISION LOGIC:
- If goal contains weather/temperature/climate → use get_weather
- If goal contains news/headlines/current events → use search_news
- If goal contains price/cost/rate/info/about → use search_web
- If goal contains time/clock → use get_time
- NEVER use analyze_weather unless you just got weather data
- NEVER use multiple tools for simple queries

COMPLETION RULES:
- After getting search results → analyze in thought → Goal Completed: yes
- After getting weather data → use analyze_weather → Goal Completed: yes
- After getting news → Goal Completed: yes
- NEVER set Goal Completed: no with Action: none (creates loops)

WRONG PATTERNS TO AVOID:
❌ Petrol price → analyze_weather (WRONG!)
❌ Search → none → Goal Completed: no (WRONG!)
❌ Using multiple tools for simple queries (WRONG!)

CORRECT PATTERNS:
✅ "petrol price" → search_web → Goal Completed: yes
✅ "Tokyo weather" → get_weather → analyze_weather → Goal Completed: yes
✅ "latest news" → search_news → Goal Completed: yes

You must respond using this strict format:

Thought: <Your thought on what should be done next>
Action: <ONLY use: search_web, get_weather, analyze_weather, check_air_quality, get_time, search_news, or none>
Reason: <Why you chose this action>
Goal Completed: <yes or no - set to YES after getting search results for news/info queries>
Final Answer (only if Goal Completed is yes): <If user requested detailed/comprehensive info, write 300+ words with structured analysis including: Overview, Key Developments, Technical Details, Industry Impact, and Future Implications. Otherwise provide complete but concise answer>`

const analystSystemPrompt = "You are a highly skilled analyst who excels at synthesizing information and providing actionable insights."

const (
	thinkingErrorReply = "I encountered an error in my thinking process. Please try again."
	exhaustedReply     = "I reached the maximum number of steps but couldn't complete the goal. Please try rephrasing your request."
	defaultFinalAnswer = "Goal completed successfully."
)

func stepsText(steps []agent.Step) string {
	if len(steps) == 0 {
		return "None"
	}
	lines := make([]string, 0, len(steps))
	for i, s := range steps {
		result := s.Result
		if result == "" {
			result = "None"
		}
		lines = append(lines, fmt.Sprintf("%d. Thought: %s\n   Action: %s\n   Result: %s", i+1, s.Thought, s.Action, result))
	}
	return strings.Join(lines, "\n")
}

func plannerUserPrompt(goal string, steps []agent.Step) string {
	return fmt.Sprintf("Goal: %s\n\nPrevious Steps:\n%s\n\nWhat should be done next?", goal, stepsText(steps))
}

func analysisPrompt(goal, results string) string {
	return fmt.Sprintf(`You are an expert analyst. A user asked: "%[1]s"

I have gathered the following search results for you to analyze:

%[2]s

Please provide a comprehensive analysis that:

1. **Synthesizes the key insights** from these search results
2. **Directly addresses the user's question** about "%[1]s"
3. **Provides actionable insights and recommendations**
4. **Identifies patterns, trends, or important considerations**
5. **Offers a clear, well-structured response**

If this is about a business idea, provide:
- Feasibility analysis
- Market considerations
- Key challenges and opportunities
- Recommendations for next steps

If this is about news/trends, provide:
- Summary of key developments
- Analysis of implications
- Context and background
- Future outlook

Make your response detailed, insightful, and valuable to the user. Focus on analysis and synthesis, not just summarizing the search results.`, goal, results)
}

// 用户要求详细回答但 LLM 给的答案过短时使用的结构化模板
func detailedTemplate(overview, findings string) string {
	return fmt.Sprintf(`## Comprehensive Analysis

### Overview
%s

### Key Findings

%s

### Analysis and Implications

**Industry Impact**: These findings show how the topic is evolving across sectors and where adoption is heading.

**Technical Advancement**: The results point to concrete technical progress that may change how the topic is approached day to day.

**Market Dynamics**: Commercial activity around the topic signals where investment and attention are concentrating.

**Future Implications**: Expect further developments; revisit reliable sources regularly to stay current.

### What This Means for Users

**For Individuals**: Use the findings above as a starting point and verify details against the linked sources.

**For Businesses**: Consider how these developments affect your operations, customers and competitors.`, overview, findings)
}
