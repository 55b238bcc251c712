package intelligent

import (
	"fmt"
	"strings"
)

const functionCallingPrompt = `You are an intelligent AI assistant with access to real-time tools. You MUST use tools when the user asks for current information.

Available tools: %s

Based on the user's request, you should intelligently decide which tools to use:

1. **Web Search (search_web)**: REQUIRED for current events, prices, recent information, facts not in your training data, "what is X", "who is Y", etc.
2. **Weather (get_weather)**: REQUIRED for weather-related queries about any location
3. **News (get_latest_news)**: REQUIRED for current news, headlines, recent events
4. **Web Content (fetch_web_content)**: Use when user provides a specific URL to read
5. **Date/Time (get_current_datetime)**: Use when user asks about current time or date

The user is asking: %s

Suggested tools for this query: [%s]

CRITICAL RULES:
- ALWAYS use search_web for prices, costs, current events, recent information
- If user asks about prices (petrol, gas, etc.), MUST use search_web
- If user asks about current events, MUST use search_web or get_latest_news
- If asking about weather, MUST use get_weather
- Use specific, relevant search terms
- NEVER answer without using tools for current information
- Provide comprehensive responses based on tool results

You MUST call the appropriate tools. Do not provide answers without using tools when current information is requested.`

func systemPrompt(toolNames []string, input string, suggested []string) string {
	return fmt.Sprintf(functionCallingPrompt, strings.Join(toolNames, ", "), input, strings.Join(suggested, ", "))
}

var searchInstructions = map[route]struct{ intro, instructions string }{
	routePrice: {
		"You are a helpful assistant analyzing search results for a price inquiry.",
		`- Extract specific price information if available
- Look for currency amounts, rates, or costs
- If multiple sources show different prices, mention the range
- Include the source/timeframe if mentioned
- If no specific price is found, mention what related information is available
- Be precise about what the price refers to (per liter, per gallon, etc.)
- Include any context about recent changes or trends if mentioned`,
	},
	routeNews: {
		"You are a helpful assistant analyzing search results for a current events inquiry.",
		`- Summarize the most recent and relevant information
- Include dates/timeframes when available
- Mention multiple sources if they provide different perspectives
- Focus on factual information from the search results
- If results are about different topics, organize them clearly`,
	},
	routeInformation: {
		"You are a helpful assistant analyzing search results for an information inquiry.",
		`- Provide a comprehensive answer based on the search results
- Include key facts and details found in the results
- Organize information logically
- Cite different sources when they provide complementary information
- Be accurate and don't add information not in the search results`,
	},
}

func searchPrompt(r route, input, results string) string {
	p, ok := searchInstructions[r]
	if !ok {
		return fmt.Sprintf("Based on the following search results, provide a helpful answer to the user's query.\n\n"+
			"User Query: \"%s\"\n\nSearch Results:\n%s\n\n"+
			"Please provide a comprehensive, accurate response based on the information found.", input, results)
	}
	return fmt.Sprintf("%s\n\nUser Query: \"%s\"\n\nSearch Results:\n%s\n\nInstructions:\n%s", p.intro, input, results, p.instructions)
}

func weatherPrompt(input, weather string) string {
	return fmt.Sprintf("The user asked: \"%s\"\n\nWeather Information:\n%s\n\n"+
		"Please provide a natural, conversational response about the weather based on this information.", input, weather)
}

func dateTimePrompt(input, now string) string {
	return fmt.Sprintf("The user asked: \"%s\"\n\nCurrent Date and Time:\n%s\n\n"+
		"Please provide a natural, conversational response about the current date/time based on this information.", input, now)
}

func synthesisPrompt(results string, used []string) string {
	return fmt.Sprintf(`Based on the following tool results, please provide a comprehensive, natural response to the user's original question.

Tool Results:
%s

Instructions:
- Synthesize the information into a coherent, helpful response
- Present the information in a natural, conversational way
- If multiple tools were used, integrate all relevant information
- Include specific details from the tool results
- Be accurate and don't add information not provided by the tools
- If any tool failed, mention limitations appropriately

Tools used: %s`, results, strings.Join(used, ", "))
}

const (
	needLocationReply = "Please specify a location for the weather query (e.g., 'weather in Tokyo' or 'temperature in New York')."
	weatherErrorReply = "I apologize, but I encountered an error while getting weather information. Please try again with a specific location."
	timeErrorReply    = "I apologize, but I encountered an error while getting the current date/time. Please try again."
	searchErrorReply  = "I apologize, but I encountered an error while searching for information about '%s'. Please try rephrasing your query."
)
