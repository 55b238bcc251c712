// Package openaicompat implements llm.Provider for services that speak the
// OpenAI Chat Completions protocol.
//
// Groq is the only such service agentlab talks to; NewGroq fills in its
// base URL and default model. Other compatible endpoints (local gateways,
// test servers) use New directly:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName: "local",
//	    APIKey:       key,
//	    BaseURL:      "http://localhost:8080",
//	    DefaultModel: "llama3",
//	}, logger)
package openaicompat
