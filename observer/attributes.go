package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for catalyst observability spans and metrics.
var (
	AttrLLMModel    = attribute.Key("llm.model")
	AttrLLMProvider = attribute.Key("llm.provider")
	AttrLLMMethod   = attribute.Key("llm.method")

	AttrTokensInput  = attribute.Key("llm.tokens.input")
	AttrTokensOutput = attribute.Key("llm.tokens.output")
	AttrCostUSD      = attribute.Key("llm.cost_usd")

	AttrToolName         = attribute.Key("tool.name")
	AttrToolStatus       = attribute.Key("tool.status")
	AttrToolResultLength = attribute.Key("tool.result_length")

	AttrAgentStatus         = attribute.Key("agent.status")
	AttrAgentMessageLength  = attribute.Key("agent.message_length")
	AttrAgentResponseLength = attribute.Key("agent.response_length")
)
