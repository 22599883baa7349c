// Package llm defines the provider-neutral chat model contract used by the
// tool-calling orchestrator: role-tagged messages, tool definitions, tool
// calls and model configuration. Concrete providers live in sub-packages and
// are selected through the provider factory.
package llm
