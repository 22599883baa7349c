// Package knowledge serves a small static staking knowledge base to the agent
// through the search_staking_docs tool.
package knowledge
