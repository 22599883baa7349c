// Package agent contains the tool-calling orchestrator: a bounded loop that
// sends the conversation to a chat model, executes the tools the model asks
// for in order, feeds their results back and stops on the first plain answer
// or when the iteration cap is reached. It also renders raw tool results into
// readable Markdown when the model's final answer omits them.
package agent
