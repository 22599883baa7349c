// Package web3 houses EVM connectivity for the agent's read-only chain tools:
// chain definitions loaded from YAML, the Client abstraction implemented by
// the ethereum subpackage, and token unit conversion helpers.
package web3
