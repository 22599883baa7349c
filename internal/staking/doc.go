// Package staking exposes Polkadot nomination-pool operations as agent tools.
//
// Chain access goes through the Backend interface. MemoryBackend simulates the
// NominationPools pallet from YAML fixtures and CachedBackend adds a Redis
// cache in front of pool listings. Tools and the staking system prompt are
// built on top of any Backend.
package staking
