// Package uniswap reads UniswapV2-style pools and ERC-20 tokens on EVM chains
// through eth_call and exposes the reads as agent tools. It never signs or
// sends transactions.
package uniswap
