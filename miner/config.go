package miner

import (
	"time"

	"github.com/colorfulnotion/devchain/common"
	"github.com/colorfulnotion/devchain/vm"
	"github.com/holiman/uint256"
)

const (
	DefaultInterval = 10 * time.Second   // Pause between two blocks
	DefaultGasLimit = uint64(1<<63 - 1) // Block gas limit written to every header
)

// Config holds the block producer settings.
type Config struct {
	Interval    time.Duration
	GasLimit    uint64
	ChainID     uint64
	Beneficiary common.Address // Zero means the node address
	BlockReward *uint256.Int   // Credited to the beneficiary per block; nil means none
	NodeKeyHex  string         // secp256k1 key in hex; generated when empty

	// MaxResolutionSteps bounds the requirement round-trips per transaction.
	// Zero leaves them unbounded.
	MaxResolutionSteps int
	SkipEmptyBlocks    bool
}

// DefaultConfig returns the default block producer configuration
func DefaultConfig() Config {
	return Config{
		Interval: DefaultInterval,
		GasLimit: DefaultGasLimit,
		ChainID:  vm.DefaultChainID,
	}
}
