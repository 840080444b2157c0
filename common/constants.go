package common

const (
	// MaxAmount is the upper bound of every amount parameter of an
	// operation, in base units
	MaxAmount uint64 = 1_000_000_000
	// MaxIngotSupply is the cap of total_ingots_minted, in base ingot
	// units
	MaxIngotSupply uint64 = 21_000_000
	// UnsmeltFeePercentage is the share of an unsmelt that stays locked in
	// the ore vault
	UnsmeltFeePercentage uint64 = 5
	// MaxSuccessRate is the highest success_rate a market can hold
	MaxSuccessRate uint8 = 100
	// MaxSigners is the maximum number of governance signers
	MaxSigners = 10
)

// AuthoritySeed is the first seed of every market signing authority
var AuthoritySeed = []byte("authority")
