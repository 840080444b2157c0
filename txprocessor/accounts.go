package txprocessor

import "github.com/hermeznetwork/forge-node/common"

// SmeltAccounts are the accounts referenced by a Smelt
type SmeltAccounts struct {
	Market    common.Identity
	User      common.Identity
	UserOre   common.Identity
	UserCoal  common.Identity
	UserIngot common.Identity
}

// UnsmeltAccounts are the accounts referenced by an Unsmelt
type UnsmeltAccounts struct {
	Market    common.Identity
	User      common.Identity
	UserIngot common.Identity
	UserOre   common.Identity
}

// MintAccounts are the accounts referenced by a MintIngot
type MintAccounts struct {
	Market    common.Identity
	Authority common.Identity
	// Recipient is the ingot token account credited
	Recipient common.Identity
}

// TransferAccounts are the accounts referenced by a TransferOre or a
// TransferIngot. Authority must own Source.
type TransferAccounts struct {
	Market      common.Identity
	Authority   common.Identity
	Source      common.Identity
	Destination common.Identity
}

// InitializeAccounts are the accounts referenced by an Initialize
type InitializeAccounts struct {
	Market    common.Identity
	Authority common.Identity
	OreMint   common.Identity
	IngotMint common.Identity
	CoalMint  common.Identity
	OreVault  common.Identity
}

// UpdateParamsAccounts are the accounts referenced by an UpdateParams
type UpdateParamsAccounts struct {
	Market    common.Identity
	Authority common.Identity
}
