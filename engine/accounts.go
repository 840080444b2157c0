package engine

import (
	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/governance"
	"github.com/hermeznetwork/forge-node/txprocessor"
	"github.com/hermeznetwork/tracerr"
)

// accounts returns the first n positional accounts of op, or
// common.ErrNotEnoughAccountKeys
func accounts(op *common.Operation, n int) ([]common.Identity, error) {
	ids := make([]common.Identity, n)
	for i := range ids {
		id, err := op.AccountAt(i)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		ids[i] = id
	}
	return ids, nil
}

func smeltAccounts(op *common.Operation) (txprocessor.SmeltAccounts, error) {
	ids, err := accounts(op, 5) //nolint:gomnd
	if err != nil {
		return txprocessor.SmeltAccounts{}, tracerr.Wrap(err)
	}
	return txprocessor.SmeltAccounts{
		Market:    ids[0],
		User:      ids[1],
		UserOre:   ids[2],
		UserCoal:  ids[3],
		UserIngot: ids[4],
	}, nil
}

func unsmeltAccounts(op *common.Operation) (txprocessor.UnsmeltAccounts, error) {
	ids, err := accounts(op, 4) //nolint:gomnd
	if err != nil {
		return txprocessor.UnsmeltAccounts{}, tracerr.Wrap(err)
	}
	return txprocessor.UnsmeltAccounts{
		Market:    ids[0],
		User:      ids[1],
		UserIngot: ids[2],
		UserOre:   ids[3],
	}, nil
}

func mintAccounts(op *common.Operation) (txprocessor.MintAccounts, error) {
	ids, err := accounts(op, 3) //nolint:gomnd
	if err != nil {
		return txprocessor.MintAccounts{}, tracerr.Wrap(err)
	}
	return txprocessor.MintAccounts{
		Market:    ids[0],
		Authority: ids[1],
		Recipient: ids[2],
	}, nil
}

func transferAccounts(op *common.Operation) (txprocessor.TransferAccounts, error) {
	ids, err := accounts(op, 4) //nolint:gomnd
	if err != nil {
		return txprocessor.TransferAccounts{}, tracerr.Wrap(err)
	}
	return txprocessor.TransferAccounts{
		Market:      ids[0],
		Authority:   ids[1],
		Source:      ids[2],
		Destination: ids[3],
	}, nil
}

func initializeAccounts(op *common.Operation) (txprocessor.InitializeAccounts, error) {
	ids, err := accounts(op, 6) //nolint:gomnd
	if err != nil {
		return txprocessor.InitializeAccounts{}, tracerr.Wrap(err)
	}
	return txprocessor.InitializeAccounts{
		Market:    ids[0],
		Authority: ids[1],
		OreMint:   ids[2],
		IngotMint: ids[3],
		CoalMint:  ids[4],
		OreVault:  ids[5],
	}, nil
}

func updateParamsAccounts(op *common.Operation) (txprocessor.UpdateParamsAccounts, error) {
	ids, err := accounts(op, 2) //nolint:gomnd
	if err != nil {
		return txprocessor.UpdateParamsAccounts{}, tracerr.Wrap(err)
	}
	return txprocessor.UpdateParamsAccounts{Market: ids[0], Authority: ids[1]}, nil
}

func initializeGovernanceAccounts(op *common.Operation) (governance.InitializeAccounts, error) {
	ids, err := accounts(op, 3) //nolint:gomnd
	if err != nil {
		return governance.InitializeAccounts{}, tracerr.Wrap(err)
	}
	return governance.InitializeAccounts{
		Market:     ids[0],
		Authority:  ids[1],
		Governance: ids[2],
	}, nil
}

func proposeAccounts(op *common.Operation) (governance.ProposeAccounts, error) {
	ids, err := accounts(op, 2) //nolint:gomnd
	if err != nil {
		return governance.ProposeAccounts{}, tracerr.Wrap(err)
	}
	return governance.ProposeAccounts{Governance: ids[0], Proposer: ids[1]}, nil
}

func approveAccounts(op *common.Operation) (governance.ApproveAccounts, error) {
	ids, err := accounts(op, 3) //nolint:gomnd
	if err != nil {
		return governance.ApproveAccounts{}, tracerr.Wrap(err)
	}
	return governance.ApproveAccounts{
		Governance: ids[0],
		Proposal:   ids[1],
		Signer:     ids[2],
	}, nil
}
