package parsers

import (
	"fmt"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/db/historydb"
	"github.com/hermeznetwork/tracerr"
	"gopkg.in/go-playground/validator.v9"
)

// OperationFilter struct to get the hash uri param from /operations/:hash request
type OperationFilter struct {
	Hash string `uri:"hash" binding:"required"`
}

// ParseOperationFilter parses the operation hash uri param
func ParseOperationFilter(c *gin.Context) (ethCommon.Hash, error) {
	var filter OperationFilter
	if err := c.ShouldBindUri(&filter); err != nil {
		return ethCommon.Hash{}, tracerr.Wrap(err)
	}
	return parseHash(filter.Hash, "hash")
}

func parseHash(s, name string) (ethCommon.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != ethCommon.HashLength {
		return ethCommon.Hash{}, tracerr.Wrap(fmt.Errorf(
			"invalid %s, must be a 0x prefixed hex string of %d bytes", name, ethCommon.HashLength))
	}
	return ethCommon.BytesToHash(b), nil
}

// OperationsFilters struct for holding filters from the /operations request
type OperationsFilters struct {
	Market      string `form:"market"`
	Instruction string `form:"instruction"`
	Success     *bool  `form:"success"`

	Pagination
}

// OperationsFiltersStructValidation func to validate operations filters
func OperationsFiltersStructValidation(sl validator.StructLevel) {
	ef := sl.Current().Interface().(OperationsFilters)

	if ef.Instruction != "" {
		if _, err := common.InstructionTagFromString(ef.Instruction); err != nil {
			sl.ReportError(ef.Instruction, "instruction", "Instruction", "instruction", "")
		}
	}
}

// ParseOperationsFilters func to parse operations filters from query to the GetOperationsAPIRequest
func ParseOperationsFilters(c *gin.Context, v *validator.Validate) (historydb.GetOperationsAPIRequest, error) {
	var filters OperationsFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		return historydb.GetOperationsAPIRequest{}, tracerr.Wrap(err)
	}
	if err := v.Struct(filters); err != nil {
		return historydb.GetOperationsAPIRequest{}, tracerr.Wrap(err)
	}

	market, err := parseOptionalIdentity(filters.Market, "market")
	if err != nil {
		return historydb.GetOperationsAPIRequest{}, tracerr.Wrap(err)
	}
	var tag *common.InstructionTag
	if filters.Instruction != "" {
		t, err := common.InstructionTagFromString(filters.Instruction)
		if err != nil {
			return historydb.GetOperationsAPIRequest{}, tracerr.Wrap(err)
		}
		tag = &t
	}

	return historydb.GetOperationsAPIRequest{
		Market:     market,
		Tag:        tag,
		Success:    filters.Success,
		Pagination: filters.Pagination.toDB(),
	}, nil
}
