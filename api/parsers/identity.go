package parsers

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/tracerr"
)

// IdentityFilter struct to get the identity uri param of /markets/:id,
// /governances/:id and /proposals/:id requests
type IdentityFilter struct {
	ID string `uri:"id" binding:"required"`
}

// ParseIdentityFilter parses the identity uri param
func ParseIdentityFilter(c *gin.Context) (common.Identity, error) {
	var filter IdentityFilter
	if err := c.ShouldBindUri(&filter); err != nil {
		return common.EmptyIdentity, tracerr.Wrap(err)
	}
	return parseIdentity(filter.ID, "id")
}

func parseIdentity(s, name string) (common.Identity, error) {
	id, err := common.HexToIdentity(s)
	if err != nil {
		return common.EmptyIdentity, tracerr.Wrap(fmt.Errorf(
			"invalid %s, must be a 0x prefixed hex string of %d bytes", name, common.IdentityLen))
	}
	return id, nil
}

func parseOptionalIdentity(s, name string) (*common.Identity, error) {
	if s == "" {
		return nil, nil
	}
	id, err := parseIdentity(s, name)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return &id, nil
}
