package parsers

import (
	"github.com/gin-gonic/gin"
	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/db/historydb"
	"github.com/hermeznetwork/tracerr"
	"gopkg.in/go-playground/validator.v9"
)

// EventsFilters struct for holding filters from the /events request
type EventsFilters struct {
	Market        string `form:"market"`
	Type          string `form:"type"`
	OperationHash string `form:"operationHash"`

	Pagination
}

// EventsFiltersStructValidation func to validate events filters
func EventsFiltersStructValidation(sl validator.StructLevel) {
	ef := sl.Current().Interface().(EventsFilters)

	if ef.Type != "" && !common.EventType(ef.Type).Valid() {
		sl.ReportError(ef.Type, "type", "Type", "eventtype", "")
	}
}

// ParseEventsFilters func to parse events filters from query to the GetEventsAPIRequest
func ParseEventsFilters(c *gin.Context, v *validator.Validate) (historydb.GetEventsAPIRequest, error) {
	var filters EventsFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		return historydb.GetEventsAPIRequest{}, tracerr.Wrap(err)
	}
	if err := v.Struct(filters); err != nil {
		return historydb.GetEventsAPIRequest{}, tracerr.Wrap(err)
	}

	market, err := parseOptionalIdentity(filters.Market, "market")
	if err != nil {
		return historydb.GetEventsAPIRequest{}, tracerr.Wrap(err)
	}
	req := historydb.GetEventsAPIRequest{
		Market:     market,
		Pagination: filters.Pagination.toDB(),
	}
	if filters.Type != "" {
		typ := common.EventType(filters.Type)
		req.Type = &typ
	}
	if filters.OperationHash != "" {
		hash, err := parseHash(filters.OperationHash, "operationHash")
		if err != nil {
			return historydb.GetEventsAPIRequest{}, tracerr.Wrap(err)
		}
		req.OperationHash = &hash
	}
	return req, nil
}
