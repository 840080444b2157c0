package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoRouteVersionNotProvided(t *testing.T) {
	endpoint := baseURL + "/"
	resp, err := doSimpleReq("GET", endpoint)
	assert.NoError(t, err)
	assert.Equal(t,
		"{\"error\":\"Version not provided, please provide a valid version in the path such as v1\"}",
		resp)
}

func TestNoRoute(t *testing.T) {
	endpoint := apiURL
	resp, err := doSimpleReq("GET", endpoint)
	assert.NoError(t, err)
	assert.Equal(t,
		"{\"error\":\"404 page not found\"}",
		resp)
}
