package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	c := Default()
	err := c.Validate()
	assert.Nil(t, err, "%v", err)
}

func TestValidateRejectsBadRoadLength(t *testing.T) {
	c := Default()
	c.RoadLength = 0
	err := c.Validate()
	require.NotNil(t, err)
	assert.Equal(t, "road-length", err.Field)
}

func TestValidateRejectsBadDepartMethod(t *testing.T) {
	c := Default()
	c.DepartMethod = "bogus"
	err := c.Validate()
	require.NotNil(t, err)
	assert.Equal(t, "depart-method", err.Field)
}

func TestValidateRejectsCentralizedWithoutInfrastructure(t *testing.T) {
	c := Default()
	c.FormationStrategy = Centralized
	c.Infrastructures = 0
	err := c.Validate()
	require.NotNil(t, err)
	assert.Equal(t, "infrastructures", err.Field)
}

func TestValidateRejectsExcessiveDensity(t *testing.T) {
	c := Default()
	c.Density = 1e9
	err := c.Validate()
	require.NotNil(t, err)
	assert.Equal(t, "density", err.Field)
}
