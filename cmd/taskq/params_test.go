package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams_Empty(t *testing.T) {
	m, err := parseParams("")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestParseParams_JSONObject(t *testing.T) {
	m, err := parseParams(`{"a": 1, "b": "two"}`)
	require.NoError(t, err)
	assert.Equal(t, float64(1), m["a"])
	assert.Equal(t, "two", m["b"])
}

func TestParseParams_JSONObject_Invalid(t *testing.T) {
	_, err := parseParams(`{not json`)
	assert.Error(t, err)
}

func TestParseParams_KeyValuePairs(t *testing.T) {
	m, err := parseParams("a=1,b=hello,c=true")
	require.NoError(t, err)
	assert.Equal(t, float64(1), m["a"])
	assert.Equal(t, "hello", m["b"])
	assert.Equal(t, true, m["c"])
}

func TestParseParams_KeyValuePairs_StringFallback(t *testing.T) {
	m, err := parseParams("name=not-json-decodable-as-number")
	require.NoError(t, err)
	assert.Equal(t, "not-json-decodable-as-number", m["name"])
}

func TestParseParams_KeyValuePairs_MissingEquals(t *testing.T) {
	_, err := parseParams("novalue")
	assert.Error(t, err)
}
