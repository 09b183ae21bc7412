package main

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	hexLine = regexp.MustCompile(`Secret \(hex, 32 bytes\): ([0-9a-f]+)`)
	urlLine = regexp.MustCompile(`JWT_SECRET \(url-safe, 64 bytes\): ([A-Za-z0-9_-]+)`)
)

func TestRun_Default(t *testing.T) {
	stdout := new(bytes.Buffer)
	require.NoError(t, run(nil, stdout, new(bytes.Buffer)))

	out := stdout.String()
	m := hexLine.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	raw, err := hex.DecodeString(m[1])
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	m = urlLine.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	raw, err = base64.RawURLEncoding.DecodeString(m[1])
	require.NoError(t, err)
	assert.Len(t, raw, 64)
}

func TestRun_Unique(t *testing.T) {
	a, b := new(bytes.Buffer), new(bytes.Buffer)
	require.NoError(t, run([]string{"--env"}, a, new(bytes.Buffer)))
	require.NoError(t, run([]string{"--env"}, b, new(bytes.Buffer)))
	assert.NotEqual(t, a.String(), b.String())
}

func TestRun_EnvLine(t *testing.T) {
	stdout := new(bytes.Buffer)
	require.NoError(t, run([]string{"--env", "--url-bytes", "48"}, stdout, new(bytes.Buffer)))

	line := strings.TrimSpace(stdout.String())
	require.True(t, strings.HasPrefix(line, "JWT_SECRET="), line)
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(line, "JWT_SECRET="))
	require.NoError(t, err)
	assert.Len(t, raw, 48)
}

func TestRun_TooShort(t *testing.T) {
	err := run([]string{"--hex-bytes", "8"}, new(bytes.Buffer), new(bytes.Buffer))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 random bytes")
}

func TestRun_InvalidFlag(t *testing.T) {
	err := run([]string{"--invalid"}, new(bytes.Buffer), new(bytes.Buffer))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag: --invalid")
}
