package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukasnee/ucprof/internal/ucprof"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ucprof.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	opts := Default()
	assert.Equal(t, uint64(480000000), opts.ClockHz)
	assert.Equal(t, uint32(0x90000000), opts.FirmwareBase)
	assert.Equal(t, uint32(0x800000), opts.FirmwareSize)
	assert.Equal(t, 10, opts.Top)
	assert.Nil(t, opts.Begin)
	assert.Nil(t, opts.End)
}

func TestReadFileApply(t *testing.T) {
	path := writeConfig(t, `
clk-freq: 216000000
fw-base: "0x08000000"
fw-size: 0x100000
begin: 1.5
end: "2.25"
top: 3
no-color: true
verbosity: 2
out-dir: profiles
`)
	file, err := ReadFile(path)
	require.NoError(t, err)

	opts := Default()
	require.NoError(t, file.Apply(&opts, nil))

	assert.Equal(t, uint64(216000000), opts.ClockHz)
	assert.Equal(t, uint32(0x08000000), opts.FirmwareBase)
	assert.Equal(t, uint32(0x100000), opts.FirmwareSize)
	require.NotNil(t, opts.Begin)
	assert.Equal(t, 1.5, *opts.Begin)
	require.NotNil(t, opts.End)
	assert.Equal(t, 2.25, *opts.End)
	assert.Equal(t, 3, opts.Top)
	assert.True(t, opts.NoColor)
	assert.Equal(t, 2, opts.Verbosity)
	assert.Equal(t, "profiles", opts.OutDir)
}

func TestApplySkipsExplicitFlags(t *testing.T) {
	file := File{KeyTop: 3, KeyClockFreq: 1000}
	opts := Default()
	opts.Top = 7
	require.NoError(t, file.Apply(&opts, func(key string) bool { return key == KeyTop }))
	assert.Equal(t, 7, opts.Top)
	assert.Equal(t, uint64(1000), opts.ClockHz)
}

func TestApplyErrors(t *testing.T) {
	opts := Default()
	assert.Error(t, File{"colour": true}.Apply(&opts, nil))
	assert.Error(t, File{KeyTop: "many"}.Apply(&opts, nil))
}

func TestReadFileErrors(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = ReadFile(writeConfig(t, "top: [1, 2"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	opts := Default()
	assert.ErrorIs(t, opts.Validate(), ucprof.ErrMissingInput)

	opts.SymbolsPath, opts.TracePath = "fw.nm", "trace.bin"
	assert.NoError(t, opts.Validate())

	begin, end := 2.0, 1.0
	opts.Begin, opts.End = &begin, &end
	assert.Error(t, opts.Validate())

	opts = Default()
	opts.SymbolsPath, opts.TracePath = "fw.nm", "trace.bin"
	opts.ClockHz = 0
	assert.Error(t, opts.Validate())
}
