package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLast(t *testing.T) {
	var content strings.Builder
	var all []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		all = append(all, line)
	}

	tests := []struct {
		name string
		n    int
		want []string
	}{
		{"zero", 0, nil},
		{"negative", -1, nil},
		{"partial", 5, all[5:]},
		{"exactly all", 10, all},
		{"more than exists", 20, all},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadLast(strings.NewReader(content.String()), tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadLast_UnterminatedLastLine(t *testing.T) {
	got, err := ReadLast(strings.NewReader("x\ny\nz"), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "z"}, got)
}

func TestReadLast_LongLinesAndCR(t *testing.T) {
	long := strings.Repeat("x", 3*1024*1024)
	got, err := ReadLast(strings.NewReader("a\r\n"+long+"\nb\n"), 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a\r", got[0])
	assert.Equal(t, long, got[1])
	assert.Equal(t, "b", got[2])
}

func TestSeedChunk_LimitedToSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("x\ny\nz\nlater\n"), 0o644))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	chunk, err := seedChunk(file, int64(len("x\ny\nz\n")), 2)
	require.NoError(t, err)
	assert.Equal(t, "y\nz\n", string(chunk))

	chunk, err = seedChunk(file, 0, 2)
	require.NoError(t, err)
	assert.Nil(t, chunk)
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "file1.log")
	newer := filepath.Join(dir, "file2.log")
	require.NoError(t, os.WriteFile(older, []byte("a\n"), 0o644))
	require.NoError(t, os.WriteFile(newer, []byte("b\n"), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "file3.log"), 0o755))

	t.Run("literal passes through", func(t *testing.T) {
		got, err := Resolve(Config{Directory: dir, Target: "missing.log"})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "missing.log"), got)
	})

	t.Run("glob picks most recent file", func(t *testing.T) {
		got, err := Resolve(Config{Directory: dir, Target: "file*.log"})
		require.NoError(t, err)
		assert.Equal(t, newer, got)
	})

	t.Run("glob without match", func(t *testing.T) {
		_, err := Resolve(Config{Directory: dir, Target: "nothing*.log"})
		assert.ErrorIs(t, err, ErrNoMatch)
	})
}

func TestConfig_PathAndValidate(t *testing.T) {
	dir := t.TempDir()

	assert.Equal(t, dir+string(os.PathSeparator)+"app.log", Config{Directory: dir, Target: "app.log"}.Path())
	assert.Equal(t, "/var/log/app.log", Config{Directory: "/var/log/", Target: "/app.log"}.Path())

	file := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Directory: dir, Target: "app.log"}, false},
		{"empty directory", Config{Target: "app.log"}, true},
		{"blank target", Config{Directory: dir, Target: "  "}, true},
		{"negative seed", Config{Directory: dir, Target: "a", SeedLines: -1}, true},
		{"negative poll", Config{Directory: dir, Target: "a", PollInterval: -time.Second}, true},
		{"missing directory", Config{Directory: filepath.Join(dir, "nope"), Target: "a"}, true},
		{"directory is a file", Config{Directory: file, Target: "a"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfigInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
