package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cespare/xxhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipfs/go-chunkfile"
	"github.com/ipfs/go-chunkfile/chunkid"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"chunkfile"}, args...))
	return out.String(), err
}

// inputs writes the test payloads and returns the directory holding them.
func inputs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello world"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{"k":1}`), 0o644))
	return dir
}

func pack(t *testing.T, dir string, global ...string) string {
	t.Helper()
	out := filepath.Join(dir, "out.chunks")
	args := append(global, "pack", out,
		"GREETING="+filepath.Join(dir, "a.txt"),
		"DATAJSON="+filepath.Join(dir, "b.json"),
	)
	_, err := run(t, args...)
	require.NoError(t, err)
	return out
}

func TestList(t *testing.T) {
	dir := inputs(t)
	container := pack(t, dir)

	out, err := run(t, "list", "--hash", "--type", container)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	greeting := strings.Split(lines[0], "\t")
	require.Len(t, greeting, 5)
	assert.Equal(t, []string{"GREETING", "11 B", "8"}, greeting[:3])
	assert.True(t, strings.HasPrefix(greeting[3], "text/plain"), greeting[3])
	assert.Equal(t, fmt.Sprintf("%016x", xxhash.Sum64([]byte("hello world"))), greeting[4])

	data := strings.Split(lines[1], "\t")
	assert.Equal(t, []string{"DATAJSON", "7 B", "27", "application/json"}, data[:4])
}

func TestList_Shadowed(t *testing.T) {
	dir := inputs(t)
	container := filepath.Join(dir, "dup.chunks")
	_, err := run(t, "pack", container,
		"GREETING="+filepath.Join(dir, "a.txt"),
		"GREETING="+filepath.Join(dir, "b.json"),
	)
	require.NoError(t, err)

	out, err := run(t, "ls", container)
	require.NoError(t, err)
	assert.Equal(t, "GREETING\t11 B\t8\t(shadowed)\nGREETING\t7 B\t27\n", out)

	out, err = run(t, "cat", container, "GREETING")
	require.NoError(t, err)
	assert.Equal(t, `{"k":1}`, out)
}

func TestList_IdenticalDuplicateRecords(t *testing.T) {
	dir := inputs(t)
	single := filepath.Join(dir, "single.chunks")
	_, err := run(t, "pack", single, "GREETING="+filepath.Join(dir, "a.txt"))
	require.NoError(t, err)

	r, err := chunkfile.OpenReader(single)
	require.NoError(t, err)
	h := r.Header()
	chunks := r.Chunks()
	require.NoError(t, r.Close())
	require.Len(t, chunks, 1)

	var d chunkfile.Directory
	d.Add(chunks[0])
	d.Add(chunks[0])
	var buf bytes.Buffer
	buf.Write(mustRead(t, single)[:h.DirectoryOffset])
	_, err = d.WriteTo(&buf)
	require.NoError(t, err)
	h.FileSize = int64(buf.Len())
	patched := buf.Bytes()
	var hdr bytes.Buffer
	_, err = h.WriteTo(&hdr)
	require.NoError(t, err)
	copy(patched, hdr.Bytes())

	container := filepath.Join(dir, "twice.chunks")
	require.NoError(t, os.WriteFile(container, patched, 0o644))

	out, err := run(t, "ls", container)
	require.NoError(t, err)
	assert.Equal(t, "GREETING\t11 B\t8\t(shadowed)\nGREETING\t11 B\t8\n", out)
}

func TestCat(t *testing.T) {
	dir := inputs(t)
	container := pack(t, dir)

	out, err := run(t, "cat", container, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)

	target := filepath.Join(dir, "copy.json")
	_, err = run(t, "cat", container, "DATAJSON", target)
	require.NoError(t, err)
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, `{"k":1}`, string(got))

	_, err = run(t, "cat", container, "MISSING_")
	assert.ErrorIs(t, err, chunkfile.ErrNotFound)
	_, err = run(t, "cat", container)
	assert.Error(t, err)
}

func TestExtract(t *testing.T) {
	dir := inputs(t)
	container := pack(t, dir)
	target := filepath.Join(dir, "extracted")

	_, err := run(t, "extract", container, target)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(target, "GREETING.bin"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
	got, err = os.ReadFile(filepath.Join(target, "DATAJSON.bin"))
	require.NoError(t, err)
	assert.Equal(t, `{"k":1}`, string(got))
}

func TestProbe(t *testing.T) {
	dir := inputs(t)
	container := pack(t, dir, "--app", "PROBEAPP")
	plain := filepath.Join(dir, "a.txt")

	out, err := run(t, "probe", container, plain)
	require.NoError(t, err)
	assert.Equal(t, container+"\tcontainer\n"+plain+"\tnot a container\n", out)

	out, err = run(t, "--app", "OTHERAPP", "probe", container)
	require.NoError(t, err)
	assert.Equal(t, container+"\tnot a container\n", out)

	_, err = run(t, "probe", filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestInspect(t *testing.T) {
	dir := inputs(t)
	container := pack(t, dir, "--app", "INSPECT1")

	out, err := run(t, "inspect", "--verify", container)
	require.NoError(t, err)
	assert.Contains(t, out, "App id: INSPECT1(")
	assert.Contains(t, out, "Chunks: 2 (2 unique)")
	assert.Contains(t, out, "Payload: 18 B (18 bytes)")
	assert.Contains(t, out, "Min / avg / max chunk size: 7 / 9 / 11")

	_, err = run(t, "--variant", "sequential", "inspect", container)
	assert.Error(t, err)
}

func TestAppIDIsEnforced(t *testing.T) {
	dir := inputs(t)
	container := pack(t, dir, "--app", "APPONE__")

	_, err := run(t, "--app", "APPTWO__", "list", container)
	assert.ErrorIs(t, err, chunkfile.ErrFormat)
	_, err = run(t, "--app", "apporne_", "cat", container, "GREETING")
	assert.ErrorIs(t, err, chunkfile.ErrFormat)
	_, err = run(t, "--app", "APPONE__", "list", container)
	assert.NoError(t, err)
	_, err = run(t, "--app", "short", "list", container)
	assert.ErrorIs(t, err, chunkid.ErrNameTooShort)
}

func TestSequential(t *testing.T) {
	dir := inputs(t)
	container := pack(t, dir, "--variant", "sequential")

	assert.False(t, chunkfile.ProbeBytes(mustRead(t, container)))

	out, err := run(t, "--variant", "sequential", "list", container)
	require.NoError(t, err)
	assert.Equal(t, "GREETING\t11 B\t-\nDATAJSON\t7 B\t-\n", out)

	out, err = run(t, "--variant", "sequential", "cat", container, "DATAJSON")
	require.NoError(t, err)
	assert.Equal(t, `{"k":1}`, out)

	_, err = run(t, "list", container)
	assert.ErrorIs(t, err, chunkfile.ErrFormat)
}

func TestPack_Options(t *testing.T) {
	dir := inputs(t)
	container := pack(t, dir, "--app", "ALIGNED_")
	aligned := filepath.Join(dir, "aligned.chunks")
	_, err := run(t, "pack", "--align", "64B", "--padding", "1KiB", aligned,
		"GREETING="+filepath.Join(dir, "a.txt"),
		"DATAJSON="+filepath.Join(dir, "b.json"),
	)
	require.NoError(t, err)

	r, err := chunkfile.OpenReader(aligned)
	require.NoError(t, err)
	defer r.Close()
	for _, c := range r.Chunks() {
		assert.Zero(t, (chunkfile.HeaderSize+c.Offset)%64)
	}
	assert.GreaterOrEqual(t, r.Header().DataSize(), int64(1024))
	assert.Greater(t, len(mustRead(t, aligned)), len(mustRead(t, container)))
}

func TestPack_BadArguments(t *testing.T) {
	dir := inputs(t)
	out := filepath.Join(dir, "bad.chunks")
	for _, args := range [][]string{
		{"pack"},
		{"pack", out, "GREETING"},
		{"pack", out, "SHORT=" + filepath.Join(dir, "a.txt")},
		{"pack", out, "CHNKFILE=" + filepath.Join(dir, "a.txt")},
		{"pack", out, "GREETING=" + filepath.Join(dir, "missing")},
		{"--variant", "zip", "pack", out},
		{"pack", "--align", "lots", out},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, err := run(t, args...)
			assert.Error(t, err)
		})
	}
}

func TestParseChunkSources(t *testing.T) {
	got, err := parseChunkSources([]string{"greeting=a.txt", "DATAJSON=dir/b=c.json"})
	require.NoError(t, err)
	assert.Equal(t, []chunkSource{
		{id: chunkid.MustEncode("GREETING"), path: "a.txt"},
		{id: chunkid.MustEncode("DATAJSON"), path: "dir/b=c.json"},
	}, got)

	_, err = parseChunkSources([]string{"CHNKDIR0=x"})
	assert.ErrorIs(t, err, chunkid.ErrReserved)
	_, err = parseChunkSources([]string{"GREETING="})
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "A_B_C_D_", fileName(chunkid.MustEncode("a/b.c d ")))
	assert.Equal(t, "GREETING", fileName(chunkid.MustEncode("GREETING")))
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}
