// SPDX-License-Identifier: MIT

package codec

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner replays canned output per argument signature.
type fakeRunner struct {
	codecs   string
	hwaccels string
	version  string
	calls    int
}

func (r *fakeRunner) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	r.calls++
	last := args[len(args)-1]
	switch last {
	case "-codecs":
		if r.codecs == "" {
			return nil, errors.New("exit status 1")
		}
		return []byte(r.codecs), nil
	case "-hwaccels":
		if r.hwaccels == "" {
			return nil, errors.New("exit status 1")
		}
		return []byte(r.hwaccels), nil
	case "-version":
		return []byte("ffmpeg version " + r.version + "\n"), nil
	}
	return nil, errors.New("unexpected invocation")
}

func statOK(string) (os.FileInfo, error) {
	fi, err := os.Stat(os.DevNull)
	if err != nil {
		return nil, err
	}
	return fi, nil
}

func statMissing(string) (os.FileInfo, error) {
	return nil, fs.ErrNotExist
}

func TestDetect(t *testing.T) {
	runner := &fakeRunner{codecs: codecsFixture, hwaccels: hwaccelsFixture, version: "6.1.1"}
	mgr := NewManager(Config{Runner: runner, Stat: statOK})

	require.NoError(t, mgr.Detect(context.Background()))
	assert.True(t, mgr.Detected())
	assert.Equal(t, "6.1.1", mgr.Version())
	assert.Len(t, mgr.Codecs(), 7)
	assert.Equal(t, []string{"cuda", "vaapi"}, mgr.HWAccels())

	assert.True(t, mgr.NVDECAvailable())
	assert.True(t, mgr.NVENCAvailable())
	assert.True(t, mgr.VAAPIAvailable())
	assert.False(t, mgr.VideoToolboxAvailable())
	assert.False(t, mgr.D3D11VAAvailable())

	info, err := mgr.CodecByName("h264")
	require.NoError(t, err)
	assert.Equal(t, IDH264, info.ID)

	info, err = mgr.CodecByID(IDHEVC)
	require.NoError(t, err)
	assert.Equal(t, "hevc", info.Name)

	_, err = mgr.CodecByName("theora")
	assert.ErrorIs(t, err, ErrCodecNotFound)
	_, err = mgr.CodecByID(IDProRes)
	assert.ErrorIs(t, err, ErrCodecNotFound)
}

func TestDetectCodecScanFailureIsFatal(t *testing.T) {
	runner := &fakeRunner{version: "6.1.1"}
	mgr := NewManager(Config{Runner: runner})

	err := mgr.Detect(context.Background())
	require.Error(t, err)
	assert.False(t, mgr.Detected())
}

func TestDetectHWAccelFailureIsIsolated(t *testing.T) {
	runner := &fakeRunner{codecs: codecsFixture, version: "6.1.1"}
	mgr := NewManager(Config{Runner: runner, Stat: statOK})

	require.NoError(t, mgr.Detect(context.Background()))
	assert.Empty(t, mgr.HWAccels())
	// NVENC is inferred from encoder names, not from the hwaccel list.
	assert.True(t, mgr.NVENCAvailable())
	// VAAPI needs the hwaccel entry, which is gone.
	assert.False(t, mgr.VAAPIAvailable())
}

func TestVAAPIRequiresRenderNode(t *testing.T) {
	runner := &fakeRunner{codecs: codecsFixture, hwaccels: hwaccelsFixture, version: "6.1.1"}
	mgr := NewManager(Config{Runner: runner, Stat: statMissing})

	require.NoError(t, mgr.Detect(context.Background()))
	assert.False(t, mgr.VAAPIAvailable())
	assert.True(t, mgr.NVDECAvailable(), "other backends unaffected")
}

func TestDecodersEncodersFor(t *testing.T) {
	runner := &fakeRunner{codecs: codecsFixture, hwaccels: hwaccelsFixture, version: "6.1.1"}
	mgr := NewManager(Config{Runner: runner, Stat: statOK})
	require.NoError(t, mgr.Detect(context.Background()))

	decoders := mgr.DecodersFor("yuv420p")
	names := make([]string, 0, len(decoders))
	for _, d := range decoders {
		names = append(names, d.Name)
	}
	assert.ElementsMatch(t, []string{"h264", "hevc", "vp9"}, names)

	encoders := mgr.EncodersFor("yuvj420p")
	require.Len(t, encoders, 1)
	assert.Equal(t, "mjpeg", encoders[0].Name)

	assert.Empty(t, mgr.DecodersFor("rgba"))
}

func TestDetectUsesStore(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "cache"))
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	runner := &fakeRunner{codecs: codecsFixture, hwaccels: hwaccelsFixture, version: "6.1.1"}
	mgr := NewManager(Config{Runner: runner, Store: store, Stat: statOK})
	require.NoError(t, mgr.Detect(context.Background()))
	firstCalls := runner.calls

	// A second manager with the same binary identity loads from the
	// cache and never runs the codec scan.
	mgr2 := NewManager(Config{Runner: runner, Store: store, Stat: statOK})
	require.NoError(t, mgr2.Detect(context.Background()))
	assert.Equal(t, firstCalls+1, runner.calls, "only the identity version check runs")
	assert.True(t, mgr2.NVENCAvailable())
	assert.Len(t, mgr2.Codecs(), 7)
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	_, ok := store.Load("ffmpeg@6.1.1")
	assert.False(t, ok)

	res := probeResult{
		Version:  "6.1.1",
		Codecs:   parseCodecs([]byte(codecsFixture)),
		HWAccels: []string{"cuda"},
		Backends: map[Backend]bool{BackendNVDEC: true},
	}
	require.NoError(t, store.Save("ffmpeg@6.1.1", res))

	got, ok := store.Load("ffmpeg@6.1.1")
	require.True(t, ok)
	assert.Equal(t, res.Version, got.Version)
	assert.Len(t, got.Codecs, len(res.Codecs))
	assert.Equal(t, res.Backends, got.Backends)

	_, ok = store.Load("ffmpeg@7.0")
	assert.False(t, ok, "a different binary identity misses")
}

func TestSnapshotAndExport(t *testing.T) {
	runner := &fakeRunner{codecs: codecsFixture, hwaccels: hwaccelsFixture, version: "6.1.1"}
	mgr := NewManager(Config{Runner: runner, Stat: statOK})
	require.NoError(t, mgr.Detect(context.Background()))

	snap := mgr.Snapshot()
	assert.Equal(t, "6.1.1", snap.Version)
	assert.True(t, snap.Backends[BackendNVENC])

	path := filepath.Join(t.TempDir(), "caps.json")
	require.NoError(t, mgr.ExportJSON(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ffmpeg_version": "6.1.1"`)
	assert.Contains(t, string(data), `"h264"`)
}
