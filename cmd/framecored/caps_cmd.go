// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mediaforge/framecore/internal/codec"
	fclog "github.com/mediaforge/framecore/internal/log"
)

// runCapsCLI probes ffmpeg capabilities and prints or exports them.
// Used by operators to check a host before deploying the daemon.
func runCapsCLI(args []string) int {
	fs := flag.NewFlagSet("caps", flag.ContinueOnError)
	ffmpegPath := fs.String("ffmpeg", "ffmpeg", "ffmpeg binary to probe")
	vaapiDevice := fs.String("vaapi-device", "/dev/dri/renderD128", "render node for the VAAPI probe")
	jsonOut := fs.String("json", "", "write capability snapshot to this file instead of stdout")
	timeout := fs.Duration("timeout", 30*time.Second, "probe timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	fclog.Configure(fclog.Config{Level: "warn", Service: "framecore"})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	mgr := codec.NewManager(codec.Config{
		FFmpegPath:  *ffmpegPath,
		VAAPIDevice: *vaapiDevice,
	})
	if err := mgr.Detect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "codec detection failed: %v\n", err)
		return 1
	}

	if *jsonOut != "" {
		if err := mgr.ExportJSON(*jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
			return 1
		}
		fmt.Printf("capability snapshot written to %s\n", *jsonOut)
		return 0
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(mgr.Snapshot()); err != nil {
		fmt.Fprintf(os.Stderr, "encode failed: %v\n", err)
		return 1
	}
	return 0
}
