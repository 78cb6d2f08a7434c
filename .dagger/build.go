package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/tether/internal/dagger"
)

// Build and return a directory of tether binaries, one per platform.
// The sqlite driver needs cgo, so each platform builds natively in its own
// container instead of cross-compiling.
func (t *Tether) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	platforms := []dagger.Platform{"linux/amd64", "linux/arm64"}

	outputs := dag.Directory()
	for _, platform := range platforms {
		path := string(platform) + "/"

		build := t.goContainer(platform).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path + "tether", "./cli/tether"})

		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (t *Tether) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/papercomputeco/tether/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/papercomputeco/tether/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/papercomputeco/tether/pkg/utils.Buildtime=%s'", time.Now().UTC().Format(time.RFC3339)),
	}

	return t.Build(ctx, strings.Join(ldflags, " "))
}
