// Tether CI
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
package main

import (
	"context"

	"dagger/tether/internal/dagger"
)

// Tether is the main module for the tether CI pipeline
type Tether struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Tether CI module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", "build", "tmp", "_examples"]
	source *dagger.Directory,
) *Tether {
	return &Tether{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with gcc and
// libsqlite3-dev for mattn/go-sqlite3, CGO enabled, and the project source
// mounted.
func (t *Tether) goContainer(platform dagger.Platform) *dagger.Container {
	return dag.Container(dagger.ContainerOpts{Platform: platform}).
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build-"+string(platform))).
		WithWorkdir("/src").
		WithDirectory("/src", t.Source)
}

// Test runs the unit tests. Postgres and Kafka tests are skipped unless
// their environment variables are set.
//
// +check
func (t *Tether) Test(ctx context.Context) (string, error) {
	return t.goContainer("").
		WithExec([]string{"go", "test", "-race", "./..."}).
		Stdout(ctx)
}

// Vet runs go vet over the module.
//
// +check
func (t *Tether) Vet(ctx context.Context) (string, error) {
	return t.goContainer("").
		WithExec([]string{"go", "vet", "./..."}).
		Stdout(ctx)
}
