// testpack runs a package of tests with deterministic sequencing,
// recently-failed-first prioritisation, class-level sharding and
// coverage-guided subset optimization.
//
// Usage:
//
//	testpack org.example.myapp
//	testpack --shard 2/8 org.example.myapp
//	testpack --optimize-runtime 30000 org.example.myapp
package main

import (
	"os"

	"github.com/testpack/testpack/cmd/testpack/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
