// run.go builds the `docker run` invocation used to execute one pipeline
// step inside the environment container.
//
// The step is executed as a child `docker` process rather than through the
// SDK's container-create/attach/wait API. Streaming stdout/stderr and
// propagating the exit status is exactly what the docker CLI already does,
// and going through it keeps a step's console behavior identical between
// the conda and docker providers (progress bars from the external programs
// render the same either way).
package docker

import "fmt"

// BuildRunArgs constructs the argument list for running a single step
// command inside a container of the given image.
//
// The working directory is bind-mounted at the same absolute path and set
// as the container working directory, so the external programs find
// config.json and the output directory exactly where a local run would.
// --rm discards the container after the step terminates: each step run is
// one-shot, no state is kept between invocations.
//
// Example:
//
//	BuildRunArgs("pipeline:latest", "/data/wetlands", []string{"python", "download.py"})
//	→ ["run", "--rm", "-v", "/data/wetlands:/data/wetlands", "-w", "/data/wetlands",
//	   "pipeline:latest", "python", "download.py"]
func BuildRunArgs(image, workDir string, cmdline []string) []string {
	args := make([]string, 0, len(cmdline)+7)
	args = append(args, "run", "--rm")
	if workDir != "" {
		args = append(args,
			"-v", fmt.Sprintf("%s:%s", workDir, workDir),
			"-w", workDir,
		)
	}
	args = append(args, image)
	args = append(args, cmdline...)
	return args
}
