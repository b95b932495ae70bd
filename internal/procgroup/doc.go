// Package procgroup starts child processes in their own process group and
// signals the whole group, so that helpers spawned by a child (ffmpeg
// protocol workers, shell wrappers) die with it.
package procgroup
