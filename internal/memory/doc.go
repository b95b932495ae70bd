// Package memory configures Go's soft memory limit for containerized
// deployments.
//
// GOMAXPROCS follows cgroup CPU limits automatically but GOMEMLIMIT does
// not. Call [ConfigureFromEnv] early in main:
//
//	func main() {
//	    memory.ConfigureFromEnv()
//	    // ...
//	}
//
// # Environment Variables
//
//   - GOMEMLIMIT: Standard Go variable. When set it takes precedence and is
//     only reported.
//
//   - MEMORY_LIMIT: Container memory limit, as bytes or a Kubernetes
//     quantity such as "512Mi". Usually injected with the Downward API.
//
//   - MEMORY_RATIO: Share of MEMORY_LIMIT given to the Go heap, in (0, 1].
//     Default 0.75. Lower it when many merge sessions run at once, since
//     each ffmpeg process is counted against the same container limit.
//
// # Kubernetes Configuration
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//	- name: MEMORY_RATIO
//	  value: "0.6"
package memory
