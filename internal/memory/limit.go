package memory

import (
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"ytstream/internal/logging"
)

// DefaultRatio is the share of the container limit given to the Go heap.
// ffmpeg merge sessions run in the same container and need the remainder.
const DefaultRatio = 0.75

// Source values reported in Result.
const (
	SourceGoMemLimit  = "GOMEMLIMIT"
	SourceMemoryLimit = "MEMORY_LIMIT"
	SourceNone        = "none"
)

// Result describes what Configure did.
type Result struct {
	Configured     bool
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// Env looks up an environment variable.
type Env func(key string) string

// setLimit is swapped in tests so they don't change the process limit.
var setLimit = debug.SetMemoryLimit

// ConfigureFromEnv applies GOMEMLIMIT using the process environment.
func ConfigureFromEnv() Result {
	return Configure(os.Getenv)
}

// Configure sets the Go soft memory limit from MEMORY_LIMIT and MEMORY_RATIO.
// An explicit GOMEMLIMIT always wins and is only reported.
func Configure(getenv Env) Result {
	if v := getenv("GOMEMLIMIT"); v != "" {
		res := Result{Source: SourceGoMemLimit}
		if limit := setLimit(-1); limit > 0 && limit < math.MaxInt64 {
			res.Configured = true
			res.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", v)
		return res
	}

	raw := getenv("MEMORY_LIMIT")
	if raw == "" {
		logging.Debug("MEMORY_LIMIT not set, leaving GOMEMLIMIT unset")
		return Result{Source: SourceNone}
	}

	containerLimit, err := ParseSize(raw)
	if err != nil {
		logging.Warn("Ignoring MEMORY_LIMIT: %v", err)
		return Result{Source: SourceNone}
	}

	ratio := DefaultRatio
	if v := getenv("MEMORY_RATIO"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		switch {
		case err != nil:
			logging.Warn("Invalid MEMORY_RATIO %q, using %.2f", v, DefaultRatio)
		case parsed <= 0 || parsed > 1:
			logging.Warn("MEMORY_RATIO %q out of range (0, 1], using %.2f", v, DefaultRatio)
		default:
			ratio = parsed
		}
	}

	goLimit := int64(float64(containerLimit) * ratio)
	setLimit(goLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.0f%% of %s container limit)",
		FormatBytes(goLimit), ratio*100, FormatBytes(containerLimit))

	return Result{
		Configured:     true,
		Source:         SourceMemoryLimit,
		ContainerLimit: containerLimit,
		GoMemLimit:     goLimit,
		Ratio:          ratio,
	}
}

var sizeSuffixes = []struct {
	suffix string
	mult   int64
}{
	{"Ki", 1 << 10},
	{"Mi", 1 << 20},
	{"Gi", 1 << 30},
	{"Ti", 1 << 40},
	{"k", 1e3},
	{"K", 1e3},
	{"M", 1e6},
	{"G", 1e9},
	{"T", 1e12},
}

// ParseSize parses a byte count, either plain ("536870912") or with a
// Kubernetes quantity suffix ("512Mi", "1G").
func ParseSize(s string) (int64, error) {
	raw := strings.TrimSpace(s)
	s = raw
	mult := int64(1)
	for _, sf := range sizeSuffixes {
		if strings.HasSuffix(s, sf.suffix) {
			s = strings.TrimSuffix(s, sf.suffix)
			mult = sf.mult
			break
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", raw, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("size must be positive, got %d", n)
	}
	if n > math.MaxInt64/mult {
		return 0, fmt.Errorf("size %q overflows int64", raw)
	}
	return n * mult, nil
}

// FormatBytes renders b in binary units.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
