package common

import (
	"encoding/json"
	"regexp"
	"runtime"

	"github.com/google/uuid"
)

// Contains checks if an item is in a slice. This function uses type parameters to work with any slice type.
func Contains[T comparable](slice []T, item T) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}

	return false
}

// IsUUID validates that s is a well-formed UUID.
func IsUUID(s string) bool {
	r := regexp.MustCompile("^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[1-5][a-fA-F0-9]{3}-[89abAB][a-fA-F0-9]{3}-[a-fA-F0-9]{12}$")
	return r.MatchString(s)
}

// GenerateUUIDv7 returns a time-ordered UUID, used for sagaId so that bus partition
// keys derived from it sort monotonically.
func GenerateUUIDv7() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// StructToJSONString converts a struct to a JSON string, used to attach structured
// payloads to telemetry spans without a dedicated marshaller per call site.
func StructToJSONString(s any) (string, error) {
	jsonByte, err := json.Marshal(s)
	if err != nil {
		return "", err
	}

	return string(jsonByte), nil
}

var uuidInPath = regexp.MustCompile(`[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}`)

// ReplaceUUIDWithPlaceholder collapses path segments that look like UUIDs so that
// span names group by route instead of fanning out per request (e.g. /orders/:sagaId
// instead of one span name per saga).
func ReplaceUUIDWithPlaceholder(path string) string {
	return uuidInPath.ReplaceAllString(path, ":id")
}

// GetCPUUsage samples the number of live goroutines as a coarse proxy for CPU
// pressure, cheap enough to call on every request without a profiling dependency.
func GetCPUUsage() int64 {
	return int64(runtime.NumGoroutine())
}

// GetMemUsage returns the heap memory currently in use, in bytes.
func GetMemUsage() int64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return int64(m.HeapAlloc)
}
