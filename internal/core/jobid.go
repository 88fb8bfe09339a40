package core

import (
	"fmt"
	"math/rand"
	"regexp"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

var jobIDPattern = regexp.MustCompile(`^job_\d+_[0-9a-z]{9}$`)

// NewJobID generates a queue-wide job id of the form
// job_<epochMillis>_<random 9 chars base36>. The format is part of the wire
// contract with bridge agents and must not change.
func NewJobID() string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = base36[rand.Intn(len(base36))]
	}
	return fmt.Sprintf("job_%d_%s", time.Now().UnixMilli(), suffix)
}

// ValidJobID reports whether id matches the wire format.
func ValidJobID(id string) bool {
	return jobIDPattern.MatchString(id)
}
