package kvs

import "fmt"

// CloudFront KeyValueStore limits.
const (
	MaxKeyBytes   = 512
	MaxEntryBytes = 1024    // key + value
	MaxTotalBytes = 5242880 // 5 MB
)

// ValidationError describes a single constraint violation.
type ValidationError struct {
	Key     string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

// DataStats holds summary size information for a Data set.
type DataStats struct {
	NumKeys    int
	TotalBytes int
}

// Percent is TotalBytes as a share of MaxTotalBytes.
func (s DataStats) Percent() float64 {
	return float64(s.TotalBytes) / float64(MaxTotalBytes) * 100
}

func entrySize(e Entry) (key, total int) {
	key = len(e.Key)
	return key, key + len(e.Value)
}

// Stats returns the number of keys and total byte size of the data.
func (d *Data) Stats() DataStats {
	s := DataStats{NumKeys: len(d.Entries)}
	for _, e := range d.Entries {
		_, n := entrySize(e)
		s.TotalBytes += n
	}
	return s
}

// Validate checks the KVS size limits and that keys are unique and
// non-empty. Returns nil if valid.
func (d *Data) Validate() []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(d.Entries))

	for _, e := range d.Entries {
		keySize, size := entrySize(e)
		switch {
		case keySize == 0:
			errs = append(errs, ValidationError{Key: "(empty)", Message: "key is empty"})
		case seen[e.Key]:
			errs = append(errs, ValidationError{Key: e.Key, Message: "duplicate key"})
		}
		seen[e.Key] = true

		if keySize > MaxKeyBytes {
			errs = append(errs, ValidationError{
				Key:     e.Key,
				Message: fmt.Sprintf("key exceeds %d bytes (%d bytes)", MaxKeyBytes, keySize),
			})
		}
		if size > MaxEntryBytes {
			errs = append(errs, ValidationError{
				Key:     e.Key,
				Message: fmt.Sprintf("key+value exceeds %d bytes (%d bytes)", MaxEntryBytes, size),
			})
		}
	}

	if total := d.Stats().TotalBytes; total > MaxTotalBytes {
		errs = append(errs, ValidationError{
			Key:     "(total)",
			Message: fmt.Sprintf("total data exceeds %d bytes (%d bytes)", MaxTotalBytes, total),
		})
	}

	return errs
}
