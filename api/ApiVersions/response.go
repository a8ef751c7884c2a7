package ApiVersions

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mkocikowski/simplekafka/api"
)

type Response struct {
	ErrorCode int16
	ApiKeys   []ApiKeyVersion
}

// ApiKey is an int16 and not api.Key because brokers list apis this library
// does not know about.
type ApiKeyVersion struct {
	ApiKey     int16
	MinVersion int16
	MaxVersion int16
}

// Check that the broker supports every api at the version given in
// supported (see api.Supported).
func (r *Response) Check(supported map[api.Key]int16) error {
	ranges := make(map[api.Key]ApiKeyVersion, len(r.ApiKeys))
	for _, k := range r.ApiKeys {
		ranges[api.Key(k.ApiKey)] = k
	}
	var missing []string
	for k, v := range supported {
		b, ok := ranges[k]
		if !ok || v < b.MinVersion || v > b.MaxVersion {
			missing = append(missing, fmt.Sprintf("%v v%d", k, v))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("broker does not support: %s", strings.Join(missing, ", "))
	}
	return nil
}
