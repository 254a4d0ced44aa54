package lifecycle

// DefaultProjectionKeys are the resource properties that influence build
// behavior. Only changes to these keys trigger a rebuild on Update;
// incidental metadata changes are ignored.
var DefaultProjectionKeys = []string{
	"CollaboratorFoundationModel",
	"SupervisorFoundationModel",
	"LanguageCode",
}

// Detector decides whether a lifecycle request requires a rebuild. It is a
// pure function of the request type and the projected parameter values.
type Detector struct {
	keys []string
}

// NewDetector creates a detector projecting onto the given property keys.
// A nil or empty key set falls back to DefaultProjectionKeys.
func NewDetector(keys []string) *Detector {
	if len(keys) == 0 {
		keys = DefaultProjectionKeys
	}
	return &Detector{keys: keys}
}

// Decide returns true if the request requires a rebuild.
// Create and Delete always do; Update rebuilds iff any projected property
// value differs between the old and new parameter sets.
func (d *Detector) Decide(requestType RequestType, oldProps, newProps map[string]string) bool {
	if requestType != RequestUpdate {
		return true
	}

	for _, key := range d.keys {
		if oldProps[key] != newProps[key] {
			return true
		}
	}
	return false
}
