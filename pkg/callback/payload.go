package callback

// Payload is the JSON body PUT to the requester's response URL when a
// lifecycle request reaches a terminal outcome.
type Payload struct {
	// Status is SUCCESS or FAILED.
	Status Status `json:"Status"`

	// Reason carries the error text on failure, empty otherwise.
	Reason string `json:"Reason,omitempty"`

	// PhysicalResourceID identifies the provisioned instance. It must stay
	// stable across Updates referring to the same instance.
	PhysicalResourceID string `json:"PhysicalResourceId"`

	// StackID echoes the owning stack identifier from the request.
	StackID string `json:"StackId"`

	// RequestID echoes the request identifier from the request.
	RequestID string `json:"RequestId"`

	// LogicalResourceID echoes the logical resource identifier from the request.
	LogicalResourceID string `json:"LogicalResourceId"`

	// Data carries at minimum BuildStatus and FrontendUrl.
	Data map[string]string `json:"Data"`
}

// Data keys that are always present in a payload.
const (
	// DataKeyBuildStatus distinguishes how the terminal outcome was reached.
	DataKeyBuildStatus = "BuildStatus"

	// DataKeyFrontendURL is the provisioned application URL. The requester's
	// downstream consumers dereference it unconditionally, so it is always
	// present, defaulting to the empty string.
	DataKeyFrontendURL = "FrontendUrl"
)

// NewData builds a payload data map with the mandatory keys populated.
// Extra outputs are merged in and may override FrontendUrl when the
// provisioned stack publishes one.
func NewData(buildStatus BuildStatus, outputs map[string]string) map[string]string {
	data := map[string]string{
		DataKeyBuildStatus: string(buildStatus),
		DataKeyFrontendURL: "",
	}
	for k, v := range outputs {
		data[k] = v
	}
	return data
}
