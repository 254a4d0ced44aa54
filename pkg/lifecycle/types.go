package lifecycle

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RequestType is the kind of lifecycle event delivered by the requester.
type RequestType string

const (
	// RequestCreate asks for first-time provisioning of the stack.
	RequestCreate RequestType = "Create"

	// RequestUpdate asks for re-provisioning after a parameter change.
	RequestUpdate RequestType = "Update"

	// RequestDelete asks for teardown of the provisioned stack.
	RequestDelete RequestType = "Delete"
)

// Validate checks if the request type is valid.
func (t RequestType) Validate() error {
	switch t {
	case RequestCreate, RequestUpdate, RequestDelete:
		return nil
	default:
		return fmt.Errorf("invalid request type: %s", t)
	}
}

// Request is one Create/Update/Delete event against a provisioned stack,
// in the shape of the CloudFormation custom-resource wire contract. It is
// consumed by exactly one Dispatch invocation.
type Request struct {
	// RequestType is Create, Update, or Delete.
	RequestType RequestType `json:"RequestType" validate:"required"`

	// ResponseURL is the pre-signed endpoint the terminal callback is PUT to.
	ResponseURL string `json:"ResponseURL" validate:"required,url"`

	// StackID is the ARN of the owning stack that issued the request.
	StackID string `json:"StackId" validate:"required"`

	// RequestID uniquely identifies this request.
	RequestID string `json:"RequestId" validate:"required"`

	// LogicalResourceID is the requester's logical name for the resource.
	LogicalResourceID string `json:"LogicalResourceId" validate:"required"`

	// PhysicalResourceID identifies the provisioned instance. It is absent
	// only on the first Create and stable across Updates.
	PhysicalResourceID string `json:"PhysicalResourceId,omitempty"`

	// ResourceProperties are the requested parameters.
	ResourceProperties map[string]string `json:"ResourceProperties,omitempty"`

	// OldResourceProperties are the previous parameters, present on Update.
	OldResourceProperties map[string]string `json:"OldResourceProperties,omitempty"`
}

var validate = validator.New()

// Validate checks the request for structural validity.
func (r *Request) Validate() error {
	if err := r.RequestType.Validate(); err != nil {
		return NewPermanentError("invalid lifecycle request", err).WithCode(ErrCodeValidation)
	}
	if err := validate.Struct(r); err != nil {
		return NewPermanentError("invalid lifecycle request", err).WithCode(ErrCodeValidation)
	}
	return nil
}

// OwningStackName extracts the stack name from the StackID ARN
// (arn:aws:cloudformation:region:account:stack/NAME/uuid). A StackID that is
// not in ARN form is returned unchanged.
func (r *Request) OwningStackName() string {
	parts := strings.Split(r.StackID, "/")
	if len(parts) >= 2 && strings.HasPrefix(parts[0], "arn:") {
		return parts[1]
	}
	return r.StackID
}

// BuildEnv derives the environment overrides handed to the build executor
// from the requested parameters. The requester's internal ServiceToken is
// never forwarded.
func (r *Request) BuildEnv() map[string]string {
	env := make(map[string]string, len(r.ResourceProperties))
	for k, v := range r.ResourceProperties {
		if k == "ServiceToken" {
			continue
		}
		env[k] = v
	}
	return env
}
