package lifecycle

import "testing"

func validRequest() *Request {
	return &Request{
		RequestType:       RequestCreate,
		ResponseURL:       "https://callback.example.com/response",
		StackID:           "arn:aws:cloudformation:us-east-1:123456789012:stack/workforce-safety/1a2b3c",
		RequestID:         "req-001",
		LogicalResourceID: "DeploymentTrigger",
		ResourceProperties: map[string]string{
			"ServiceToken": "arn:aws:lambda:us-east-1:123456789012:function:handler",
			"LanguageCode": "en_US",
		},
	}
}

func TestRequestValidate(t *testing.T) {
	if err := validRequest().Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	req := validRequest()
	req.RequestType = "Upsert"
	if err := req.Validate(); err == nil {
		t.Error("unknown request type should be rejected")
	} else if !IsPermanent(err) {
		t.Errorf("validation error should be permanent, got: %v", err)
	}

	req = validRequest()
	req.ResponseURL = "not a url"
	if err := req.Validate(); err == nil {
		t.Error("malformed response URL should be rejected")
	}

	req = validRequest()
	req.RequestID = ""
	if err := req.Validate(); err == nil {
		t.Error("missing request id should be rejected")
	}
}

func TestOwningStackName(t *testing.T) {
	req := validRequest()
	if got := req.OwningStackName(); got != "workforce-safety" {
		t.Errorf("OwningStackName() = %q, want %q", got, "workforce-safety")
	}

	req.StackID = "plain-stack-name"
	if got := req.OwningStackName(); got != "plain-stack-name" {
		t.Errorf("non-ARN stack id should pass through, got %q", got)
	}
}

func TestBuildEnvStripsServiceToken(t *testing.T) {
	env := validRequest().BuildEnv()

	if _, ok := env["ServiceToken"]; ok {
		t.Error("ServiceToken must not be forwarded to the executor")
	}
	if env["LanguageCode"] != "en_US" {
		t.Errorf("expected LanguageCode to be forwarded, got %v", env)
	}
}
