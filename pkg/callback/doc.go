// Package callback implements the single terminal completion signal sent back
// to the provisioning requester. The payload shape follows the CloudFormation
// custom-resource response contract; delivery is one synchronous HTTP PUT to
// the pre-signed response URL, with no internal retries so that the requester
// never receives a duplicate terminal signal.
package callback
